package services

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrBadCreds = errors.New("invalid username or password")

// AdminAuth checks operator credentials for the admin pages. The password is
// only ever compared against a bcrypt hash.
type AdminAuth struct {
	User string
	Hash string
}

func NewAdminAuth(user, hash string) *AdminAuth {
	if user == "" {
		user = "admin"
	}
	return &AdminAuth{User: user, Hash: hash}
}

// Enabled is false when no hash is configured; admin routes are then not mounted.
func (a *AdminAuth) Enabled() bool { return a != nil && a.Hash != "" }

func (a *AdminAuth) Login(user, password string) error {
	if !a.Enabled() || user != a.User {
		return ErrBadCreds
	}
	if bcrypt.CompareHashAndPassword([]byte(a.Hash), []byte(password)) != nil {
		return ErrBadCreds
	}
	return nil
}
