package services_test

import (
	"testing"

	"golang.org/x/crypto/bcrypt"

	"stockhold/internal/services"
)

func TestAdminAuth_Login(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	a := services.NewAdminAuth("", string(hash))
	if !a.Enabled() {
		t.Fatal("auth with hash should be enabled")
	}
	if err := a.Login("admin", "s3cret"); err != nil {
		t.Fatalf("good creds rejected: %v", err)
	}
	if err := a.Login("admin", "nope"); err != services.ErrBadCreds {
		t.Fatalf("bad password: want ErrBadCreds, got %v", err)
	}
	if err := a.Login("root", "s3cret"); err != services.ErrBadCreds {
		t.Fatalf("bad user: want ErrBadCreds, got %v", err)
	}
	if services.NewAdminAuth("admin", "").Enabled() {
		t.Fatal("empty hash should disable admin")
	}
}
