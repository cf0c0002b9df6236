package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"

	applog "stockhold/internal/log"
	"stockhold/internal/services"
)

const adminRealm = "stockhold admin"

// RequireAdmin guards operator pages with HTTP basic auth checked against
// the configured bcrypt hash.
func RequireAdmin(auth *services.AdminAuth) fiber.Handler {
	return basicauth.New(basicauth.Config{
		Realm: adminRealm,
		Authorizer: func(user, pass string) bool {
			return auth.Login(user, pass) == nil
		},
		Unauthorized: func(c *fiber.Ctx) error {
			applog.Security(c, "access.denied.admin", nil)
			c.Set(fiber.HeaderWWWAuthenticate, `basic realm="`+adminRealm+`"`)
			return c.Status(fiber.StatusUnauthorized).Render("notfound", fiber.Map{"Message": "Access denied"})
		},
	})
}
