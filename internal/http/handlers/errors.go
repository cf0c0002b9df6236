package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	applog "stockhold/internal/log"
)

// ErrorHandler is the app-wide fallback. Internal details are logged, never shown.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := genericFailure
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		if code < 500 {
			msg = fe.Message
		}
	}
	if code >= 500 {
		applog.Error(c, "server.error", err, nil)
	}

	if strings.HasPrefix(c.Path(), "/api/") {
		return c.Status(code).JSON(fiber.Map{"success": false, "error": msg})
	}
	if rerr := c.Status(code).Render("notfound", fiber.Map{"Message": msg}); rerr != nil {
		return c.Status(code).SendString(msg)
	}
	return nil
}
