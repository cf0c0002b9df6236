package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"stockhold/internal/domain"
	applog "stockhold/internal/log"
)

const genericFailure = "Something went wrong. Please try again."

// StatusFor maps a service error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrAlreadyReleased),
		errors.Is(err, domain.ErrInvalidState):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrBusy):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// fail writes {success:false, error}. Only domain errors reach the client
// verbatim; anything else is logged and replaced with a generic message.
func fail(c *fiber.Ctx, action string, err error, fields map[string]any) error {
	status := StatusFor(err)
	msg := err.Error()
	switch status {
	case fiber.StatusInternalServerError:
		applog.Error(c, action+".fail", err, fields)
		msg = genericFailure
	case fiber.StatusServiceUnavailable:
		c.Set(fiber.HeaderRetryAfter, "1")
		applog.Info(c, action+".busy", fields)
		msg = "product is busy, please retry"
	case fiber.StatusNotFound:
		msg = "not found"
	}
	var ise *domain.InsufficientStockError
	if errors.As(err, &ise) {
		msg = "insufficient stock"
		return c.Status(status).JSON(fiber.Map{
			"success":   false,
			"error":     msg,
			"available": ise.Available,
			"requested": ise.Requested,
		})
	}
	return c.Status(status).JSON(fiber.Map{"success": false, "error": msg})
}

func badRequest(c *fiber.Ctx, field, msg string) error {
	applog.Security(c, "validation.fail", map[string]any{"field": field})
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": msg})
}
