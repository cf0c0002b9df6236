package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	applog "stockhold/internal/log"
)

// RouteLimits caps per-IP request rates on the hot API routes.
type RouteLimits struct {
	ReserveMax      int
	AvailabilityMax int
	Window          time.Duration
}

func DefaultRouteLimits() RouteLimits {
	return RouteLimits{ReserveMax: 30, AvailabilityMax: 60, Window: 30 * time.Second}
}

func rateLimit(name string, max int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|" + name
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate."+name+".hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"success": false, "error": "rate limit exceeded, retry soon"})
		},
	})
}

// Mount registers the API and, when admin auth is configured, the admin pages.
func Mount(app *fiber.App, d *Deps, limits RouteLimits) {
	api := app.Group("/api/v1")
	api.Post("/inventory/reserve", rateLimit("reserve", limits.ReserveMax, limits.Window), d.ReservationHandler.Reserve)
	api.Get("/availability", rateLimit("availability", limits.AvailabilityMax, limits.Window), d.InventoryHandler.Check)
	api.Get("/products/:id", d.ProductHandler.Detail)
	api.Get("/reservations", d.ReservationHandler.List)
	api.Get("/reservations/:id", d.ReservationHandler.Get)
	api.Post("/reservations/:id/release", d.ReservationHandler.Release)
	api.Post("/reservations/:id/confirm", d.ReservationHandler.Confirm)

	if d.Auth.Enabled() {
		admin := app.Group("/admin", RequireAdmin(d.Auth))
		admin.Get("/inventory", d.AdminHandler.Inventory)
		admin.Post("/products", d.AdminHandler.CreateProduct)
	}
}

// RequestTimeout bounds the work a request may do, lock waits included.
// When it fires before commit the transaction rolls back.
func RequestTimeout(d time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if d <= 0 {
			return c.Next()
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), d)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}
