package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "stockhold/internal/log"
	"stockhold/internal/repos"
	"stockhold/internal/services"
	"stockhold/internal/validate"
)

type AdminHandler struct {
	Svc *services.ReservationService
}

// GET /admin/inventory
func (h *AdminHandler) Inventory(c *fiber.Ctx) error {
	products, err := h.Svc.AuditStock(c.UserContext())
	if err != nil {
		applog.Error(c, "admin.inventory.list.fail", err, nil)
		return c.Status(500).Render("notfound", fiber.Map{"Message": "Could not load inventory"})
	}
	for _, p := range products {
		if p.Drift != 0 {
			applog.Error(c, "admin.inventory.drift", nil, map[string]any{
				"product": p.ID, "reserved": p.ReservedStock, "ledger": p.LedgerHeld,
			})
		}
	}
	recent, _ := h.Svc.ListReservations(c.UserContext(), repos.ReservationFilter{Limit: 25})
	return render(c, "admin_inventory", fiber.Map{"Products": products, "Reservations": recent})
}

// POST /admin/products
func (h *AdminHandler) CreateProduct(c *fiber.Ctx) error {
	pid, okID := validate.ID(c.FormValue("product_id"))
	name, okName := validate.Name(c.FormValue("name"))
	stock, okStock := validate.Stock(c.FormValue("stock"))
	if !okID || !okName || !okStock {
		applog.Security(c, "validation.fail", map[string]any{"field": "product"})
		return c.Status(400).SendString("invalid input")
	}
	fields := map[string]any{"product": pid, "name": name, "stock": stock}
	if _, err := h.Svc.ProvisionProduct(c.UserContext(), pid, name, stock); err != nil {
		if StatusFor(err) == fiber.StatusInternalServerError {
			applog.Error(c, "admin.products.create.fail", err, fields)
			return c.Status(500).SendString("could not create product")
		}
		return c.Status(StatusFor(err)).SendString(err.Error())
	}
	applog.Audit(c, "admin.products.create", fields)
	return c.Redirect("/admin/inventory")
}
