package handlers

import (
	"github.com/gofiber/fiber/v2"

	"stockhold/internal/services"
	"stockhold/internal/validate"
)

type ProductHandler struct {
	Svc *services.ReservationService
}

// GET /api/v1/products/:id
func (h *ProductHandler) Detail(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "product", "enter a valid product id")
	}
	p, err := h.Svc.GetProduct(c.UserContext(), id)
	if err != nil {
		return fail(c, "product.get", err, map[string]any{"product": id})
	}
	return c.JSON(p)
}
