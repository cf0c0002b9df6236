package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"stockhold/internal/domain"
	applog "stockhold/internal/log"
	"stockhold/internal/repos"
	"stockhold/internal/services"
	"stockhold/internal/validate"
)

type ReservationHandler struct {
	Svc *services.ReservationService
}

type reserveRequest struct {
	ProductID string `json:"productId" form:"productId"`
	Quantity  int    `json:"quantity" form:"quantity"`
	UserID    string `json:"userId" form:"userId"`
}

// POST /api/v1/inventory/reserve
func (h *ReservationHandler) Reserve(c *fiber.Ctx) error {
	var req reserveRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body", "malformed request body")
	}
	pid, ok := validate.ID(req.ProductID)
	if !ok {
		return badRequest(c, "productId", "enter a valid productId")
	}
	uid, ok := validate.ID(req.UserID)
	if !ok {
		return badRequest(c, "userId", "enter a valid userId")
	}
	if !validate.Quantity(req.Quantity) {
		return badRequest(c, "quantity", "quantity must be between 1 and "+strconv.Itoa(validate.MaxQuantity))
	}

	fields := map[string]any{"product": pid, "user": uid, "qty": req.Quantity}
	res, err := h.Svc.ReserveStock(c.UserContext(), pid, req.Quantity, uid)
	if err != nil {
		return fail(c, "reservation.reserve", err, fields)
	}
	fields["reservation"] = res.ReservationID
	applog.Audit(c, "reservation.reserve", fields)
	return c.JSON(fiber.Map{
		"success":       true,
		"reservationId": res.ReservationID,
		"expiresAt":     res.ExpiresAt,
		"message":       "Stock reserved until " + res.ExpiresAt.Format(time.RFC3339),
	})
}

// POST /api/v1/reservations/:id/release
func (h *ReservationHandler) Release(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "id", "enter a valid reservation id")
	}
	if err := h.Svc.ReleaseReservation(c.UserContext(), id); err != nil {
		return fail(c, "reservation.release", err, map[string]any{"reservation": id})
	}
	applog.Audit(c, "reservation.release", map[string]any{"reservation": id})
	return c.JSON(fiber.Map{"success": true})
}

// POST /api/v1/reservations/:id/confirm
func (h *ReservationHandler) Confirm(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "id", "enter a valid reservation id")
	}
	if err := h.Svc.ConfirmReservation(c.UserContext(), id); err != nil {
		return fail(c, "reservation.confirm", err, map[string]any{"reservation": id})
	}
	applog.Audit(c, "reservation.confirm", map[string]any{"reservation": id})
	return c.JSON(fiber.Map{"success": true})
}

type reservationView struct {
	*domain.Reservation
	Expired bool `json:"expired"`
}

// GET /api/v1/reservations/:id
func (h *ReservationHandler) Get(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "id", "enter a valid reservation id")
	}
	r, err := h.Svc.GetReservation(c.UserContext(), id)
	if err != nil {
		return fail(c, "reservation.get", err, map[string]any{"reservation": id})
	}
	return c.JSON(reservationView{Reservation: r, Expired: r.IsExpired(time.Now())})
}

// GET /api/v1/reservations?productId=&userId=&released=
func (h *ReservationHandler) List(c *fiber.Ctx) error {
	var f repos.ReservationFilter
	if v := c.Query("productId"); v != "" {
		pid, ok := validate.ID(v)
		if !ok {
			return badRequest(c, "productId", "enter a valid productId")
		}
		f.ProductID = pid
	}
	if v := c.Query("userId"); v != "" {
		uid, ok := validate.ID(v)
		if !ok {
			return badRequest(c, "userId", "enter a valid userId")
		}
		f.UserID = uid
	}
	released, ok := validate.Bool(c.Query("released"))
	if !ok {
		return badRequest(c, "released", "released must be true or false")
	}
	f.Released = released
	f.Limit = c.QueryInt("limit", 100)

	list, err := h.Svc.ListReservations(c.UserContext(), f)
	if err != nil {
		return fail(c, "reservation.list", err, nil)
	}
	now := time.Now()
	out := make([]reservationView, 0, len(list))
	for i := range list {
		out = append(out, reservationView{Reservation: &list[i], Expired: list[i].IsExpired(now)})
	}
	return c.JSON(fiber.Map{"reservations": out, "count": len(out)})
}
