package notify

import (
	"time"

	"github.com/google/uuid"
)

const (
	InventoryReserved    = "inventory.reserved"
	ReservationReleased  = "reservation.released"
	ReservationConfirmed = "reservation.confirmed"
	ReservationExpired   = "reservation.expired"
)

// Event is a lifecycle fact about one reservation. Delivery is best effort.
type Event struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	ReservationID string    `json:"reservationId"`
	ProductID     string    `json:"productId"`
	UserID        string    `json:"userId"`
	Quantity      int       `json:"quantity"`
	ExpiresAt     time.Time `json:"expiresAt,omitzero"`
	OccurredAt    time.Time `json:"occurredAt"`
}

func NewEvent(typ, reservationID, productID, userID string, qty int, expiresAt, now time.Time) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          typ,
		ReservationID: reservationID,
		ProductID:     productID,
		UserID:        userID,
		Quantity:      qty,
		ExpiresAt:     expiresAt,
		OccurredAt:    now,
	}
}
