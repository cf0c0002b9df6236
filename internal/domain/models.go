package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Product is one product's stock ledger entry.
type Product struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	AvailableStock int       `json:"availableStock"`
	ReservedStock  int       `json:"reservedStock"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	Version        int64     `json:"version"` // optimistic concurrency token
}

func NewProduct(id, name string, initialStock int, now time.Time) (*Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalidArgument("product id is required")
	}
	if initialStock < 0 {
		return nil, invalidArgument("stock cannot be negative")
	}
	return &Product{
		ID:             id,
		Name:           name,
		AvailableStock: initialStock,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Reserve moves quantity units from available to reserved.
func (p *Product) Reserve(quantity int, now time.Time) error {
	if quantity <= 0 {
		return invalidArgument("quantity must be positive")
	}
	if p.AvailableStock < quantity {
		return &InsufficientStockError{ProductID: p.ID, Available: p.AvailableStock, Requested: quantity}
	}
	p.AvailableStock -= quantity
	p.ReservedStock += quantity
	p.UpdatedAt = now
	return nil
}

// Release returns up to quantity reserved units to available stock and
// reports how many actually moved. It never drives reservedStock negative,
// so repeating it is harmless.
func (p *Product) Release(quantity int, now time.Time) int {
	if quantity <= 0 || p.ReservedStock == 0 {
		return 0
	}
	actual := min(quantity, p.ReservedStock)
	p.AvailableStock += actual
	p.ReservedStock -= actual
	p.UpdatedAt = now
	return actual
}

// Confirm removes quantity reserved units from the system (purchase done).
func (p *Product) Confirm(quantity int, now time.Time) error {
	if quantity <= 0 {
		return invalidArgument("quantity must be positive")
	}
	if quantity > p.ReservedStock {
		return invalidState("confirm quantity exceeds reserved stock")
	}
	p.ReservedStock -= quantity
	p.UpdatedAt = now
	return nil
}

// Reservation is a time-bounded hold on a product's stock. Rows are never
// deleted; they double as the audit trail.
type Reservation struct {
	ID         string     `json:"id"`
	ProductID  string     `json:"productId"`
	UserID     string     `json:"userId"`
	Quantity   int        `json:"quantity"`
	ReservedAt time.Time  `json:"reservedAt"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	Released   bool       `json:"released"`
	ReleasedAt *time.Time `json:"releasedAt,omitempty"`
	Confirmed  bool       `json:"confirmed"`
}

func NewReservation(productID, userID string, quantity int, duration time.Duration, now time.Time) (*Reservation, error) {
	if quantity <= 0 {
		return nil, invalidArgument("quantity must be positive")
	}
	return &Reservation{
		ID:         uuid.NewString(),
		ProductID:  productID,
		UserID:     userID,
		Quantity:   quantity,
		ReservedAt: now,
		ExpiresAt:  now.Add(duration),
	}, nil
}

func (r *Reservation) Release(now time.Time) error {
	if r.Released {
		return ErrAlreadyReleased
	}
	r.Released = true
	r.ReleasedAt = &now
	return nil
}

// Confirm ends the hold because the purchase went through.
func (r *Reservation) Confirm(now time.Time) error {
	if err := r.Release(now); err != nil {
		return err
	}
	r.Confirmed = true
	return nil
}

func (r *Reservation) IsExpired(now time.Time) bool {
	return !r.Released && now.After(r.ExpiresAt)
}

type Availability struct {
	Status string `json:"status"` // IN_STOCK | LOW_STOCK | OUT_OF_STOCK
	Qty    int    `json:"qty"`
}
