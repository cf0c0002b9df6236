package domain_test

import (
	"errors"
	"testing"
	"time"

	"stockhold/internal/domain"
)

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func product(t *testing.T, stock int) *domain.Product {
	t.Helper()
	p, err := domain.NewProduct("p-1", "Flash Sale Item", stock, t0)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestNewProductRejectsNegativeStock(t *testing.T) {
	if _, err := domain.NewProduct("p-1", "x", -1, t0); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
	if _, err := domain.NewProduct(" ", "x", 1, t0); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument for empty id, got %v", err)
	}
}

func TestProductReserve(t *testing.T) {
	p := product(t, 10)
	later := t0.Add(time.Second)
	if err := p.Reserve(3, later); err != nil {
		t.Fatal(err)
	}
	if p.AvailableStock != 7 || p.ReservedStock != 3 {
		t.Fatalf("want 7/3, got %d/%d", p.AvailableStock, p.ReservedStock)
	}
	if !p.UpdatedAt.Equal(later) {
		t.Fatalf("updatedAt not bumped: %v", p.UpdatedAt)
	}
}

func TestProductReserveNonPositiveQuantity(t *testing.T) {
	for _, q := range []int{0, -1, -50} {
		p := product(t, 10)
		err := p.Reserve(q, t0)
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("reserve(%d): want ErrInvalidArgument, got %v", q, err)
		}
		if p.AvailableStock != 10 || p.ReservedStock != 0 {
			t.Fatalf("reserve(%d) mutated stock: %d/%d", q, p.AvailableStock, p.ReservedStock)
		}
	}
}

func TestProductReserveInsufficientStock(t *testing.T) {
	p := product(t, 10)
	err := p.Reserve(15, t0)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("want ErrInsufficientStock, got %v", err)
	}
	var ise *domain.InsufficientStockError
	if !errors.As(err, &ise) || ise.Available != 10 || ise.Requested != 15 {
		t.Fatalf("want available=10 requested=15, got %+v", ise)
	}
	if p.AvailableStock != 10 || p.ReservedStock != 0 {
		t.Fatalf("stock changed: %d/%d", p.AvailableStock, p.ReservedStock)
	}
}

func TestProductReleaseClamps(t *testing.T) {
	p := product(t, 5)
	_ = p.Reserve(3, t0)

	if got := p.Release(10, t0); got != 3 {
		t.Fatalf("want 3 released, got %d", got)
	}
	if p.AvailableStock != 5 || p.ReservedStock != 0 {
		t.Fatalf("want 5/0, got %d/%d", p.AvailableStock, p.ReservedStock)
	}
	// nothing reserved anymore: no-op
	if got := p.Release(1, t0); got != 0 {
		t.Fatalf("want no-op, got %d", got)
	}
	if got := p.Release(-2, t0); got != 0 {
		t.Fatalf("want no-op for negative quantity, got %d", got)
	}
	if p.AvailableStock != 5 || p.ReservedStock != 0 {
		t.Fatalf("want 5/0 after no-ops, got %d/%d", p.AvailableStock, p.ReservedStock)
	}
}

func TestProductConfirm(t *testing.T) {
	p := product(t, 5)
	_ = p.Reserve(3, t0)
	if err := p.Confirm(2, t0); err != nil {
		t.Fatal(err)
	}
	if p.AvailableStock != 2 || p.ReservedStock != 1 {
		t.Fatalf("want 2/1, got %d/%d", p.AvailableStock, p.ReservedStock)
	}
	if err := p.Confirm(2, t0); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("want ErrInvalidState, got %v", err)
	}
	if err := p.Confirm(0, t0); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
}

func TestReservationLifecycle(t *testing.T) {
	if _, err := domain.NewReservation("p-1", "u-1", 0, time.Minute, t0); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}

	r, err := domain.NewReservation("p-1", "u-1", 2, 2*time.Minute, t0)
	if err != nil {
		t.Fatal(err)
	}
	if r.ID == "" || !r.ExpiresAt.Equal(t0.Add(2*time.Minute)) || r.Released {
		t.Fatalf("bad reservation: %+v", r)
	}
	if r.IsExpired(t0.Add(2 * time.Minute)) {
		t.Fatal("not expired exactly at expiresAt")
	}
	if !r.IsExpired(t0.Add(2*time.Minute + time.Nanosecond)) {
		t.Fatal("should be expired after expiresAt")
	}

	if err := r.Release(t0); err != nil {
		t.Fatal(err)
	}
	if !r.Released || r.ReleasedAt == nil {
		t.Fatalf("release not recorded: %+v", r)
	}
	if err := r.Release(t0); !errors.Is(err, domain.ErrAlreadyReleased) {
		t.Fatalf("want ErrAlreadyReleased, got %v", err)
	}
	if r.IsExpired(t0.Add(time.Hour)) {
		t.Fatal("released reservation must never report expired")
	}
}

func TestReservationConfirm(t *testing.T) {
	r, _ := domain.NewReservation("p-1", "u-1", 1, time.Minute, t0)
	if err := r.Confirm(t0); err != nil {
		t.Fatal(err)
	}
	if !r.Confirmed || !r.Released {
		t.Fatalf("want confirmed+released, got %+v", r)
	}
	if err := r.Confirm(t0); !errors.Is(err, domain.ErrAlreadyReleased) {
		t.Fatalf("want ErrAlreadyReleased, got %v", err)
	}
}
