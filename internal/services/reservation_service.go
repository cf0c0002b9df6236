package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"stockhold/internal/domain"
	"stockhold/internal/metrics"
	"stockhold/internal/notify"
	"stockhold/internal/repos"
	"stockhold/internal/tracing"
)

// DefaultHoldDuration is how long a reservation holds stock before the
// sweeper may reclaim it.
const DefaultHoldDuration = 2 * time.Minute

// Publisher receives lifecycle events after commit. It must not block.
type Publisher interface {
	Enqueue(ctx context.Context, evt notify.Event)
}

type ReserveResult struct {
	ReservationID string    `json:"reservationId"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// ReservationService coordinates every stock mutation: one transaction, the
// product lock held from read to commit, events only after commit.
type ReservationService struct {
	Tx           *repos.TxManager
	Events       Publisher
	HoldDuration time.Duration
	Now          func() time.Time
}

func NewReservationService(txm *repos.TxManager, events Publisher, hold time.Duration) *ReservationService {
	if hold <= 0 {
		hold = DefaultHoldDuration
	}
	return &ReservationService{Tx: txm, Events: events, HoldDuration: hold, Now: time.Now}
}

func (s *ReservationService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// ReserveStock atomically moves quantity units of productID into a new hold
// for userID.
func (s *ReservationService) ReserveStock(ctx context.Context, productID string, quantity int, userID string) (res ReserveResult, err error) {
	ctx, span := tracing.Tracer().Start(ctx, "reservation.reserve", trace.WithAttributes(
		attribute.String("product.id", productID),
		attribute.Int("quantity", quantity),
	))
	defer func() { finish(span, "reserve", err) }()

	switch {
	case quantity <= 0:
		return res, errors.Wrapf(domain.ErrInvalidArgument, "quantity must be positive, got %d", quantity)
	case strings.TrimSpace(productID) == "":
		return res, errors.Wrap(domain.ErrInvalidArgument, "productId is required")
	case strings.TrimSpace(userID) == "":
		return res, errors.Wrap(domain.ErrInvalidArgument, "userId is required")
	}

	now := s.now()
	var r *domain.Reservation
	err = s.inTx(ctx, []string{productID}, func(tx *repos.Tx) error {
		p, err := tx.Products.Get(ctx, productID)
		if err != nil {
			return err
		}
		if err := p.Reserve(quantity, now); err != nil {
			return err
		}
		r, err = domain.NewReservation(productID, userID, quantity, s.HoldDuration, now)
		if err != nil {
			return err
		}
		if err := tx.Products.Update(ctx, p); err != nil {
			return err
		}
		return tx.Reservations.Insert(ctx, r)
	})
	if err != nil {
		return res, err
	}

	s.publish(ctx, notify.InventoryReserved, r, now)
	span.SetAttributes(attribute.String("reservation.id", r.ID))
	return ReserveResult{ReservationID: r.ID, ExpiresAt: r.ExpiresAt}, nil
}

// ReleaseReservation ends a hold early and returns its units to stock.
func (s *ReservationService) ReleaseReservation(ctx context.Context, reservationID string) (err error) {
	ctx, span := tracing.Tracer().Start(ctx, "reservation.release",
		trace.WithAttributes(attribute.String("reservation.id", reservationID)))
	defer func() { finish(span, "release", err) }()

	now := s.now()
	var r *domain.Reservation
	err = s.withReservation(ctx, reservationID, func(tx *repos.Tx, held *domain.Reservation) error {
		r = held
		if err := r.Release(now); err != nil {
			return err
		}
		p, err := tx.Products.Get(ctx, r.ProductID)
		if err != nil {
			return err
		}
		p.Release(r.Quantity, now)
		if err := tx.Products.Update(ctx, p); err != nil {
			return err
		}
		return tx.Reservations.MarkReleased(ctx, r)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, notify.ReservationReleased, r, now)
	return nil
}

// ConfirmReservation turns a hold into a sale: the reserved units are
// consumed and never return to available stock.
func (s *ReservationService) ConfirmReservation(ctx context.Context, reservationID string) (err error) {
	ctx, span := tracing.Tracer().Start(ctx, "reservation.confirm",
		trace.WithAttributes(attribute.String("reservation.id", reservationID)))
	defer func() { finish(span, "confirm", err) }()

	now := s.now()
	var r *domain.Reservation
	err = s.withReservation(ctx, reservationID, func(tx *repos.Tx, held *domain.Reservation) error {
		r = held
		if err := r.Confirm(now); err != nil {
			return err
		}
		p, err := tx.Products.Get(ctx, r.ProductID)
		if err != nil {
			return err
		}
		if err := p.Confirm(r.Quantity, now); err != nil {
			return err
		}
		if err := tx.Products.Update(ctx, p); err != nil {
			return err
		}
		return tx.Reservations.MarkReleased(ctx, r)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, notify.ReservationConfirmed, r, now)
	return nil
}

// withReservation locks the reservation's product, then re-reads the
// reservation inside the transaction and hands it to fn. The product id
// never changes, so the unlocked first read is only used to pick the lock.
func (s *ReservationService) withReservation(ctx context.Context, id string, fn func(tx *repos.Tx, r *domain.Reservation) error) error {
	if strings.TrimSpace(id) == "" {
		return errors.Wrap(domain.ErrInvalidArgument, "reservation id is required")
	}
	peek, err := repos.NewReservationRepo(s.Tx.DB()).Get(ctx, id)
	if err != nil {
		return classify(err)
	}
	return s.inTx(ctx, []string{peek.ProductID}, func(tx *repos.Tx) error {
		r, err := tx.Reservations.Get(ctx, id)
		if err != nil {
			return err
		}
		return fn(tx, r)
	})
}

func (s *ReservationService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := repos.NewProductRepo(s.Tx.DB()).Get(ctx, id)
	return p, classify(err)
}

func (s *ReservationService) GetReservation(ctx context.Context, id string) (*domain.Reservation, error) {
	r, err := repos.NewReservationRepo(s.Tx.DB()).Get(ctx, id)
	return r, classify(err)
}

func (s *ReservationService) ListReservations(ctx context.Context, f repos.ReservationFilter) ([]domain.Reservation, error) {
	list, err := repos.NewReservationRepo(s.Tx.DB()).Search(ctx, f)
	return list, classify(err)
}

// StockAudit pairs a product's reserved counter with the quantity its
// unreleased reservations add up to. Drift is non-zero only if the two
// have diverged.
type StockAudit struct {
	domain.Product
	LedgerHeld int
	Drift      int
}

// AuditStock lists every product with its reservation ledger total.
func (s *ReservationService) AuditStock(ctx context.Context) ([]StockAudit, error) {
	db := s.Tx.DB()
	products, err := repos.NewProductRepo(db).List(ctx)
	if err != nil {
		return nil, classify(err)
	}
	rr := repos.NewReservationRepo(db)
	out := make([]StockAudit, 0, len(products))
	for _, p := range products {
		held, err := rr.SumActive(ctx, p.ID)
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, StockAudit{Product: p, LedgerHeld: held, Drift: p.ReservedStock - held})
	}
	return out, nil
}

// ProvisionProduct creates a product with initial stock. Ids are never reused.
func (s *ReservationService) ProvisionProduct(ctx context.Context, id, name string, stock int) (*domain.Product, error) {
	p, err := domain.NewProduct(strings.TrimSpace(id), strings.TrimSpace(name), stock, s.now())
	if err != nil {
		return nil, err
	}
	err = s.inTx(ctx, []string{p.ID}, func(tx *repos.Tx) error {
		exists, err := tx.Products.Exists(ctx, p.ID)
		if err != nil {
			return err
		}
		if exists {
			return errors.Wrapf(domain.ErrInvalidArgument, "product %s already exists", p.ID)
		}
		return tx.Products.Insert(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// inTx locks productIDs, then runs fn in a transaction. Any error rolls
// back and releases the locks; infrastructure errors come back as
// domain.ErrTransaction.
func (s *ReservationService) inTx(ctx context.Context, productIDs []string, fn func(tx *repos.Tx) error) error {
	tx, err := s.Tx.BeginLocked(ctx, productIDs...)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return classify(err)
	}
	return classify(tx.Commit())
}

func (s *ReservationService) publish(ctx context.Context, typ string, r *domain.Reservation, now time.Time) {
	if s.Events == nil {
		return
	}
	s.Events.Enqueue(ctx, notify.NewEvent(typ, r.ID, r.ProductID, r.UserID, r.Quantity, r.ExpiresAt, now))
}

var domainErrors = []error{
	domain.ErrInvalidArgument,
	domain.ErrNotFound,
	domain.ErrInsufficientStock,
	domain.ErrAlreadyReleased,
	domain.ErrInvalidState,
	domain.ErrBusy,
	domain.ErrTransaction,
}

// classify passes domain errors through and marks everything else as a
// transaction failure.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrTransaction, err)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidArgument):
		return "invalid"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient"
	case errors.Is(err, domain.ErrAlreadyReleased):
		return "released"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, domain.ErrBusy):
		return "busy"
	default:
		return "error"
	}
}

func finish(span trace.Span, op string, err error) {
	metrics.Reservations.WithLabelValues(op, resultLabel(err)).Inc()
	if errors.Is(err, domain.ErrTransaction) {
		tracing.RecordError(span, err)
	}
	span.End()
}
