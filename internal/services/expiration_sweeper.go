package services

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"stockhold/internal/domain"
	applog "stockhold/internal/log"
	"stockhold/internal/metrics"
	"stockhold/internal/notify"
	"stockhold/internal/repos"
	"stockhold/internal/tracing"
)

const (
	DefaultSweepInterval = 30 * time.Second
	DefaultSweepBatch    = 500
)

// ExpirationSweeper periodically returns the stock of expired holds.
type ExpirationSweeper struct {
	Tx        *repos.TxManager
	Events    Publisher
	Interval  time.Duration
	BatchSize int
	Now       func() time.Time

	logger zerolog.Logger
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewExpirationSweeper(txm *repos.TxManager, events Publisher, interval time.Duration, batch int) *ExpirationSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if batch <= 0 {
		batch = DefaultSweepBatch
	}
	return &ExpirationSweeper{
		Tx:        txm,
		Events:    events,
		Interval:  interval,
		BatchSize: batch,
		Now:       time.Now,
		logger:    applog.Component("sweeper"),
	}
}

// Run sweeps every Interval until ctx is cancelled. A failed tick is logged
// and retried on the next one.
func (s *ExpirationSweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.Interval)
	defer t.Stop()
	s.logger.Info().Dur("interval", s.Interval).Int("batch", s.BatchSize).Msg("sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("sweeper stopped")
			return nil
		case <-t.C:
			n, err := s.Sweep(ctx)
			switch {
			case err != nil && ctx.Err() != nil:
				return nil
			case err != nil:
				metrics.SweepTicks.WithLabelValues("error").Inc()
				s.logger.Error().Err(err).Msg("sweep failed")
			case n > 0:
				metrics.SweepTicks.WithLabelValues("released").Inc()
				s.logger.Info().Int("released", n).Msg("released expired reservations")
			default:
				metrics.SweepTicks.WithLabelValues("idle").Inc()
			}
		}
	}
}

// Start runs the sweeper in the background. Calling it twice is a no-op.
func (s *ExpirationSweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		_ = s.Run(ctx)
	}(s.done)
}

// Stop cancels a started sweeper and waits for the current tick to finish.
func (s *ExpirationSweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Sweep releases up to BatchSize expired holds in one transaction and
// reports how many it released.
func (s *ExpirationSweeper) Sweep(ctx context.Context) (int, error) {
	ctx, span := tracing.Tracer().Start(ctx, "reservation.sweep")
	defer span.End()

	now := s.now()
	expired, err := repos.NewReservationRepo(s.Tx.DB()).ListExpired(ctx, now, s.BatchSize)
	if err != nil {
		tracing.RecordError(span, err)
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	released, err := s.releaseAll(ctx, expired, now)
	if err != nil {
		tracing.RecordError(span, err)
		return 0, err
	}
	span.SetAttributes(attribute.Int("released", len(released)))
	metrics.SweptReservations.Add(float64(len(released)))

	if s.Events != nil {
		for _, r := range released {
			s.Events.Enqueue(ctx, notify.NewEvent(notify.ReservationExpired, r.ID, r.ProductID, r.UserID, r.Quantity, r.ExpiresAt, now))
		}
	}
	return len(released), nil
}

func (s *ExpirationSweeper) releaseAll(ctx context.Context, expired []domain.Reservation, now time.Time) ([]*domain.Reservation, error) {
	ids := make([]string, 0, len(expired))
	for _, r := range expired {
		ids = append(ids, r.ProductID)
	}
	tx, err := s.Tx.BeginLocked(ctx, ids...)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	products := map[string]*domain.Product{}
	var released []*domain.Reservation
	for _, e := range expired {
		// a user may have released or confirmed it since the scan
		r, err := tx.Reservations.Get(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		if r.Released {
			continue
		}
		p, ok := products[r.ProductID]
		if !ok {
			if p, err = tx.Products.Get(ctx, r.ProductID); err != nil {
				return nil, errors.Wrapf(err, "reservation %s", r.ID)
			}
			products[r.ProductID] = p
		}
		p.Release(r.Quantity, now)
		if err := r.Release(now); err != nil {
			return nil, err
		}
		if err := tx.Reservations.MarkReleased(ctx, r); err != nil {
			return nil, err
		}
		released = append(released, r)
	}
	for _, p := range products {
		if err := tx.Products.Update(ctx, p); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return released, nil
}

func (s *ExpirationSweeper) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}
