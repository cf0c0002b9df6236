package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	applog "stockhold/internal/log"
	"stockhold/internal/metrics"
)

// Sink delivers one event. A returned error is treated as transient.
type Sink interface {
	Deliver(ctx context.Context, evt Event) error
	Close() error
}

// Notifier retries deliveries with exponential backoff and gives up quietly.
// Callers never see a delivery failure.
type Notifier struct {
	Sink        Sink
	MaxAttempts int
	BaseDelay   time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	logger zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func New(sink Sink, maxAttempts int, baseDelay time.Duration) *Notifier {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay < 0 {
		baseDelay = time.Second
	}
	return &Notifier{
		Sink:        sink,
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		logger:      applog.Component("notifier"),
		sleep:       sleepCtx,
	}
}

// Publish blocks until evt is delivered, attempts run out or ctx ends.
func (n *Notifier) Publish(ctx context.Context, evt Event) {
	for attempt := 1; attempt <= n.MaxAttempts; attempt++ {
		err := n.Sink.Deliver(ctx, evt)
		if err == nil {
			metrics.Deliveries.WithLabelValues("ok").Inc()
			return
		}
		if attempt == n.MaxAttempts {
			metrics.Deliveries.WithLabelValues("dropped").Inc()
			n.logger.Error().Err(err).
				Str("event", evt.Type).
				Str("reservation_id", evt.ReservationID).
				Int("attempts", attempt).
				Msg("event dropped")
			return
		}
		metrics.Deliveries.WithLabelValues("retry").Inc()
		delay := n.BaseDelay << (attempt - 1)
		n.logger.Warn().Err(err).
			Str("event", evt.Type).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("delivery failed, retrying")
		if err := n.sleep(ctx, delay); err != nil {
			metrics.Deliveries.WithLabelValues("dropped").Inc()
			n.logger.Warn().Err(err).Str("event", evt.Type).Msg("delivery abandoned")
			return
		}
	}
}

// Enqueue publishes in the background. The delivery keeps the values of ctx
// (trace context) but not its cancellation. Events enqueued after Close are
// dropped.
func (n *Notifier) Enqueue(ctx context.Context, evt Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		metrics.Deliveries.WithLabelValues("dropped").Inc()
		n.logger.Warn().Str("event", evt.Type).Str("reservation_id", evt.ReservationID).Msg("notifier closed, event dropped")
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.Publish(context.WithoutCancel(ctx), evt)
	}()
}

// Close waits for in-flight deliveries, bounded by ctx, then closes the sink.
func (n *Notifier) Close(ctx context.Context) error {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		n.logger.Warn().Msg("closing with deliveries still in flight")
	}
	return n.Sink.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
