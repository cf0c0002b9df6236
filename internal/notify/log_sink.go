package notify

import (
	"context"

	"github.com/rs/zerolog"

	applog "stockhold/internal/log"
)

// LogSink writes each event as a log line. Used when no broker is configured.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink() *LogSink {
	return &LogSink{logger: applog.Component("events")}
}

func (s *LogSink) Deliver(_ context.Context, evt Event) error {
	s.logger.Info().
		Str("event", evt.Type).
		Str("event_id", evt.ID).
		Str("reservation_id", evt.ReservationID).
		Str("product_id", evt.ProductID).
		Str("user_id", evt.UserID).
		Int("quantity", evt.Quantity).
		Time("occurred_at", evt.OccurredAt).
		Msg("event")
	return nil
}

func (s *LogSink) Close() error { return nil }
