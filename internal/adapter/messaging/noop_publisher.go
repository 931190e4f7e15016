package messaging

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rl1809/cropchain/internal/core/domain"
)

// LogPublisher is used when no brokers are configured; events are only logged.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With().Str("component", "log_publisher").Logger()}
}

func (p *LogPublisher) PublishOrderEvent(ctx context.Context, event domain.OrderEvent) error {
	p.logger.Debug().Int64("order_id", event.OrderID).Str("event", event.Type).Msg("event dropped, no brokers configured")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
