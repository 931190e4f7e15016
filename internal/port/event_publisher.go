package port

import (
	"context"

	"github.com/rl1809/cropchain/internal/core/domain"
)

type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event domain.OrderEvent) error
	Close() error
}
