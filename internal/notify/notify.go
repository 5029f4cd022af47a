package notify

import (
	"context"

	"lokapos/backend/internal/domain"
)

// Notifier delivers remote-sale events to the fulfilling location.
// Delivery is best effort: a publish failure never rolls back a sale.
type Notifier interface {
	PublishRemoteSale(ctx context.Context, event domain.RemoteSaleEvent) error
}

type NoopNotifier struct{}

func (NoopNotifier) PublishRemoteSale(_ context.Context, _ domain.RemoteSaleEvent) error {
	return nil
}
