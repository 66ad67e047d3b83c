package services

import (
	"context"

	"market/internal/events"

	"go.uber.org/zap"
)

// notifier publishes domain events once their transaction has committed.
// A failed publish is logged and never undoes the operation.
type notifier struct {
	publisher events.Publisher
	logger    *zap.Logger
}

func newNotifier(publisher events.Publisher, logger *zap.Logger) notifier {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return notifier{publisher: publisher, logger: logger}
}

func (n notifier) notify(ctx context.Context, event events.Event) {
	if err := n.publisher.Publish(ctx, event); err != nil {
		n.logger.Warn("failed to publish event",
			zap.String("type", event.Type),
			zap.String("order_id", event.OrderID),
			zap.Error(err))
	}
}
