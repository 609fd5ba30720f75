package handlers

import (
	"context"

	"socialgraph/application/ports"
	"socialgraph/domain/events"
	"socialgraph/pkg/observability"

	"go.uber.org/zap"
)

// eventSource is implemented by entities that raise domain events
type eventSource interface {
	GetUncommittedEvents() []events.DomainEvent
	MarkEventsAsCommitted()
}

// publishEvents hands the entity's pending events to the publisher. The write
// has already succeeded, so a publish failure is logged and swallowed.
func publishEvents(ctx context.Context, publisher ports.EventPublisher, logger *zap.Logger, source eventSource) {
	pending := source.GetUncommittedEvents()
	if len(pending) == 0 || publisher == nil {
		source.MarkEventsAsCommitted()
		return
	}

	result := "ok"
	if err := publisher.PublishBatch(ctx, pending); err != nil {
		result = "error"
		logger.Error("Failed to publish domain events",
			zap.Int("count", len(pending)),
			zap.String("aggregateID", pending[0].GetAggregateID()),
			zap.Error(err),
		)
	}
	for _, event := range pending {
		observability.EventsPublished.WithLabelValues(event.GetEventType(), result).Inc()
	}
	source.MarkEventsAsCommitted()
}
