package messaging

import (
	"context"
	"encoding/json"
	"log/slog"

	pkgkafka "github.com/openlms/lending-service/pkg/kafka"

	"github.com/openlms/lending-service/internal/application/usecase"
	"github.com/openlms/lending-service/internal/domain/event"
)

// LendingConsumer handles events on the lendings topic published by peer
// instances of this service. Failures are logged and the message is treated as
// consumed: delivery is at-least-once, the applications are idempotent, and a
// poison payload must not wedge the partition.
type LendingConsumer struct {
	sync   *usecase.SyncLendingUseCase
	logger *slog.Logger
}

// NewLendingConsumer creates the handler for the lendings topic.
func NewLendingConsumer(sync *usecase.SyncLendingUseCase, logger *slog.Logger) *LendingConsumer {
	return &LendingConsumer{sync: sync, logger: logger}
}

// Handle dispatches on the event_type header. Unknown types are skipped;
// this topic also carries recommendation traffic this service ignores.
func (c *LendingConsumer) Handle(ctx context.Context, msg pkgkafka.Message) error {
	route := msg.Headers["event_type"]

	var view event.LendingView
	if err := json.Unmarshal(msg.Value, &view); err != nil {
		c.logger.ErrorContext(ctx, "dropping malformed lending event",
			"event_type", route, "error", err)
		return nil
	}

	var err error
	switch route {
	case event.RouteLendingCreated:
		err = c.sync.ApplyCreated(ctx, view)
	case event.RouteLendingUpdated, event.RouteLendingUpdatedWithRecommendation:
		err = c.sync.ApplyUpdated(ctx, view)
	default:
		return nil
	}

	if err != nil {
		c.logger.ErrorContext(ctx, "failed to apply lending event",
			"event_type", route,
			"lending_number", view.LendingNumber,
			"error", err,
		)
	}
	return nil
}
