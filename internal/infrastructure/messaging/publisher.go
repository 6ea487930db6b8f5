package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	pkgkafka "github.com/openlms/lending-service/pkg/kafka"

	"github.com/openlms/lending-service/internal/domain/event"
	"github.com/openlms/lending-service/internal/domain/model"
)

// Publisher implements port.LendingEventPublisher by writing flattened lending
// views to the lendings topic, keyed by lending number so all events for one
// lending land on the same partition.
type Publisher struct {
	producer *pkgkafka.Producer
	logger   *slog.Logger
}

// NewPublisher creates a Kafka-based lending event publisher.
func NewPublisher(producer *pkgkafka.Producer, logger *slog.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		logger:   logger,
	}
}

// SendLendingCreated publishes the creation of a lending. The view carries the
// aggregate's initial version.
func (p *Publisher) SendLendingCreated(ctx context.Context, lending model.Lending) error {
	view := event.NewLendingView(lending, lending.Version())
	return p.send(ctx, event.RouteLendingCreated, view)
}

// SendLendingUpdated publishes the return of a lending. The version argument
// is the expected version peers must hold for their own optimistic gate to
// match, not the incremented counter the local write produced.
func (p *Publisher) SendLendingUpdated(ctx context.Context, lending model.Lending, version int64) error {
	view := event.NewLendingView(lending, version)
	return p.send(ctx, event.RouteLendingUpdated, view)
}

// SendLendingUpdatedWithRecommendation publishes a return the reader flagged
// as recommended, for the recommendations service to pick up.
func (p *Publisher) SendLendingUpdatedWithRecommendation(ctx context.Context, lending model.Lending, version int64) error {
	view := event.NewLendingView(lending, version)
	view.Recommended = true
	return p.send(ctx, event.RouteLendingUpdatedWithRecommendation, view)
}

func (p *Publisher) send(ctx context.Context, route string, view event.LendingView) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", route, err)
	}

	p.logger.DebugContext(ctx, "publishing event",
		"topic", event.TopicLendings,
		"event_type", route,
		"lending_number", view.LendingNumber,
		"payload_size", len(payload),
	)

	msg := pkgkafka.Message{
		Key:   []byte(view.LendingNumber),
		Value: payload,
		Headers: map[string]string{
			"event_type": route,
			"message_id": uuid.NewString(),
		},
	}
	if err := p.producer.Publish(ctx, event.TopicLendings, msg); err != nil {
		return fmt.Errorf("publish %s: %w", route, err)
	}
	return nil
}

// Close shuts down the underlying producer.
func (p *Publisher) Close() error {
	return p.producer.Close()
}
