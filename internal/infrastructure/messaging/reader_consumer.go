package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	pkgkafka "github.com/openlms/lending-service/pkg/kafka"

	"github.com/openlms/lending-service/internal/domain/domainerr"
	"github.com/openlms/lending-service/internal/domain/event"
	"github.com/openlms/lending-service/internal/domain/model"
	"github.com/openlms/lending-service/internal/domain/port"
)

// ReaderConsumer maintains the local reader projection from events published
// by the readers service.
type ReaderConsumer struct {
	readers port.ReaderDetailsRepository
	logger  *slog.Logger
}

// NewReaderConsumer creates the handler for the readers topic.
func NewReaderConsumer(readers port.ReaderDetailsRepository, logger *slog.Logger) *ReaderConsumer {
	return &ReaderConsumer{readers: readers, logger: logger}
}

// Handle applies ReaderCreated as an insert and ReaderUpdated as an upsert.
func (c *ReaderConsumer) Handle(ctx context.Context, msg pkgkafka.Message) error {
	route := msg.Headers["event_type"]

	var view event.ReaderView
	if err := json.Unmarshal(msg.Value, &view); err != nil {
		c.logger.ErrorContext(ctx, "dropping malformed reader event",
			"event_type", route, "error", err)
		return nil
	}

	reader, err := model.NewReaderDetails(view.ReaderNumber, view.FullName)
	if err != nil {
		c.logger.ErrorContext(ctx, "dropping invalid reader event",
			"event_type", route, "reader_number", view.ReaderNumber, "error", err)
		return nil
	}

	switch route {
	case event.RouteReaderCreated:
		err = c.readers.Insert(ctx, reader)
		if errors.Is(err, domainerr.ErrConflict) {
			c.logger.InfoContext(ctx, "reader already cached, ignoring duplicate ReaderCreated",
				"reader_number", view.ReaderNumber)
			return nil
		}
	case event.RouteReaderUpdated:
		err = c.readers.Upsert(ctx, reader)
	default:
		return nil
	}

	if err != nil {
		c.logger.ErrorContext(ctx, "failed to apply reader event",
			"event_type", route, "reader_number", view.ReaderNumber, "error", err)
	}
	return nil
}
