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

// BookConsumer maintains the local book projection from events published by
// the books service. Like all consumers here it logs failures and moves on.
type BookConsumer struct {
	books  port.BookDetailsRepository
	logger *slog.Logger
}

// NewBookConsumer creates the handler for the books topic.
func NewBookConsumer(books port.BookDetailsRepository, logger *slog.Logger) *BookConsumer {
	return &BookConsumer{books: books, logger: logger}
}

// Handle applies BookCreated as an insert (duplicates are no-ops) and
// BookUpdated as an upsert, so a missed create self-heals on the next update.
func (c *BookConsumer) Handle(ctx context.Context, msg pkgkafka.Message) error {
	route := msg.Headers["event_type"]

	var view event.BookView
	if err := json.Unmarshal(msg.Value, &view); err != nil {
		c.logger.ErrorContext(ctx, "dropping malformed book event",
			"event_type", route, "error", err)
		return nil
	}

	book, err := model.NewBookDetails(view.Isbn, view.Title, view.Genre)
	if err != nil {
		c.logger.ErrorContext(ctx, "dropping invalid book event",
			"event_type", route, "isbn", view.Isbn, "error", err)
		return nil
	}

	switch route {
	case event.RouteBookCreated:
		err = c.books.Insert(ctx, book)
		if errors.Is(err, domainerr.ErrConflict) {
			c.logger.InfoContext(ctx, "book already cached, ignoring duplicate BookCreated",
				"isbn", view.Isbn)
			return nil
		}
	case event.RouteBookUpdated:
		err = c.books.Upsert(ctx, book)
	default:
		return nil
	}

	if err != nil {
		c.logger.ErrorContext(ctx, "failed to apply book event",
			"event_type", route, "isbn", view.Isbn, "error", err)
	}
	return nil
}
