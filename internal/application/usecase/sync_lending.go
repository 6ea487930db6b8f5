package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openlms/lending-service/internal/domain/domainerr"
	"github.com/openlms/lending-service/internal/domain/event"
	"github.com/openlms/lending-service/internal/domain/port"
	"github.com/openlms/lending-service/internal/domain/valueobject"

	"github.com/openlms/lending-service/internal/domain/model"
)

// SyncLendingUseCase applies lending events received from peer service
// instances. Delivery is at-least-once and unordered, so every application
// must be idempotent: a duplicate create is a no-op and an update that misses
// its version gate is surfaced for the handler to log and drop.
type SyncLendingUseCase struct {
	lendings port.LendingRepository
	books    port.BookDetailsRepository
	readers  port.ReaderDetailsRepository
	clock    port.Clock
	terms    LendingTerms
	logger   *slog.Logger
}

// NewSyncLendingUseCase wires dependencies.
func NewSyncLendingUseCase(
	lendings port.LendingRepository,
	books port.BookDetailsRepository,
	readers port.ReaderDetailsRepository,
	clock port.Clock,
	terms LendingTerms,
	logger *slog.Logger,
) *SyncLendingUseCase {
	return &SyncLendingUseCase{
		lendings: lendings,
		books:    books,
		readers:  readers,
		clock:    clock,
		terms:    terms,
		logger:   logger,
	}
}

// ApplyCreated replicates a lending created on a peer instance, keeping the
// peer's lending number. A lending that already exists locally means the event
// is a duplicate delivery; that is a logged no-op, not an error.
func (uc *SyncLendingUseCase) ApplyCreated(ctx context.Context, view event.LendingView) error {
	number, err := valueobject.ParseLendingNumber(view.LendingNumber)
	if err != nil {
		return fmt.Errorf("parse lending number %q: %w", view.LendingNumber, err)
	}

	if _, err := uc.lendings.FindByNumber(ctx, number.String()); err == nil {
		uc.logger.InfoContext(ctx, "lending already exists, ignoring duplicate LendingCreated",
			"lending_number", number.String())
		return nil
	} else if !errors.Is(err, domainerr.ErrNotFound) {
		return fmt.Errorf("find lending: %w", err)
	}

	if _, err := uc.readers.FindByNumber(ctx, view.ReaderNumber); err != nil {
		if errors.Is(err, domainerr.ErrNotFound) {
			return domainerr.NotFound("reader")
		}
		return fmt.Errorf("find reader: %w", err)
	}

	title := PlaceholderTitle
	if book, err := uc.books.FindByIsbn(ctx, view.Isbn); err == nil {
		title = book.Title()
	}

	lending, err := model.NewLending(
		view.Isbn, title, view.ReaderNumber,
		number.Year(), number.Sequence(),
		uc.clock.Today(), nil,
		uc.terms.DurationDays, uc.terms.FinePerDayCents,
	)
	if err != nil {
		return err
	}

	if err := uc.lendings.Create(ctx, lending); err != nil {
		if errors.Is(err, domainerr.ErrConflict) {
			// Lost a race with another replica applying the same event.
			uc.logger.InfoContext(ctx, "lending inserted concurrently, ignoring duplicate",
				"lending_number", number.String())
			return nil
		}
		return fmt.Errorf("save lending: %w", err)
	}
	return nil
}

// ApplyUpdated replicates a return performed on a peer instance. Payloads
// without a returned date carry nothing to apply and are skipped. The
// payload's version (absent means 0) serves as the expected version for the
// optimistic gate.
func (uc *SyncLendingUseCase) ApplyUpdated(ctx context.Context, view event.LendingView) error {
	returnedDate, err := view.ParseReturnedDate()
	if err != nil {
		return fmt.Errorf("parse returned date: %w", err)
	}
	if returnedDate == nil {
		return nil
	}

	lending, err := uc.lendings.FindByNumber(ctx, view.LendingNumber)
	if err != nil {
		return fmt.Errorf("find lending: %w", err)
	}

	expected := view.VersionOrZero()
	if expected != lending.Version() {
		return domainerr.StaleVersion(expected, lending.Version())
	}

	commentary := ""
	if view.Commentary != nil {
		commentary = *view.Commentary
	}
	lending, err = lending.SetReturned(*returnedDate, commentary)
	if err != nil {
		return err
	}

	if _, err := uc.lendings.Update(ctx, lending); err != nil {
		return fmt.Errorf("save lending: %w", err)
	}
	return nil
}
