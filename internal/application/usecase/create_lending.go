package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openlms/lending-service/internal/application/dto"
	"github.com/openlms/lending-service/internal/domain/domainerr"
	"github.com/openlms/lending-service/internal/domain/model"
	"github.com/openlms/lending-service/internal/domain/port"
	"github.com/openlms/lending-service/internal/domain/service"
)

// PlaceholderTitle is snapshotted when the local book projection has no row
// for the requested ISBN. Creation proceeds anyway: the projection is a cache
// and the books service owns the catalogue.
const PlaceholderTitle = "Title Unavailable"

// LendingTerms carries the configured loan duration and fine rate snapshotted
// into every new lending.
type LendingTerms struct {
	DurationDays    int
	FinePerDayCents int
}

// CreateLendingUseCase creates a lending after policy checks and publishes
// LendingCreated.
type CreateLendingUseCase struct {
	lendings  port.LendingRepository
	books     port.BookDetailsRepository
	readers   port.ReaderDetailsRepository
	policy    *service.LendingPolicy
	publisher port.LendingEventPublisher
	clock     port.Clock
	terms     LendingTerms
	logger    *slog.Logger
}

// NewCreateLendingUseCase wires dependencies.
func NewCreateLendingUseCase(
	lendings port.LendingRepository,
	books port.BookDetailsRepository,
	readers port.ReaderDetailsRepository,
	policy *service.LendingPolicy,
	publisher port.LendingEventPublisher,
	clock port.Clock,
	terms LendingTerms,
	logger *slog.Logger,
) *CreateLendingUseCase {
	return &CreateLendingUseCase{
		lendings:  lendings,
		books:     books,
		readers:   readers,
		policy:    policy,
		publisher: publisher,
		clock:     clock,
		terms:     terms,
		logger:    logger,
	}
}

// Execute creates a lending. The sequence number is the count of lendings
// created this calendar year plus one; concurrent creators race on that
// read-then-increment, and the store's unique lending-number constraint
// rejects the loser with a conflict the caller may retry.
func (uc *CreateLendingUseCase) Execute(ctx context.Context, req dto.CreateLendingRequest) (dto.LendingResponse, error) {
	today := uc.clock.Today()

	if err := uc.policy.CanCreate(ctx, req.ReaderNumber, today); err != nil {
		return dto.LendingResponse{}, err
	}

	if _, err := uc.readers.FindByNumber(ctx, req.ReaderNumber); err != nil {
		if errors.Is(err, domainerr.ErrNotFound) {
			return dto.LendingResponse{}, domainerr.NotFound("reader")
		}
		return dto.LendingResponse{}, fmt.Errorf("find reader: %w", err)
	}

	title := PlaceholderTitle
	book, err := uc.books.FindByIsbn(ctx, req.Isbn)
	switch {
	case err == nil:
		title = book.Title()
	case errors.Is(err, domainerr.ErrNotFound):
		uc.logger.WarnContext(ctx, "book not cached locally, using placeholder title",
			"isbn", req.Isbn)
	default:
		return dto.LendingResponse{}, fmt.Errorf("find book: %w", err)
	}

	count, err := uc.lendings.CountCreatedInYear(ctx, today.Year())
	if err != nil {
		return dto.LendingResponse{}, fmt.Errorf("count lendings this year: %w", err)
	}

	lending, err := model.NewLending(
		req.Isbn, title, req.ReaderNumber,
		today.Year(), count+1,
		today, nil,
		uc.terms.DurationDays, uc.terms.FinePerDayCents,
	)
	if err != nil {
		return dto.LendingResponse{}, err
	}

	if err := uc.lendings.Create(ctx, lending); err != nil {
		return dto.LendingResponse{}, fmt.Errorf("save lending: %w", err)
	}

	// Best-effort: the lending is already durable, a publish failure must not
	// roll it back.
	if err := uc.publisher.SendLendingCreated(ctx, lending); err != nil {
		uc.logger.ErrorContext(ctx, "failed to publish LendingCreated",
			"lending_number", lending.Number().String(), "error", err)
	}

	return toLendingResponse(lending, today), nil
}
