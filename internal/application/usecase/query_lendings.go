package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/openlms/lending-service/internal/application/dto"
	"github.com/openlms/lending-service/internal/domain/domainerr"
	"github.com/openlms/lending-service/internal/domain/event"
	"github.com/openlms/lending-service/internal/domain/model"
	"github.com/openlms/lending-service/internal/domain/port"
)

// searchDefaultWindowDays bounds the default search window when the caller
// supplies no query at all.
const searchDefaultWindowDays = 10

// QueryLendingsUseCase bundles the read-only pass-throughs to the lending store.
type QueryLendingsUseCase struct {
	lendings port.LendingRepository
	clock    port.Clock
}

// NewQueryLendingsUseCase wires dependencies.
func NewQueryLendingsUseCase(lendings port.LendingRepository, clock port.Clock) *QueryLendingsUseCase {
	return &QueryLendingsUseCase{lendings: lendings, clock: clock}
}

// FindByNumber returns a single lending by its lending number.
func (uc *QueryLendingsUseCase) FindByNumber(ctx context.Context, lendingNumber string) (dto.LendingResponse, error) {
	lending, err := uc.lendings.FindByNumber(ctx, lendingNumber)
	if err != nil {
		return dto.LendingResponse{}, fmt.Errorf("find lending: %w", err)
	}
	return toLendingResponse(lending, uc.clock.Today()), nil
}

// ListByReaderAndIsbn lists a reader's lendings of one book, optionally
// filtered by return status.
func (uc *QueryLendingsUseCase) ListByReaderAndIsbn(ctx context.Context, readerNumber, isbn string, returned *bool) ([]dto.LendingResponse, error) {
	lendings, err := uc.lendings.ListByReaderAndIsbn(ctx, readerNumber, isbn)
	if err != nil {
		return nil, fmt.Errorf("list lendings: %w", err)
	}
	today := uc.clock.Today()
	out := make([]dto.LendingResponse, 0, len(lendings))
	for _, l := range lendings {
		if returned != nil && (l.ReturnedDate() != nil) != *returned {
			continue
		}
		out = append(out, toLendingResponse(l, today))
	}
	return out, nil
}

// Search filters lendings by reader, ISBN, return status and start-date range,
// all combined with logical AND. A nil query defaults to the last
// searchDefaultWindowDays days; invalid date strings fail with an
// invalid-input error.
func (uc *QueryLendingsUseCase) Search(ctx context.Context, page *dto.PageRequest, query *dto.SearchLendingsQuery) ([]dto.LendingResponse, error) {
	today := uc.clock.Today()

	if query == nil {
		from := today.AddDate(0, 0, -searchDefaultWindowDays).Format(event.DateLayout)
		query = &dto.SearchLendingsQuery{StartDate: from}
	}

	filter := port.SearchFilter{
		ReaderNumber: query.ReaderNumber,
		Isbn:         query.Isbn,
		Returned:     query.Returned,
	}
	var err error
	if filter.StartDate, err = parseDateFilter(query.StartDate); err != nil {
		return nil, err
	}
	if filter.EndDate, err = parseDateFilter(query.EndDate); err != nil {
		return nil, err
	}

	lendings, err := uc.lendings.Search(ctx, toPage(page), filter)
	if err != nil {
		return nil, fmt.Errorf("search lendings: %w", err)
	}
	return toLendingResponses(lendings, today), nil
}

// GetOverdue lists outstanding lendings past their limit date, soonest overdue
// first.
func (uc *QueryLendingsUseCase) GetOverdue(ctx context.Context, page *dto.PageRequest) ([]dto.LendingResponse, error) {
	today := uc.clock.Today()
	lendings, err := uc.lendings.ListOverdue(ctx, toPage(page), today)
	if err != nil {
		return nil, fmt.Errorf("list overdue lendings: %w", err)
	}
	return toLendingResponses(lendings, today), nil
}

// GetAverageDuration reports the mean lending duration in days across all
// returned lendings, rounded to one decimal.
func (uc *QueryLendingsUseCase) GetAverageDuration(ctx context.Context) (dto.AverageDurationResponse, error) {
	avg, err := uc.lendings.AverageDurationDays(ctx)
	if err != nil {
		return dto.AverageDurationResponse{}, fmt.Errorf("average duration: %w", err)
	}
	return dto.AverageDurationResponse{Days: roundOneDecimal(avg)}, nil
}

// GetAverageDurationByIsbn reports the mean lending duration for one book.
func (uc *QueryLendingsUseCase) GetAverageDurationByIsbn(ctx context.Context, isbn string) (dto.AverageDurationResponse, error) {
	avg, err := uc.lendings.AverageDurationDaysByIsbn(ctx, isbn)
	if err != nil {
		return dto.AverageDurationResponse{}, fmt.Errorf("average duration by isbn: %w", err)
	}
	return dto.AverageDurationResponse{Days: roundOneDecimal(avg)}, nil
}

// ---------------------------------------------------------------------------
// shared mapping helpers
// ---------------------------------------------------------------------------

func toPage(page *dto.PageRequest) port.Page {
	if page == nil || page.Number < 1 || page.Limit < 1 {
		return port.DefaultPage()
	}
	return port.Page{Number: page.Number, Limit: page.Limit}
}

func parseDateFilter(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(event.DateLayout, s)
	if err != nil {
		return nil, domainerr.InvalidInput("expected date format is YYYY-MM-DD")
	}
	t = model.DateOf(t)
	return &t, nil
}

func roundOneDecimal(v float64) float64 {
	return math.Round(v*10) / 10
}

func toLendingResponse(l model.Lending, today time.Time) dto.LendingResponse {
	resp := dto.LendingResponse{
		LendingNumber: l.Number().String(),
		Isbn:          l.BookIsbn(),
		Title:         l.BookTitle(),
		ReaderNumber:  l.ReaderNumber(),
		StartDate:     l.StartDate().Format(event.DateLayout),
		LimitDate:     l.LimitDate().Format(event.DateLayout),
		DaysDelayed:   l.DaysDelayed(today),
		Commentary:    l.Commentary(),
		Version:       l.Version(),
	}
	if d := l.ReturnedDate(); d != nil {
		s := d.Format(event.DateLayout)
		resp.ReturnedDate = &s
	}
	if f := l.Fine(); f != nil {
		cents := f.Cents()
		resp.FineCents = &cents
	}
	return resp
}

func toLendingResponses(lendings []model.Lending, today time.Time) []dto.LendingResponse {
	out := make([]dto.LendingResponse, 0, len(lendings))
	for _, l := range lendings {
		out = append(out, toLendingResponse(l, today))
	}
	return out
}
