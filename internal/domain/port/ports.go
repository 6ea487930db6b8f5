package port

import (
	"context"
	"time"

	"github.com/openlms/lending-service/internal/domain/model"
)

// ---------------------------------------------------------------------------
// Paging and search filters
// ---------------------------------------------------------------------------

// Page selects a window of results. The zero value is not valid; use
// DefaultPage when the caller omits paging.
type Page struct {
	Number int
	Limit  int
}

// DefaultPage is the paging applied when a caller omits it.
func DefaultPage() Page { return Page{Number: 1, Limit: 10} }

// Offset returns the row offset for this page.
func (p Page) Offset() int { return (p.Number - 1) * p.Limit }

// SearchFilter narrows a lending search. Zero-valued fields are not applied;
// all applied fields combine with logical AND. Date bounds compare against the
// lending start date.
type SearchFilter struct {
	ReaderNumber string
	Isbn         string
	Returned     *bool
	StartDate    *time.Time
	EndDate      *time.Time
}

// ---------------------------------------------------------------------------
// Repository ports (driven adapters)
// ---------------------------------------------------------------------------

// LendingRepository persists and retrieves lendings.
type LendingRepository interface {
	// Create inserts a new lending. A duplicate lending number fails with
	// domainerr.ErrConflict; callers racing on sequence assignment retry by
	// re-reading the year count.
	Create(ctx context.Context, lending model.Lending) error

	// Update persists the mutable fields of a returned lending, guarded by the
	// aggregate's version: the write applies only where the stored version
	// still matches, and the stored version is incremented by exactly one.
	// Returns the new version, or domainerr.ErrStaleVersion when the guard
	// rejects the write.
	Update(ctx context.Context, lending model.Lending) (int64, error)

	FindByNumber(ctx context.Context, lendingNumber string) (model.Lending, error)
	ListByReaderAndIsbn(ctx context.Context, readerNumber, isbn string) ([]model.Lending, error)
	ListOutstandingByReader(ctx context.Context, readerNumber string) ([]model.Lending, error)
	CountCreatedInYear(ctx context.Context, year int) (int, error)
	Search(ctx context.Context, page Page, filter SearchFilter) ([]model.Lending, error)
	ListOverdue(ctx context.Context, page Page, today time.Time) ([]model.Lending, error)

	// AverageDurationDays returns the mean start-to-return distance in days
	// across returned lendings, 0 when none exist.
	AverageDurationDays(ctx context.Context) (float64, error)
	AverageDurationDaysByIsbn(ctx context.Context, isbn string) (float64, error)
}

// BookDetailsRepository persists the local book projection.
type BookDetailsRepository interface {
	FindByIsbn(ctx context.Context, isbn string) (model.BookDetails, error)

	// Insert adds a projection row, failing with domainerr.ErrConflict when
	// the ISBN is already cached.
	Insert(ctx context.Context, book model.BookDetails) error

	// Upsert inserts or overwrites the row for the book's ISBN. Used by update
	// events so out-of-order delivery self-heals.
	Upsert(ctx context.Context, book model.BookDetails) error
}

// ReaderDetailsRepository persists the local reader projection.
type ReaderDetailsRepository interface {
	FindByNumber(ctx context.Context, readerNumber string) (model.ReaderDetails, error)
	Insert(ctx context.Context, reader model.ReaderDetails) error
	Upsert(ctx context.Context, reader model.ReaderDetails) error
}

// ---------------------------------------------------------------------------
// Event publisher port
// ---------------------------------------------------------------------------

// LendingEventPublisher emits lending lifecycle events to other services.
// Publication is best-effort: the local mutation is already durable when these
// are called, and a failure must never roll it back. Callers log and continue.
type LendingEventPublisher interface {
	SendLendingCreated(ctx context.Context, lending model.Lending) error
	SendLendingUpdated(ctx context.Context, lending model.Lending, version int64) error
	SendLendingUpdatedWithRecommendation(ctx context.Context, lending model.Lending, version int64) error
}

// ---------------------------------------------------------------------------
// Clock port
// ---------------------------------------------------------------------------

// Clock supplies the current date so derived values (days delayed, overdue
// checks) stay pure functions over stored fields.
type Clock interface {
	Today() time.Time
}

// SystemClock is the production Clock backed by the wall clock.
type SystemClock struct{}

// Today returns the current UTC calendar date.
func (SystemClock) Today() time.Time { return model.DateOf(time.Now()) }
