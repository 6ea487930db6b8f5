package model

import (
	"time"

	"github.com/openlms/lending-service/internal/domain/domainerr"
	"github.com/openlms/lending-service/internal/domain/valueobject"
)

// ---------------------------------------------------------------------------
// Lending aggregate root
// ---------------------------------------------------------------------------

// Lending is a single loan of a book to a reader. The aggregate is immutable:
// mutations return a new copy. The version counter is the sole concurrency
// guard; the repository increments it by exactly one per successful write.
//
// Book data is a denormalised snapshot (ISBN and title at lending time), not a
// reference to a Book aggregate: the book catalogue lives in another service.
type Lending struct {
	number          valueobject.LendingNumber
	bookIsbn        string
	bookTitle       string
	readerNumber    string
	startDate       time.Time
	limitDate       time.Time
	returnedDate    *time.Time
	finePerDayCents int
	fine            *Fine
	commentary      string
	version         int64
}

// DateOf truncates t to a calendar date at midnight UTC. All lending dates are
// stored in this form so day arithmetic stays exact.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)).Hours() / 24)
}

// NewLending creates a lending. The limit date is always startDate plus
// durationDays. A non-nil returnedDate supports back-dated creation
// (bootstrap and replication); if it already lies past the limit date a fine
// is computed eagerly.
func NewLending(
	bookIsbn, bookTitle, readerNumber string,
	year, sequence int,
	startDate time.Time,
	returnedDate *time.Time,
	durationDays, finePerDayCents int,
) (Lending, error) {
	if bookIsbn == "" {
		return Lending{}, domainerr.InvalidInput("book isbn is required")
	}
	if readerNumber == "" {
		return Lending{}, domainerr.InvalidInput("reader number is required")
	}
	if durationDays <= 0 {
		return Lending{}, domainerr.InvalidInput("lending duration must be positive")
	}
	if finePerDayCents < 0 {
		return Lending{}, domainerr.InvalidInput("fine value cannot be negative")
	}

	number, err := valueobject.NewLendingNumber(year, sequence)
	if err != nil {
		return Lending{}, err
	}

	start := DateOf(startDate)
	l := Lending{
		number:          number,
		bookIsbn:        bookIsbn,
		bookTitle:       bookTitle,
		readerNumber:    readerNumber,
		startDate:       start,
		limitDate:       start.AddDate(0, 0, durationDays),
		finePerDayCents: finePerDayCents,
		version:         1,
	}

	if returnedDate != nil {
		returned := DateOf(*returnedDate)
		if returned.Before(start) {
			return Lending{}, domainerr.InvalidInput("returned date cannot precede start date")
		}
		l.returnedDate = &returned
		if returned.After(l.limitDate) {
			fine := NewFine(daysBetween(l.limitDate, returned), finePerDayCents)
			l.fine = &fine
		}
	}

	return l, nil
}

// ReconstructLending rebuilds a Lending aggregate from persistence.
func ReconstructLending(
	number valueobject.LendingNumber,
	bookIsbn, bookTitle, readerNumber string,
	startDate, limitDate time.Time,
	returnedDate *time.Time,
	finePerDayCents int,
	fine *Fine,
	commentary string,
	version int64,
) Lending {
	return Lending{
		number:          number,
		bookIsbn:        bookIsbn,
		bookTitle:       bookTitle,
		readerNumber:    readerNumber,
		startDate:       startDate,
		limitDate:       limitDate,
		returnedDate:    returnedDate,
		finePerDayCents: finePerDayCents,
		fine:            fine,
		commentary:      commentary,
		version:         version,
	}
}

// ---------------------------------------------------------------------------
// State transitions
// ---------------------------------------------------------------------------

// SetReturned marks the lending as returned. A lending can be returned exactly
// once; a second call fails with a conflict regardless of arguments. When the
// return lands after the limit date a fine is computed from the rate that was
// in effect at creation time.
//
// The optimistic version comparison is not performed here: the application
// layer compares the caller-supplied expected version against the stored one
// before applying this transition, and the repository guards the write itself.
func (l Lending) SetReturned(returnedDate time.Time, commentary string) (Lending, error) {
	if l.returnedDate != nil {
		return l, domainerr.Conflict("lending already returned")
	}
	returned := DateOf(returnedDate)
	if returned.Before(l.startDate) {
		return l, domainerr.InvalidInput("returned date cannot precede start date")
	}

	next := l
	next.returnedDate = &returned
	next.commentary = commentary
	if returned.After(l.limitDate) {
		fine := NewFine(daysBetween(l.limitDate, returned), l.finePerDayCents)
		next.fine = &fine
	}
	return next, nil
}

// ---------------------------------------------------------------------------
// Derived values (never persisted)
// ---------------------------------------------------------------------------

// DaysDelayed returns how many days the lending is past its limit date: for a
// returned lending, the distance from limit date to returned date; otherwise
// the distance from limit date to today. Never negative.
func (l Lending) DaysDelayed(today time.Time) int {
	ref := DateOf(today)
	if l.returnedDate != nil {
		ref = *l.returnedDate
	}
	if d := daysBetween(l.limitDate, ref); d > 0 {
		return d
	}
	return 0
}

// DaysUntilReturn returns how many days remain until the limit date for an
// outstanding lending, zero once the lending is returned or overdue.
func (l Lending) DaysUntilReturn(today time.Time) int {
	if l.returnedDate != nil {
		return 0
	}
	if d := daysBetween(DateOf(today), l.limitDate); d > 0 {
		return d
	}
	return 0
}

// IsOverdue reports whether the lending is outstanding past its limit date.
func (l Lending) IsOverdue(today time.Time) bool {
	return l.returnedDate == nil && DateOf(today).After(l.limitDate)
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

func (l Lending) Number() valueobject.LendingNumber { return l.number }
func (l Lending) BookIsbn() string                  { return l.bookIsbn }
func (l Lending) BookTitle() string                 { return l.bookTitle }
func (l Lending) ReaderNumber() string              { return l.readerNumber }
func (l Lending) StartDate() time.Time              { return l.startDate }
func (l Lending) LimitDate() time.Time              { return l.limitDate }
func (l Lending) FinePerDayCents() int              { return l.finePerDayCents }
func (l Lending) Commentary() string                { return l.commentary }
func (l Lending) Version() int64                    { return l.version }

// ReturnedDate returns the return date, or nil while outstanding.
func (l Lending) ReturnedDate() *time.Time {
	if l.returnedDate == nil {
		return nil
	}
	d := *l.returnedDate
	return &d
}

// Fine returns the fine attached to this lending, or nil when none applies.
func (l Lending) Fine() *Fine {
	if l.fine == nil {
		return nil
	}
	f := *l.fine
	return &f
}
