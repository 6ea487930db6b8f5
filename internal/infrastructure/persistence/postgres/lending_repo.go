package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/openlms/lending-service/internal/domain/domainerr"
	"github.com/openlms/lending-service/internal/domain/model"
	"github.com/openlms/lending-service/internal/domain/port"
	"github.com/openlms/lending-service/internal/domain/valueobject"
	pkgpostgres "github.com/openlms/lending-service/pkg/postgres"
)

// uniqueViolation is the SQLSTATE raised when the unique index on
// lending_number rejects a duplicate insert.
const uniqueViolation = "23505"

const lendingColumns = `
	lending_number, book_isbn, book_title, reader_number,
	start_date, limit_date, returned_date,
	fine_per_day_cents, fine_cents, commentary, version`

// LendingRepo implements port.LendingRepository on PostgreSQL. It holds a
// Querier so callers may hand it a pool or a transaction.
type LendingRepo struct {
	db pkgpostgres.Querier
}

// NewLendingRepo creates a PostgreSQL-backed lending repository.
func NewLendingRepo(db pkgpostgres.Querier) *LendingRepo {
	return &LendingRepo{db: db}
}

// Create inserts a new lending. The unique index on lending_number is the
// arbiter for concurrent creators racing on sequence assignment: the loser
// gets a conflict error and retries with a fresh sequence.
func (r *LendingRepo) Create(ctx context.Context, lending model.Lending) error {
	query := `
		INSERT INTO lendings (` + lendingColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`
	var fineCents *int
	if f := lending.Fine(); f != nil {
		c := f.Cents()
		fineCents = &c
	}
	_, err := r.db.Exec(ctx, query,
		lending.Number().String(), lending.BookIsbn(), lending.BookTitle(), lending.ReaderNumber(),
		lending.StartDate(), lending.LimitDate(), lending.ReturnedDate(),
		lending.FinePerDayCents(), fineCents, lending.Commentary(), lending.Version(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domainerr.Conflict("lending number already exists")
		}
		return fmt.Errorf("insert lending: %w", err)
	}
	return nil
}

// Update persists the return of a lending. The write is compare-and-swapped on
// the aggregate's version; zero rows affected means another writer got there
// first and the caller sees a stale-version error.
func (r *LendingRepo) Update(ctx context.Context, lending model.Lending) (int64, error) {
	query := `
		UPDATE lendings
		SET returned_date = $2, commentary = $3, fine_cents = $4, version = version + 1
		WHERE lending_number = $1 AND version = $5
		RETURNING version
	`
	var fineCents *int
	if f := lending.Fine(); f != nil {
		c := f.Cents()
		fineCents = &c
	}
	var newVersion int64
	err := r.db.QueryRow(ctx, query,
		lending.Number().String(), lending.ReturnedDate(), lending.Commentary(),
		fineCents, lending.Version(),
	).Scan(&newVersion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domainerr.StaleVersion(lending.Version(), -1)
		}
		return 0, fmt.Errorf("update lending: %w", err)
	}
	return newVersion, nil
}

// FindByNumber retrieves a lending by its lending number.
func (r *LendingRepo) FindByNumber(ctx context.Context, lendingNumber string) (model.Lending, error) {
	query := `SELECT ` + lendingColumns + ` FROM lendings WHERE lending_number = $1`
	lending, err := scanLendingRow(r.db.QueryRow(ctx, query, lendingNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Lending{}, domainerr.NotFound("lending")
		}
		return model.Lending{}, err
	}
	return lending, nil
}

// ListByReaderAndIsbn lists all lendings of one book by one reader.
func (r *LendingRepo) ListByReaderAndIsbn(ctx context.Context, readerNumber, isbn string) ([]model.Lending, error) {
	query := `
		SELECT ` + lendingColumns + `
		FROM lendings
		WHERE reader_number = $1 AND book_isbn = $2
		ORDER BY id
	`
	return r.queryLendings(ctx, query, readerNumber, isbn)
}

// ListOutstandingByReader lists a reader's unreturned lendings in insertion
// order; the policy scan depends on that order being stable.
func (r *LendingRepo) ListOutstandingByReader(ctx context.Context, readerNumber string) ([]model.Lending, error) {
	query := `
		SELECT ` + lendingColumns + `
		FROM lendings
		WHERE reader_number = $1 AND returned_date IS NULL
		ORDER BY id
	`
	return r.queryLendings(ctx, query, readerNumber)
}

// CountCreatedInYear counts lendings whose start date falls in the given year.
func (r *LendingRepo) CountCreatedInYear(ctx context.Context, year int) (int, error) {
	query := `SELECT COUNT(*) FROM lendings WHERE date_part('year', start_date) = $1`
	var count int
	if err := r.db.QueryRow(ctx, query, year).Scan(&count); err != nil {
		return 0, fmt.Errorf("count lendings in year: %w", err)
	}
	return count, nil
}

// Search filters lendings with AND-combined predicates and pages the result,
// ordered by lending number.
func (r *LendingRepo) Search(ctx context.Context, page port.Page, filter port.SearchFilter) ([]model.Lending, error) {
	where := []string{}
	args := []any{}

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ReaderNumber != "" {
		where = append(where, "reader_number = "+arg(filter.ReaderNumber))
	}
	if filter.Isbn != "" {
		where = append(where, "book_isbn = "+arg(filter.Isbn))
	}
	if filter.Returned != nil {
		if *filter.Returned {
			where = append(where, "returned_date IS NOT NULL")
		} else {
			where = append(where, "returned_date IS NULL")
		}
	}
	if filter.StartDate != nil {
		where = append(where, "start_date >= "+arg(*filter.StartDate))
	}
	if filter.EndDate != nil {
		where = append(where, "start_date <= "+arg(*filter.EndDate))
	}

	query := `SELECT ` + lendingColumns + ` FROM lendings`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY lending_number LIMIT " + arg(page.Limit) + " OFFSET " + arg(page.Offset())

	return r.queryLendings(ctx, query, args...)
}

// ListOverdue lists unreturned lendings past their limit date, soonest overdue
// first.
func (r *LendingRepo) ListOverdue(ctx context.Context, page port.Page, today time.Time) ([]model.Lending, error) {
	query := `
		SELECT ` + lendingColumns + `
		FROM lendings
		WHERE returned_date IS NULL AND limit_date < $1
		ORDER BY limit_date ASC
		LIMIT $2 OFFSET $3
	`
	return r.queryLendings(ctx, query, model.DateOf(today), page.Limit, page.Offset())
}

// AverageDurationDays averages the start-to-return distance across returned
// lendings, 0 when none exist.
func (r *LendingRepo) AverageDurationDays(ctx context.Context) (float64, error) {
	query := `
		SELECT AVG(returned_date - start_date)::float8
		FROM lendings
		WHERE returned_date IS NOT NULL
	`
	return r.scanAverage(ctx, query)
}

// AverageDurationDaysByIsbn averages the lending duration for a single book.
func (r *LendingRepo) AverageDurationDaysByIsbn(ctx context.Context, isbn string) (float64, error) {
	query := `
		SELECT AVG(returned_date - start_date)::float8
		FROM lendings
		WHERE book_isbn = $1 AND returned_date IS NOT NULL
	`
	return r.scanAverage(ctx, query, isbn)
}

// ---------------------------------------------------------------------------
// internal helpers
// ---------------------------------------------------------------------------

func (r *LendingRepo) queryLendings(ctx context.Context, query string, args ...any) ([]model.Lending, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query lendings: %w", err)
	}
	defer rows.Close()

	var lendings []model.Lending
	for rows.Next() {
		lending, err := scanLendingRow(rows)
		if err != nil {
			return nil, err
		}
		lendings = append(lendings, lending)
	}
	return lendings, rows.Err()
}

func (r *LendingRepo) scanAverage(ctx context.Context, query string, args ...any) (float64, error) {
	var avg *float64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&avg); err != nil {
		return 0, fmt.Errorf("average lending duration: %w", err)
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanLendingRow(s scannable) (model.Lending, error) {
	var (
		numberStr, bookIsbn, bookTitle, readerNumber string
		startDate, limitDate                         time.Time
		returnedDate                                 *time.Time
		finePerDayCents                              int
		fineCents                                    *int
		commentary                                   string
		version                                      int64
	)
	err := s.Scan(
		&numberStr, &bookIsbn, &bookTitle, &readerNumber,
		&startDate, &limitDate, &returnedDate,
		&finePerDayCents, &fineCents, &commentary, &version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Lending{}, err
		}
		return model.Lending{}, fmt.Errorf("scan lending: %w", err)
	}

	number, err := valueobject.ParseLendingNumber(numberStr)
	if err != nil {
		return model.Lending{}, fmt.Errorf("parse stored lending number: %w", err)
	}
	var fine *model.Fine
	if fineCents != nil {
		f := model.ReconstructFine(*fineCents)
		fine = &f
	}
	if returnedDate != nil {
		d := model.DateOf(*returnedDate)
		returnedDate = &d
	}

	return model.ReconstructLending(
		number, bookIsbn, bookTitle, readerNumber,
		model.DateOf(startDate), model.DateOf(limitDate), returnedDate,
		finePerDayCents, fine, commentary, version,
	), nil
}
