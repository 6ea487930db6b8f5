package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/openlms/lending-service/internal/domain/domainerr"
	"github.com/openlms/lending-service/internal/domain/model"
	pkgpostgres "github.com/openlms/lending-service/pkg/postgres"
)

// BookDetailsRepo implements port.BookDetailsRepository on PostgreSQL.
type BookDetailsRepo struct {
	db pkgpostgres.Querier
}

// NewBookDetailsRepo creates a PostgreSQL-backed book projection repository.
func NewBookDetailsRepo(db pkgpostgres.Querier) *BookDetailsRepo {
	return &BookDetailsRepo{db: db}
}

func (r *BookDetailsRepo) FindByIsbn(ctx context.Context, isbn string) (model.BookDetails, error) {
	query := `SELECT isbn, title, genre, version FROM book_details WHERE isbn = $1`
	var (
		gotIsbn, title, genre string
		version               int64
	)
	err := r.db.QueryRow(ctx, query, isbn).Scan(&gotIsbn, &title, &genre, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.BookDetails{}, domainerr.NotFound("book")
		}
		return model.BookDetails{}, fmt.Errorf("find book details: %w", err)
	}
	return model.ReconstructBookDetails(gotIsbn, title, genre, version), nil
}

func (r *BookDetailsRepo) Insert(ctx context.Context, book model.BookDetails) error {
	query := `INSERT INTO book_details (isbn, title, genre, version) VALUES ($1, $2, $3, $4)`
	_, err := r.db.Exec(ctx, query, book.Isbn(), book.Title(), book.Genre(), book.Version())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domainerr.Conflict("book already cached")
		}
		return fmt.Errorf("insert book details: %w", err)
	}
	return nil
}

func (r *BookDetailsRepo) Upsert(ctx context.Context, book model.BookDetails) error {
	query := `
		INSERT INTO book_details (isbn, title, genre, version)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (isbn) DO UPDATE
		SET title = EXCLUDED.title, genre = EXCLUDED.genre,
		    version = book_details.version + 1
	`
	if _, err := r.db.Exec(ctx, query, book.Isbn(), book.Title(), book.Genre(), book.Version()); err != nil {
		return fmt.Errorf("upsert book details: %w", err)
	}
	return nil
}
