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

// ReaderDetailsRepo implements port.ReaderDetailsRepository on PostgreSQL.
type ReaderDetailsRepo struct {
	db pkgpostgres.Querier
}

// NewReaderDetailsRepo creates a PostgreSQL-backed reader projection repository.
func NewReaderDetailsRepo(db pkgpostgres.Querier) *ReaderDetailsRepo {
	return &ReaderDetailsRepo{db: db}
}

func (r *ReaderDetailsRepo) FindByNumber(ctx context.Context, readerNumber string) (model.ReaderDetails, error) {
	query := `SELECT reader_number, full_name, version FROM reader_details WHERE reader_number = $1`
	var (
		number, fullName string
		version          int64
	)
	err := r.db.QueryRow(ctx, query, readerNumber).Scan(&number, &fullName, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ReaderDetails{}, domainerr.NotFound("reader")
		}
		return model.ReaderDetails{}, fmt.Errorf("find reader details: %w", err)
	}
	return model.ReconstructReaderDetails(number, fullName, version), nil
}

func (r *ReaderDetailsRepo) Insert(ctx context.Context, reader model.ReaderDetails) error {
	query := `INSERT INTO reader_details (reader_number, full_name, version) VALUES ($1, $2, $3)`
	_, err := r.db.Exec(ctx, query, reader.ReaderNumber(), reader.FullName(), reader.Version())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domainerr.Conflict("reader already cached")
		}
		return fmt.Errorf("insert reader details: %w", err)
	}
	return nil
}

func (r *ReaderDetailsRepo) Upsert(ctx context.Context, reader model.ReaderDetails) error {
	query := `
		INSERT INTO reader_details (reader_number, full_name, version)
		VALUES ($1, $2, $3)
		ON CONFLICT (reader_number) DO UPDATE
		SET full_name = EXCLUDED.full_name,
		    version = reader_details.version + 1
	`
	if _, err := r.db.Exec(ctx, query, reader.ReaderNumber(), reader.FullName(), reader.Version()); err != nil {
		return fmt.Errorf("upsert reader details: %w", err)
	}
	return nil
}
