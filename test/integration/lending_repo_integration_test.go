//go:build integration

package integration

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlms/lending-service/internal/domain/domainerr"
	"github.com/openlms/lending-service/internal/domain/model"
	"github.com/openlms/lending-service/internal/domain/port"
	"github.com/openlms/lending-service/internal/infrastructure/persistence/postgres"
	"github.com/openlms/lending-service/pkg/testutil"
)

func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..",
		"internal", "infrastructure", "persistence", "postgres", "migrations")
}

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pg := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { pg.Cleanup(t) })

	pg.RunMigrations(t, migrationsDir())

	return pg.Pool
}

func newLending(t *testing.T, sequence int, readerNumber string, startDate time.Time) model.Lending {
	t.Helper()
	lending, err := model.NewLending(
		testutil.TestIsbn1, "O Principezinho", readerNumber,
		startDate.Year(), sequence,
		startDate, nil,
		14, 50,
	)
	require.NoError(t, err)
	return lending
}

func TestLendingRepo_CreateAndFind(t *testing.T) {
	pool := setupTestDB(t)
	repo := postgres.NewLendingRepo(pool)
	ctx := context.Background()

	lending := newLending(t, 1, testutil.TestReaderNumber1, testutil.Date(2024, time.March, 1))
	require.NoError(t, repo.Create(ctx, lending))

	got, err := repo.FindByNumber(ctx, "2024/1")
	require.NoError(t, err)

	assert.Equal(t, lending.Number().String(), got.Number().String())
	assert.Equal(t, lending.BookIsbn(), got.BookIsbn())
	assert.Equal(t, lending.BookTitle(), got.BookTitle())
	assert.Equal(t, lending.ReaderNumber(), got.ReaderNumber())
	assert.Equal(t, lending.StartDate(), got.StartDate())
	assert.Equal(t, lending.LimitDate(), got.LimitDate())
	assert.Nil(t, got.ReturnedDate())
	assert.Nil(t, got.Fine())
	assert.Equal(t, int64(1), got.Version())
}

func TestLendingRepo_DuplicateNumberConflicts(t *testing.T) {
	pool := setupTestDB(t)
	repo := postgres.NewLendingRepo(pool)
	ctx := context.Background()

	lending := newLending(t, 1, testutil.TestReaderNumber1, testutil.Date(2024, time.March, 1))
	require.NoError(t, repo.Create(ctx, lending))

	err := repo.Create(ctx, lending)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerr.ErrConflict)
}

func TestLendingRepo_OptimisticLocking(t *testing.T) {
	pool := setupTestDB(t)
	repo := postgres.NewLendingRepo(pool)
	ctx := context.Background()

	lending := newLending(t, 1, testutil.TestReaderNumber1, testutil.Date(2024, time.March, 1))
	require.NoError(t, repo.Create(ctx, lending))

	// Return the lending late, guarded on version 1.
	returned, err := lending.SetReturned(testutil.Date(2024, time.March, 20), "late")
	require.NoError(t, err)

	newVersion, err := repo.Update(ctx, returned)
	require.NoError(t, err)
	assert.Equal(t, int64(2), newVersion)

	got, err := repo.FindByNumber(ctx, "2024/1")
	require.NoError(t, err)
	require.NotNil(t, got.ReturnedDate())
	assert.Equal(t, testutil.Date(2024, time.March, 20), *got.ReturnedDate())
	require.NotNil(t, got.Fine())
	assert.Equal(t, 250, got.Fine().Cents())
	assert.Equal(t, int64(2), got.Version())

	// A second write still guarded on the stale version 1 must lose.
	_, err = repo.Update(ctx, returned)
	require.Error(t, err)
}

func TestLendingRepo_CountAndOutstanding(t *testing.T) {
	pool := setupTestDB(t)
	repo := postgres.NewLendingRepo(pool)
	ctx := context.Background()

	for seq := 1; seq <= 3; seq++ {
		require.NoError(t, repo.Create(ctx,
			newLending(t, seq, testutil.TestReaderNumber1, testutil.Date(2024, time.March, seq))))
	}
	require.NoError(t, repo.Create(ctx,
		newLending(t, 4, testutil.TestReaderNumber2, testutil.Date(2024, time.March, 4))))

	count, err := repo.CountCreatedInYear(ctx, 2024)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	count, err = repo.CountCreatedInYear(ctx, 2023)
	require.NoError(t, err)
	assert.Zero(t, count)

	outstanding, err := repo.ListOutstandingByReader(ctx, testutil.TestReaderNumber1)
	require.NoError(t, err)
	assert.Len(t, outstanding, 3)
}

func TestLendingRepo_SearchAndOverdue(t *testing.T) {
	pool := setupTestDB(t)
	repo := postgres.NewLendingRepo(pool)
	ctx := context.Background()

	overdue := newLending(t, 1, testutil.TestReaderNumber1, testutil.Date(2024, time.February, 1))
	current := newLending(t, 2, testutil.TestReaderNumber2, testutil.Date(2024, time.March, 18))
	require.NoError(t, repo.Create(ctx, overdue))
	require.NoError(t, repo.Create(ctx, current))

	today := testutil.Date(2024, time.March, 21)

	late, err := repo.ListOverdue(ctx, port.DefaultPage(), today)
	require.NoError(t, err)
	require.Len(t, late, 1)
	assert.Equal(t, "2024/1", late[0].Number().String())

	byReader, err := repo.Search(ctx, port.DefaultPage(), port.SearchFilter{
		ReaderNumber: testutil.TestReaderNumber2,
	})
	require.NoError(t, err)
	require.Len(t, byReader, 1)
	assert.Equal(t, "2024/2", byReader[0].Number().String())

	from := testutil.Date(2024, time.March, 1)
	inWindow, err := repo.Search(ctx, port.DefaultPage(), port.SearchFilter{StartDate: &from})
	require.NoError(t, err)
	assert.Len(t, inWindow, 1)
}

func TestProjectionRepos(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	t.Run("book projection upsert overwrites", func(t *testing.T) {
		repo := postgres.NewBookDetailsRepo(pool)

		book, err := model.NewBookDetails(testutil.TestIsbn1, "Old Title", "Infantil")
		require.NoError(t, err)
		require.NoError(t, repo.Insert(ctx, book))

		require.Error(t, repo.Insert(ctx, book), "duplicate insert must conflict")

		updated, err := model.NewBookDetails(testutil.TestIsbn1, "New Title", "Infantil")
		require.NoError(t, err)
		require.NoError(t, repo.Upsert(ctx, updated))

		got, err := repo.FindByIsbn(ctx, testutil.TestIsbn1)
		require.NoError(t, err)
		assert.Equal(t, "New Title", got.Title())
		assert.Equal(t, int64(2), got.Version())
	})

	t.Run("reader projection round trip", func(t *testing.T) {
		repo := postgres.NewReaderDetailsRepo(pool)

		reader, err := model.NewReaderDetails(testutil.TestReaderNumber1, "Maria Silva")
		require.NoError(t, err)
		require.NoError(t, repo.Insert(ctx, reader))

		got, err := repo.FindByNumber(ctx, testutil.TestReaderNumber1)
		require.NoError(t, err)
		assert.Equal(t, "Maria Silva", got.FullName())
	})
}
