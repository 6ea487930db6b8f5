package usecase_test

import (
	"context"
	"time"

	"github.com/openlms/lending-service/internal/domain/domainerr"
	"github.com/openlms/lending-service/internal/domain/model"
	"github.com/openlms/lending-service/internal/domain/port"
)

// Hand-written mocks with overridable func fields. Unset funcs fall back to
// empty results so each test only wires the calls it cares about.

type mockLendingRepository struct {
	createFunc          func(ctx context.Context, lending model.Lending) error
	updateFunc          func(ctx context.Context, lending model.Lending) (int64, error)
	findByNumberFunc    func(ctx context.Context, lendingNumber string) (model.Lending, error)
	listByReaderFunc    func(ctx context.Context, readerNumber, isbn string) ([]model.Lending, error)
	listOutstandingFunc func(ctx context.Context, readerNumber string) ([]model.Lending, error)
	countInYearFunc     func(ctx context.Context, year int) (int, error)
	searchFunc          func(ctx context.Context, page port.Page, filter port.SearchFilter) ([]model.Lending, error)
	listOverdueFunc     func(ctx context.Context, page port.Page, today time.Time) ([]model.Lending, error)
	avgDurationFunc     func(ctx context.Context) (float64, error)
	avgByIsbnFunc       func(ctx context.Context, isbn string) (float64, error)

	created []model.Lending
	updated []model.Lending
}

func (m *mockLendingRepository) Create(ctx context.Context, lending model.Lending) error {
	m.created = append(m.created, lending)
	if m.createFunc != nil {
		return m.createFunc(ctx, lending)
	}
	return nil
}

func (m *mockLendingRepository) Update(ctx context.Context, lending model.Lending) (int64, error) {
	m.updated = append(m.updated, lending)
	if m.updateFunc != nil {
		return m.updateFunc(ctx, lending)
	}
	return lending.Version() + 1, nil
}

func (m *mockLendingRepository) FindByNumber(ctx context.Context, lendingNumber string) (model.Lending, error) {
	if m.findByNumberFunc != nil {
		return m.findByNumberFunc(ctx, lendingNumber)
	}
	return model.Lending{}, domainerr.NotFound("lending")
}

func (m *mockLendingRepository) ListByReaderAndIsbn(ctx context.Context, readerNumber, isbn string) ([]model.Lending, error) {
	if m.listByReaderFunc != nil {
		return m.listByReaderFunc(ctx, readerNumber, isbn)
	}
	return nil, nil
}

func (m *mockLendingRepository) ListOutstandingByReader(ctx context.Context, readerNumber string) ([]model.Lending, error) {
	if m.listOutstandingFunc != nil {
		return m.listOutstandingFunc(ctx, readerNumber)
	}
	return nil, nil
}

func (m *mockLendingRepository) CountCreatedInYear(ctx context.Context, year int) (int, error) {
	if m.countInYearFunc != nil {
		return m.countInYearFunc(ctx, year)
	}
	return 0, nil
}

func (m *mockLendingRepository) Search(ctx context.Context, page port.Page, filter port.SearchFilter) ([]model.Lending, error) {
	if m.searchFunc != nil {
		return m.searchFunc(ctx, page, filter)
	}
	return nil, nil
}

func (m *mockLendingRepository) ListOverdue(ctx context.Context, page port.Page, today time.Time) ([]model.Lending, error) {
	if m.listOverdueFunc != nil {
		return m.listOverdueFunc(ctx, page, today)
	}
	return nil, nil
}

func (m *mockLendingRepository) AverageDurationDays(ctx context.Context) (float64, error) {
	if m.avgDurationFunc != nil {
		return m.avgDurationFunc(ctx)
	}
	return 0, nil
}

func (m *mockLendingRepository) AverageDurationDaysByIsbn(ctx context.Context, isbn string) (float64, error) {
	if m.avgByIsbnFunc != nil {
		return m.avgByIsbnFunc(ctx, isbn)
	}
	return 0, nil
}

type mockBookDetailsRepository struct {
	findByIsbnFunc func(ctx context.Context, isbn string) (model.BookDetails, error)
	insertFunc     func(ctx context.Context, book model.BookDetails) error
	upsertFunc     func(ctx context.Context, book model.BookDetails) error
}

func (m *mockBookDetailsRepository) FindByIsbn(ctx context.Context, isbn string) (model.BookDetails, error) {
	if m.findByIsbnFunc != nil {
		return m.findByIsbnFunc(ctx, isbn)
	}
	return model.BookDetails{}, domainerr.NotFound("book")
}

func (m *mockBookDetailsRepository) Insert(ctx context.Context, book model.BookDetails) error {
	if m.insertFunc != nil {
		return m.insertFunc(ctx, book)
	}
	return nil
}

func (m *mockBookDetailsRepository) Upsert(ctx context.Context, book model.BookDetails) error {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, book)
	}
	return nil
}

type mockReaderDetailsRepository struct {
	findByNumberFunc func(ctx context.Context, readerNumber string) (model.ReaderDetails, error)
	insertFunc       func(ctx context.Context, reader model.ReaderDetails) error
	upsertFunc       func(ctx context.Context, reader model.ReaderDetails) error
}

func (m *mockReaderDetailsRepository) FindByNumber(ctx context.Context, readerNumber string) (model.ReaderDetails, error) {
	if m.findByNumberFunc != nil {
		return m.findByNumberFunc(ctx, readerNumber)
	}
	return model.ReaderDetails{}, domainerr.NotFound("reader")
}

func (m *mockReaderDetailsRepository) Insert(ctx context.Context, reader model.ReaderDetails) error {
	if m.insertFunc != nil {
		return m.insertFunc(ctx, reader)
	}
	return nil
}

func (m *mockReaderDetailsRepository) Upsert(ctx context.Context, reader model.ReaderDetails) error {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, reader)
	}
	return nil
}

// publishedEvent records one publisher call for assertion.
type publishedEvent struct {
	route   string
	lending model.Lending
	version int64
}

type mockLendingEventPublisher struct {
	failWith  error
	published []publishedEvent
}

func (m *mockLendingEventPublisher) SendLendingCreated(_ context.Context, lending model.Lending) error {
	m.published = append(m.published, publishedEvent{route: "LendingCreated", lending: lending, version: lending.Version()})
	return m.failWith
}

func (m *mockLendingEventPublisher) SendLendingUpdated(_ context.Context, lending model.Lending, version int64) error {
	m.published = append(m.published, publishedEvent{route: "LendingUpdated", lending: lending, version: version})
	return m.failWith
}

func (m *mockLendingEventPublisher) SendLendingUpdatedWithRecommendation(_ context.Context, lending model.Lending, version int64) error {
	m.published = append(m.published, publishedEvent{route: "LendingUpdatedWithRecommendation", lending: lending, version: version})
	return m.failWith
}

// fixedClock pins today for deterministic date arithmetic.
type fixedClock struct {
	today time.Time
}

func (c fixedClock) Today() time.Time { return c.today }
