package rest_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlms/lending-service/internal/application/dto"
	"github.com/openlms/lending-service/internal/application/usecase"
	"github.com/openlms/lending-service/internal/domain/domainerr"
	"github.com/openlms/lending-service/internal/domain/model"
	"github.com/openlms/lending-service/internal/domain/port"
	"github.com/openlms/lending-service/internal/domain/service"
	"github.com/openlms/lending-service/internal/presentation/rest"
	"github.com/openlms/lending-service/pkg/testutil"
)

// memoryLendingRepo is a map-backed port.LendingRepository good enough to
// drive the handler end to end without a database.
type memoryLendingRepo struct {
	lendings map[string]model.Lending
}

func newMemoryLendingRepo() *memoryLendingRepo {
	return &memoryLendingRepo{lendings: make(map[string]model.Lending)}
}

func (r *memoryLendingRepo) Create(_ context.Context, lending model.Lending) error {
	key := lending.Number().String()
	if _, ok := r.lendings[key]; ok {
		return domainerr.Conflict("lending number already exists")
	}
	r.lendings[key] = lending
	return nil
}

func (r *memoryLendingRepo) Update(_ context.Context, lending model.Lending) (int64, error) {
	key := lending.Number().String()
	stored, ok := r.lendings[key]
	if !ok || stored.Version() != lending.Version() {
		return 0, domainerr.StaleVersion(lending.Version(), stored.Version())
	}
	next := model.ReconstructLending(
		lending.Number(), lending.BookIsbn(), lending.BookTitle(), lending.ReaderNumber(),
		lending.StartDate(), lending.LimitDate(), lending.ReturnedDate(),
		lending.FinePerDayCents(), lending.Fine(), lending.Commentary(), lending.Version()+1,
	)
	r.lendings[key] = next
	return next.Version(), nil
}

func (r *memoryLendingRepo) FindByNumber(_ context.Context, lendingNumber string) (model.Lending, error) {
	lending, ok := r.lendings[lendingNumber]
	if !ok {
		return model.Lending{}, domainerr.NotFound("lending")
	}
	return lending, nil
}

func (r *memoryLendingRepo) ListByReaderAndIsbn(_ context.Context, readerNumber, isbn string) ([]model.Lending, error) {
	var out []model.Lending
	for _, l := range r.lendings {
		if l.ReaderNumber() == readerNumber && l.BookIsbn() == isbn {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memoryLendingRepo) ListOutstandingByReader(_ context.Context, readerNumber string) ([]model.Lending, error) {
	var out []model.Lending
	for _, l := range r.lendings {
		if l.ReaderNumber() == readerNumber && l.ReturnedDate() == nil {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memoryLendingRepo) CountCreatedInYear(_ context.Context, year int) (int, error) {
	count := 0
	for _, l := range r.lendings {
		if l.StartDate().Year() == year {
			count++
		}
	}
	return count, nil
}

func (r *memoryLendingRepo) Search(_ context.Context, _ port.Page, filter port.SearchFilter) ([]model.Lending, error) {
	var out []model.Lending
	for _, l := range r.lendings {
		if filter.ReaderNumber != "" && l.ReaderNumber() != filter.ReaderNumber {
			continue
		}
		if filter.Isbn != "" && l.BookIsbn() != filter.Isbn {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (r *memoryLendingRepo) ListOverdue(_ context.Context, _ port.Page, today time.Time) ([]model.Lending, error) {
	var out []model.Lending
	for _, l := range r.lendings {
		if l.IsOverdue(today) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memoryLendingRepo) AverageDurationDays(context.Context) (float64, error) {
	return 11.46, nil
}

func (r *memoryLendingRepo) AverageDurationDaysByIsbn(context.Context, string) (float64, error) {
	return 7.0, nil
}

type staticBookRepo struct{}

func (staticBookRepo) FindByIsbn(_ context.Context, isbn string) (model.BookDetails, error) {
	if isbn != testutil.TestIsbn1 {
		return model.BookDetails{}, domainerr.NotFound("book")
	}
	return model.ReconstructBookDetails(isbn, "O Principezinho", "Infantil", 1), nil
}
func (staticBookRepo) Insert(context.Context, model.BookDetails) error { return nil }
func (staticBookRepo) Upsert(context.Context, model.BookDetails) error { return nil }

type staticReaderRepo struct{}

func (staticReaderRepo) FindByNumber(_ context.Context, readerNumber string) (model.ReaderDetails, error) {
	if readerNumber != testutil.TestReaderNumber1 {
		return model.ReaderDetails{}, domainerr.NotFound("reader")
	}
	return model.ReconstructReaderDetails(readerNumber, "Maria Silva", 1), nil
}
func (staticReaderRepo) Insert(context.Context, model.ReaderDetails) error { return nil }
func (staticReaderRepo) Upsert(context.Context, model.ReaderDetails) error { return nil }

type noopPublisher struct{}

func (noopPublisher) SendLendingCreated(context.Context, model.Lending) error { return nil }
func (noopPublisher) SendLendingUpdated(context.Context, model.Lending, int64) error {
	return nil
}
func (noopPublisher) SendLendingUpdatedWithRecommendation(context.Context, model.Lending, int64) error {
	return nil
}

type fixedClock struct{ today time.Time }

func (c fixedClock) Today() time.Time { return c.today }

func newTestServer(t *testing.T, repo *memoryLendingRepo, today time.Time) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := fixedClock{today: today}
	terms := usecase.LendingTerms{DurationDays: 14, FinePerDayCents: 50}

	createUC := usecase.NewCreateLendingUseCase(
		repo, staticBookRepo{}, staticReaderRepo{},
		service.NewLendingPolicy(repo),
		noopPublisher{}, clock, terms, logger,
	)
	returnUC := usecase.NewReturnLendingUseCase(repo, noopPublisher{}, clock, logger)
	queryUC := usecase.NewQueryLendingsUseCase(repo, clock)

	mux := http.NewServeMux()
	rest.NewLendingHandler(createUC, returnUC, queryUC, logger).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func TestLendingHandler_CreateAndGet(t *testing.T) {
	today := testutil.Date(2024, time.March, 1)
	srv := newTestServer(t, newMemoryLendingRepo(), today)

	resp, raw := doJSON(t, http.MethodPost, srv.URL+"/api/lendings",
		`{"isbn":"`+testutil.TestIsbn1+`","readerNumber":"`+testutil.TestReaderNumber1+`"}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "/api/lendings/2024/1", resp.Header.Get("Location"))

	var created dto.LendingResponse
	require.NoError(t, json.Unmarshal(raw, &created))
	assert.Equal(t, "2024/1", created.LendingNumber)
	assert.Equal(t, "O Principezinho", created.Title)
	assert.Equal(t, "2024-03-15", created.LimitDate)

	resp, raw = doJSON(t, http.MethodGet, srv.URL+"/api/lendings/2024/1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("ETag"))

	var got dto.LendingResponse
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, created.LendingNumber, got.LendingNumber)
}

func TestLendingHandler_GetMissing(t *testing.T) {
	srv := newTestServer(t, newMemoryLendingRepo(), testutil.Date(2024, time.March, 1))

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/lendings/2024/404", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLendingHandler_CreateValidation(t *testing.T) {
	today := testutil.Date(2024, time.March, 1)

	t.Run("unknown reader yields 404", func(t *testing.T) {
		srv := newTestServer(t, newMemoryLendingRepo(), today)
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/lendings",
			`{"isbn":"`+testutil.TestIsbn1+`","readerNumber":"2024/999"}`, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("malformed body yields 400", func(t *testing.T) {
		srv := newTestServer(t, newMemoryLendingRepo(), today)
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/lendings", `{not json`, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("an overdue reader is denied with 403", func(t *testing.T) {
		repo := newMemoryLendingRepo()
		overdue, err := model.NewLending(
			testutil.TestIsbn2, "title", testutil.TestReaderNumber1,
			2024, 1, testutil.Date(2024, time.February, 1), nil, 14, 50,
		)
		require.NoError(t, err)
		require.NoError(t, repo.Create(context.Background(), overdue))

		srv := newTestServer(t, repo, today)
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/lendings",
			`{"isbn":"`+testutil.TestIsbn1+`","readerNumber":"`+testutil.TestReaderNumber1+`"}`, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestLendingHandler_Return(t *testing.T) {
	today := testutil.Date(2024, time.March, 10)

	seed := func(t *testing.T) *memoryLendingRepo {
		t.Helper()
		repo := newMemoryLendingRepo()
		lending, err := model.NewLending(
			testutil.TestIsbn1, "O Principezinho", testutil.TestReaderNumber1,
			2024, 1, testutil.Date(2024, time.March, 1), nil, 14, 50,
		)
		require.NoError(t, err)
		require.NoError(t, repo.Create(context.Background(), lending))
		return repo
	}

	t.Run("returns with a matching If-Match", func(t *testing.T) {
		srv := newTestServer(t, seed(t), today)

		resp, raw := doJSON(t, http.MethodPost, srv.URL+"/api/lendings/2024/1/return",
			`{"commentary":"great"}`, map[string]string{"If-Match": "1"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "2", resp.Header.Get("ETag"))

		var got dto.LendingResponse
		require.NoError(t, json.Unmarshal(raw, &got))
		require.NotNil(t, got.ReturnedDate)
		assert.Equal(t, "2024-03-10", *got.ReturnedDate)
		assert.Equal(t, int64(2), got.Version)
	})

	t.Run("missing If-Match yields 400", func(t *testing.T) {
		srv := newTestServer(t, seed(t), today)

		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/lendings/2024/1/return",
			`{"commentary":"x"}`, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("stale If-Match yields 412", func(t *testing.T) {
		srv := newTestServer(t, seed(t), today)

		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/lendings/2024/1/return",
			`{}`, map[string]string{"If-Match": "7"})
		assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)
	})

	t.Run("a second return yields 409", func(t *testing.T) {
		srv := newTestServer(t, seed(t), today)

		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/lendings/2024/1/return",
			`{}`, map[string]string{"If-Match": "1"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/lendings/2024/1/return",
			`{}`, map[string]string{"If-Match": "2"})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})
}

func TestLendingHandler_Queries(t *testing.T) {
	today := testutil.Date(2024, time.March, 21)

	seed := func(t *testing.T) *memoryLendingRepo {
		t.Helper()
		repo := newMemoryLendingRepo()
		lending, err := model.NewLending(
			testutil.TestIsbn1, "O Principezinho", testutil.TestReaderNumber1,
			2024, 1, testutil.Date(2024, time.March, 1), nil, 14, 50,
		)
		require.NoError(t, err)
		require.NoError(t, repo.Create(context.Background(), lending))
		return repo
	}

	t.Run("lists lendings by reader and isbn", func(t *testing.T) {
		srv := newTestServer(t, seed(t), today)

		resp, raw := doJSON(t, http.MethodGet,
			srv.URL+"/api/lendings?readerNumber="+testutil.TestReaderNumber1+"&isbn="+testutil.TestIsbn1, "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got []dto.LendingResponse
		require.NoError(t, json.Unmarshal(raw, &got))
		require.Len(t, got, 1)
		assert.Equal(t, 6, got[0].DaysDelayed)
	})

	t.Run("missing query parameters yield 400", func(t *testing.T) {
		srv := newTestServer(t, seed(t), today)
		resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/lendings?isbn=x", "", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("search with an empty body uses the default window", func(t *testing.T) {
		srv := newTestServer(t, seed(t), today)
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/lendings/search", "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("search with a malformed date yields 400", func(t *testing.T) {
		srv := newTestServer(t, seed(t), today)
		resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/lendings/search",
			`{"query":{"startDate":"21/03/2024"}}`, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("overdue listing includes the late lending", func(t *testing.T) {
		srv := newTestServer(t, seed(t), today)

		resp, raw := doJSON(t, http.MethodGet, srv.URL+"/api/lendings/overdue", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got []dto.LendingResponse
		require.NoError(t, json.Unmarshal(raw, &got))
		require.Len(t, got, 1)
		assert.Equal(t, "2024/1", got[0].LendingNumber)
	})

	t.Run("averages are rounded to one decimal", func(t *testing.T) {
		srv := newTestServer(t, seed(t), today)

		resp, raw := doJSON(t, http.MethodGet, srv.URL+"/api/lendings/average-duration", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got dto.AverageDurationResponse
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, 11.5, got.Days)

		resp, raw = doJSON(t, http.MethodGet, srv.URL+"/api/lendings/average-duration/"+testutil.TestIsbn1, "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, 7.0, got.Days)
	})
}
