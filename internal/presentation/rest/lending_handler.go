package rest

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/openlms/lending-service/internal/application/dto"
	"github.com/openlms/lending-service/internal/application/usecase"
	"github.com/openlms/lending-service/internal/domain/domainerr"
)

// LendingHandler exposes the lending operations over HTTP.
type LendingHandler struct {
	create  *usecase.CreateLendingUseCase
	returns *usecase.ReturnLendingUseCase
	queries *usecase.QueryLendingsUseCase
	logger  *slog.Logger
}

// NewLendingHandler creates the lending HTTP handler.
func NewLendingHandler(
	create *usecase.CreateLendingUseCase,
	returns *usecase.ReturnLendingUseCase,
	queries *usecase.QueryLendingsUseCase,
	logger *slog.Logger,
) *LendingHandler {
	return &LendingHandler{
		create:  create,
		returns: returns,
		queries: queries,
		logger:  logger,
	}
}

// RegisterRoutes attaches lending routes to the given mux.
func (h *LendingHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/lendings", h.createLending)
	mux.HandleFunc("GET /api/lendings", h.listByReaderAndIsbn)
	mux.HandleFunc("POST /api/lendings/search", h.search)
	mux.HandleFunc("GET /api/lendings/overdue", h.listOverdue)
	mux.HandleFunc("GET /api/lendings/average-duration", h.averageDuration)
	mux.HandleFunc("GET /api/lendings/average-duration/{isbn}", h.averageDurationByIsbn)
	mux.HandleFunc("GET /api/lendings/{year}/{seq}", h.getLending)
	mux.HandleFunc("POST /api/lendings/{year}/{seq}/return", h.returnLending)
}

func (h *LendingHandler) createLending(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateLendingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domainerr.InvalidInput("malformed request body"))
		return
	}

	resp, err := h.create.Execute(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set("Location", "/api/lendings/"+resp.LendingNumber)
	writeJSON(w, http.StatusCreated, resp)
}

func (h *LendingHandler) getLending(w http.ResponseWriter, r *http.Request) {
	resp, err := h.queries.FindByNumber(r.Context(), lendingNumberFromPath(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.Header().Set("ETag", strconv.FormatInt(resp.Version, 10))
	writeJSON(w, http.StatusOK, resp)
}

// returnLending requires an If-Match header carrying the version the caller
// last saw; a mismatch against the stored version yields 412.
func (h *LendingHandler) returnLending(w http.ResponseWriter, r *http.Request) {
	ifMatch := r.Header.Get("If-Match")
	if ifMatch == "" {
		writeError(w, h.logger, domainerr.InvalidInput("If-Match header with the expected version is required"))
		return
	}
	expected, err := strconv.ParseInt(ifMatch, 10, 64)
	if err != nil {
		writeError(w, h.logger, domainerr.InvalidInput("If-Match header must be an integer version"))
		return
	}

	var req dto.ReturnLendingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, domainerr.InvalidInput("malformed request body"))
		return
	}
	req.LendingNumber = lendingNumberFromPath(r)
	req.ExpectedVersion = expected

	resp, err := h.returns.Execute(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.Header().Set("ETag", strconv.FormatInt(resp.Version, 10))
	writeJSON(w, http.StatusOK, resp)
}

func (h *LendingHandler) listByReaderAndIsbn(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	readerNumber := q.Get("readerNumber")
	isbn := q.Get("isbn")
	if readerNumber == "" || isbn == "" {
		writeError(w, h.logger, domainerr.InvalidInput("readerNumber and isbn query parameters are required"))
		return
	}

	var returned *bool
	if s := q.Get("returned"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			writeError(w, h.logger, domainerr.InvalidInput("returned must be true or false"))
			return
		}
		returned = &b
	}

	resp, err := h.queries.ListByReaderAndIsbn(r.Context(), readerNumber, isbn, returned)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// searchRequest is the body of POST /api/lendings/search. Both parts are
// optional; an empty body searches the default recent window.
type searchRequest struct {
	Page  *dto.PageRequest         `json:"page"`
	Query *dto.SearchLendingsQuery `json:"query"`
}

func (h *LendingHandler) search(w http.ResponseWriter, r *http.Request) {
	// An empty body is a valid search over the default recent window.
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, h.logger, domainerr.InvalidInput("malformed request body"))
		return
	}

	resp, err := h.queries.Search(r.Context(), req.Page, req.Query)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *LendingHandler) listOverdue(w http.ResponseWriter, r *http.Request) {
	resp, err := h.queries.GetOverdue(r.Context(), pageFromQuery(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *LendingHandler) averageDuration(w http.ResponseWriter, r *http.Request) {
	resp, err := h.queries.GetAverageDuration(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *LendingHandler) averageDurationByIsbn(w http.ResponseWriter, r *http.Request) {
	resp, err := h.queries.GetAverageDurationByIsbn(r.Context(), r.PathValue("isbn"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func lendingNumberFromPath(r *http.Request) string {
	return r.PathValue("year") + "/" + r.PathValue("seq")
}

func pageFromQuery(r *http.Request) *dto.PageRequest {
	q := r.URL.Query()
	number, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if number == 0 && limit == 0 {
		return nil
	}
	return &dto.PageRequest{Number: number, Limit: limit}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domainerr.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domainerr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domainerr.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domainerr.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domainerr.ErrStaleVersion):
		status = http.StatusPreconditionFailed
	}

	if status == http.StatusInternalServerError {
		logger.Error("internal error serving request", "error", err)
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
