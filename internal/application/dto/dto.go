// Package dto defines the request and response shapes of the application layer.
package dto

// CreateLendingRequest starts a new lending for a reader and an ISBN.
type CreateLendingRequest struct {
	Isbn         string `json:"isbn"`
	ReaderNumber string `json:"readerNumber"`
}

// ReturnLendingRequest marks a lending as returned. ExpectedVersion is the
// optimistic-concurrency gate: it must equal the stored version or the call
// fails with a stale-version error. A non-nil Recommended means the return
// carries a recommendation payload, which triggers an additional event.
type ReturnLendingRequest struct {
	LendingNumber   string `json:"-"`
	Commentary      string `json:"commentary"`
	ExpectedVersion int64  `json:"-"`
	Recommended     *bool  `json:"recommended,omitempty"`
}

// SearchLendingsQuery filters a lending search. Empty fields are not applied;
// dates use the YYYY-MM-DD form.
type SearchLendingsQuery struct {
	ReaderNumber string `json:"readerNumber"`
	Isbn         string `json:"isbn"`
	Returned     *bool  `json:"returned"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
}

// PageRequest selects a result window; zero values fall back to page 1, limit 10.
type PageRequest struct {
	Number int `json:"number"`
	Limit  int `json:"limit"`
}

// LendingResponse is the caller-facing view of a lending.
type LendingResponse struct {
	LendingNumber string  `json:"lendingNumber"`
	Isbn          string  `json:"isbn"`
	Title         string  `json:"title"`
	ReaderNumber  string  `json:"readerNumber"`
	StartDate     string  `json:"startDate"`
	LimitDate     string  `json:"limitDate"`
	ReturnedDate  *string `json:"returnedDate,omitempty"`
	DaysDelayed   int     `json:"daysDelayed"`
	FineCents     *int    `json:"fineCents,omitempty"`
	Commentary    string  `json:"commentary,omitempty"`
	Version       int64   `json:"version"`
}

// AverageDurationResponse reports a mean lending duration in days, rounded to
// one decimal place.
type AverageDurationResponse struct {
	Days float64 `json:"days"`
}
