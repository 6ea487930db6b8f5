// Package event defines the wire contract shared with the books, readers and
// peer lending services: topic names, routing keys, and the flattened JSON
// views that travel on them. The shapes mirror the platform-wide AMQP views;
// unknown fields in inbound payloads are ignored.
package event

import (
	"time"

	"github.com/openlms/lending-service/internal/domain/model"
)

// DateLayout is the ISO calendar-date form used for all event dates.
const DateLayout = "2006-01-02"

// Topics, one per owning service.
const (
	TopicLendings = "lms.lendings"
	TopicBooks    = "lms.books"
	TopicReaders  = "lms.readers"
)

// Routing keys, carried in the event_type message header.
const (
	RouteLendingCreated                   = "LendingCreated"
	RouteLendingUpdated                   = "LendingUpdated"
	RouteLendingUpdatedWithRecommendation = "LendingUpdatedWithRecommendation"
	// RouteLendingRecommendationFailed is published by the recommendations
	// service; this service declares it but has no local consumer.
	RouteLendingRecommendationFailed = "LendingRecommendationFailed"
	RouteReaderCreated               = "ReaderCreated"
	RouteReaderUpdated               = "ReaderUpdated"
	RouteBookCreated                 = "BookCreated"
	RouteBookUpdated                 = "BookUpdated"
)

// LendingView is the flattened lending payload. Version is a pointer because
// peers may omit it; receivers treat absent as 0. Recommended is write-only:
// inbound payloads may carry it, outbound ones never populate it.
type LendingView struct {
	LendingNumber string  `json:"lendingNumber"`
	Isbn          string  `json:"isbn"`
	ReaderNumber  string  `json:"readerNumber"`
	ReturnedDate  *string `json:"returnedDate"`
	Commentary    *string `json:"commentary"`
	Version       *int64  `json:"version"`
	Recommended   bool    `json:"recommended,omitempty"`
}

// NewLendingView flattens a lending aggregate for publication, stamping the
// given version (the post-write counter, which may be ahead of the in-memory
// aggregate).
func NewLendingView(l model.Lending, version int64) LendingView {
	view := LendingView{
		LendingNumber: l.Number().String(),
		Isbn:          l.BookIsbn(),
		ReaderNumber:  l.ReaderNumber(),
		Version:       &version,
	}
	if d := l.ReturnedDate(); d != nil {
		s := d.Format(DateLayout)
		view.ReturnedDate = &s
	}
	if c := l.Commentary(); c != "" {
		view.Commentary = &c
	}
	return view
}

// VersionOrZero returns the payload version, defaulting to 0 when absent.
func (v LendingView) VersionOrZero() int64 {
	if v.Version == nil {
		return 0
	}
	return *v.Version
}

// ParseReturnedDate parses the payload's returned date, nil when absent.
func (v LendingView) ParseReturnedDate() (*time.Time, error) {
	if v.ReturnedDate == nil {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, *v.ReturnedDate)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// BookView is the payload of book events.
type BookView struct {
	Isbn  string `json:"isbn"`
	Title string `json:"title"`
	Genre string `json:"genre"`
}

// ReaderView is the payload of reader events.
type ReaderView struct {
	ReaderNumber string `json:"readerNumber"`
	FullName     string `json:"fullName"`
}
