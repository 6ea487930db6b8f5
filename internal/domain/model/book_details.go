package model

import "github.com/openlms/lending-service/internal/domain/domainerr"

// BookDetails is the locally cached, eventually consistent projection of a
// book owned by the books service. Rows are created and updated only by
// inbound events, never by local business logic; last writer wins because the
// projection is a cache, not a source of truth.
type BookDetails struct {
	isbn    string
	title   string
	genre   string
	version int64
}

// NewBookDetails creates a projection row from an inbound book event payload.
func NewBookDetails(isbn, title, genre string) (BookDetails, error) {
	if isbn == "" {
		return BookDetails{}, domainerr.InvalidInput("book isbn is required")
	}
	if title == "" {
		return BookDetails{}, domainerr.InvalidInput("book title is required")
	}
	return BookDetails{isbn: isbn, title: title, genre: genre, version: 1}, nil
}

// ReconstructBookDetails rebuilds a projection row from persistence.
func ReconstructBookDetails(isbn, title, genre string, version int64) BookDetails {
	return BookDetails{isbn: isbn, title: title, genre: genre, version: version}
}

func (b BookDetails) Isbn() string   { return b.isbn }
func (b BookDetails) Title() string  { return b.title }
func (b BookDetails) Genre() string  { return b.genre }
func (b BookDetails) Version() int64 { return b.version }
