package model

import "github.com/openlms/lending-service/internal/domain/domainerr"

// ReaderDetails is the locally cached projection of a reader owned by the
// readers service. It holds just enough identity to validate a lending's
// reader reference at creation time.
type ReaderDetails struct {
	readerNumber string
	fullName     string
	version      int64
}

// NewReaderDetails creates a projection row from an inbound reader event payload.
func NewReaderDetails(readerNumber, fullName string) (ReaderDetails, error) {
	if readerNumber == "" {
		return ReaderDetails{}, domainerr.InvalidInput("reader number is required")
	}
	return ReaderDetails{readerNumber: readerNumber, fullName: fullName, version: 1}, nil
}

// ReconstructReaderDetails rebuilds a projection row from persistence.
func ReconstructReaderDetails(readerNumber, fullName string, version int64) ReaderDetails {
	return ReaderDetails{readerNumber: readerNumber, fullName: fullName, version: version}
}

func (r ReaderDetails) ReaderNumber() string { return r.readerNumber }
func (r ReaderDetails) FullName() string     { return r.fullName }
func (r ReaderDetails) Version() int64       { return r.version }
