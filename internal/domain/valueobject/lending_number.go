package valueobject

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/openlms/lending-service/internal/domain/domainerr"
)

// minLendingYear is the earliest year a lending number may carry.
const minLendingYear = 1970

// ---------------------------------------------------------------------------
// LendingNumber – immutable value object
// ---------------------------------------------------------------------------

// LendingNumber identifies a lending as "YEAR/SEQUENCE", e.g. "2024/17".
// The sequence restarts every calendar year.
type LendingNumber struct {
	year     int
	sequence int
}

// NewLendingNumber creates a LendingNumber from a year and a sequence.
// The year must lie in [1970, current year] and the sequence must be >= 0.
func NewLendingNumber(year, sequence int) (LendingNumber, error) {
	currentYear := time.Now().UTC().Year()
	if year < minLendingYear || year > currentYear {
		return LendingNumber{}, domainerr.InvalidInput(
			fmt.Sprintf("lending year must be between %d and %d", minLendingYear, currentYear))
	}
	if sequence < 0 {
		return LendingNumber{}, domainerr.InvalidInput("lending sequence cannot be negative")
	}
	return LendingNumber{year: year, sequence: sequence}, nil
}

// ParseLendingNumber creates a LendingNumber from its canonical string form.
// The input must split into exactly two all-digit parts around a single slash,
// with no surrounding whitespace. Leading zeros in the sequence are normalised
// away by the numeric parse.
func ParseLendingNumber(s string) (LendingNumber, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return LendingNumber{}, domainerr.InvalidInput("lending number must have the form YEAR/SEQUENCE")
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil || !allDigits(parts[0]) {
		return LendingNumber{}, domainerr.InvalidInput("lending number year is not a valid number")
	}
	sequence, err := strconv.Atoi(parts[1])
	if err != nil || !allDigits(parts[1]) {
		return LendingNumber{}, domainerr.InvalidInput("lending number sequence is not a valid number")
	}
	return NewLendingNumber(year, sequence)
}

// Year returns the calendar year component.
func (n LendingNumber) Year() int { return n.year }

// Sequence returns the per-year sequence component.
func (n LendingNumber) Sequence() int { return n.sequence }

// IsZero returns true when the number has not been initialised.
func (n LendingNumber) IsZero() bool { return n.year == 0 }

// Equal returns true when both numbers identify the same lending.
func (n LendingNumber) Equal(other LendingNumber) bool {
	return n.year == other.year && n.sequence == other.sequence
}

// String renders the canonical form, never with leading zeros.
func (n LendingNumber) String() string {
	return fmt.Sprintf("%d/%d", n.year, n.sequence)
}

// allDigits reports whether s is non-empty and consists of ASCII digits only.
// strconv.Atoi alone would accept a leading sign.
func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
