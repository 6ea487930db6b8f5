package testutil

import "time"

// Fixed identifiers for deterministic testing
const (
	TestIsbn1         = "9782826012092"
	TestIsbn2         = "9789720706386"
	TestReaderNumber1 = "2024/1"
	TestReaderNumber2 = "2024/2"
	TestLendingNumber = "2024/7"
)

// Date returns a midnight-UTC calendar date for test inputs.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
