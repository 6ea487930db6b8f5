package model

// FineAmountCents computes the fine for a lending that is daysDelayed days
// past its limit date at perDayCents per day. Negative delays are clamped to
// zero, so the result is never negative for a non-negative rate.
func FineAmountCents(daysDelayed, perDayCents int) int {
	if daysDelayed < 0 {
		daysDelayed = 0
	}
	return daysDelayed * perDayCents
}

// ---------------------------------------------------------------------------
// Fine – owned 1:1 by a Lending, computed once and then immutable
// ---------------------------------------------------------------------------

// Fine is the monetary penalty attached to a lending returned (or still
// outstanding) after its limit date.
type Fine struct {
	cents int
}

// NewFine computes a fine from the days of delay and the per-day rate that was
// in effect when the lending was created.
func NewFine(daysDelayed, perDayCents int) Fine {
	return Fine{cents: FineAmountCents(daysDelayed, perDayCents)}
}

// ReconstructFine rebuilds a Fine from persistence.
func ReconstructFine(cents int) Fine {
	return Fine{cents: cents}
}

// Cents returns the fine amount in cents.
func (f Fine) Cents() int { return f.cents }
