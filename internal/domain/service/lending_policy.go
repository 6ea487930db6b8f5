package service

import (
	"context"
	"fmt"
	"time"

	"github.com/openlms/lending-service/internal/domain/domainerr"
	"github.com/openlms/lending-service/internal/domain/port"
)

// maxOutstandingLendings is the cap on simultaneous unreturned lendings per reader.
const maxOutstandingLendings = 3

// LendingPolicy enforces the cross-lending business rules that gate creation.
type LendingPolicy struct {
	lendings port.LendingRepository
}

// NewLendingPolicy wires the repository the policy scans.
func NewLendingPolicy(lendings port.LendingRepository) *LendingPolicy {
	return &LendingPolicy{lendings: lendings}
}

// CanCreate decides whether the reader may borrow another book. It scans the
// reader's outstanding lendings in repository order and denies on the first
// violation found: any lending past its due date blocks immediately, and the
// outstanding count blocks as soon as it reaches the cap.
func (p *LendingPolicy) CanCreate(ctx context.Context, readerNumber string, today time.Time) error {
	outstanding, err := p.lendings.ListOutstandingByReader(ctx, readerNumber)
	if err != nil {
		return fmt.Errorf("list outstanding lendings: %w", err)
	}

	count := 0
	for _, lending := range outstanding {
		if lending.DaysDelayed(today) > 0 {
			return domainerr.Forbidden("reader has book(s) past their due date")
		}
		count++
		if count >= maxOutstandingLendings {
			return domainerr.Forbidden("reader has three books outstanding already")
		}
	}
	return nil
}
