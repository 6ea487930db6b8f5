package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openlms/lending-service/internal/application/dto"
	"github.com/openlms/lending-service/internal/domain/domainerr"
	"github.com/openlms/lending-service/internal/domain/port"
)

// ReturnLendingUseCase marks a lending as returned under the optimistic
// version gate and publishes LendingUpdated.
type ReturnLendingUseCase struct {
	lendings  port.LendingRepository
	publisher port.LendingEventPublisher
	clock     port.Clock
	logger    *slog.Logger
}

// NewReturnLendingUseCase wires dependencies.
func NewReturnLendingUseCase(
	lendings port.LendingRepository,
	publisher port.LendingEventPublisher,
	clock port.Clock,
	logger *slog.Logger,
) *ReturnLendingUseCase {
	return &ReturnLendingUseCase{
		lendings:  lendings,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
	}
}

// Execute returns a lending. The caller-supplied expected version is compared
// against the stored version before the transition is applied; the repository
// write carries the same guard, so of two racing writers exactly one succeeds
// and the other sees a stale-version error it may retry after re-reading.
func (uc *ReturnLendingUseCase) Execute(ctx context.Context, req dto.ReturnLendingRequest) (dto.LendingResponse, error) {
	lending, err := uc.lendings.FindByNumber(ctx, req.LendingNumber)
	if err != nil {
		return dto.LendingResponse{}, fmt.Errorf("find lending: %w", err)
	}

	if req.ExpectedVersion != lending.Version() {
		return dto.LendingResponse{}, domainerr.StaleVersion(req.ExpectedVersion, lending.Version())
	}

	today := uc.clock.Today()
	lending, err = lending.SetReturned(today, req.Commentary)
	if err != nil {
		return dto.LendingResponse{}, err
	}

	newVersion, err := uc.lendings.Update(ctx, lending)
	if err != nil {
		return dto.LendingResponse{}, fmt.Errorf("save lending: %w", err)
	}

	// The view carries the pre-update version: a peer replica that has applied
	// every prior event holds exactly that version, so its optimistic gate
	// matches and its own update advances it in lockstep.
	if err := uc.publisher.SendLendingUpdated(ctx, lending, req.ExpectedVersion); err != nil {
		uc.logger.ErrorContext(ctx, "failed to publish LendingUpdated",
			"lending_number", lending.Number().String(), "error", err)
	}
	if req.Recommended != nil {
		if err := uc.publisher.SendLendingUpdatedWithRecommendation(ctx, lending, req.ExpectedVersion); err != nil {
			uc.logger.ErrorContext(ctx, "failed to publish LendingUpdatedWithRecommendation",
				"lending_number", lending.Number().String(), "error", err)
		}
	}

	resp := toLendingResponse(lending, today)
	resp.Version = newVersion
	return resp, nil
}
