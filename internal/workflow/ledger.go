package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"corrflow/internal/apperror"
	"corrflow/internal/model"
	"corrflow/internal/repository"
)

// Ledger is the append-only minute sequence per correspondence. It owns
// step-number assignment; callers must hold the per-correspondence lock
// while computing a step and appending.
type Ledger struct {
	repo repository.Repository
}

func NewLedger(repo repository.Repository) *Ledger {
	return &Ledger{repo: repo}
}

// NextStepNumber returns 1 for an empty ledger, otherwise the maximum
// existing step plus one.
func NextStepNumber(minutes []model.Minute) int {
	max := 0
	for _, m := range minutes {
		if m.StepNumber > max {
			max = m.StepNumber
		}
	}
	return max + 1
}

func (l *Ledger) List(ctx context.Context, correspondenceID uuid.UUID) ([]model.Minute, error) {
	return l.repo.ListMinutes(ctx, correspondenceID)
}

// Append validates and persists one minute. The step number must match the
// next expected value; a store-level step collision surfaces as a conflict
// for the engine's retry loop.
func (l *Ledger) Append(ctx context.Context, m model.Minute) error {
	if strings.TrimSpace(m.Text) == "" {
		return apperror.Validation("minute text must not be empty")
	}
	if m.StepNumber < 1 {
		return apperror.Validation("minute step number must be positive")
	}

	if _, err := l.repo.GetCorrespondence(ctx, m.CorrespondenceID); err != nil {
		if errors.Is(err, repository.ErrCorrespondenceNotFound) {
			return apperror.NotFound("correspondence %s not found", m.CorrespondenceID)
		}
		return fmt.Errorf("failed to load correspondence: %w", err)
	}

	existing, err := l.repo.ListMinutes(ctx, m.CorrespondenceID)
	if err != nil {
		return fmt.Errorf("failed to list minutes: %w", err)
	}
	if expected := NextStepNumber(existing); m.StepNumber != expected {
		return apperror.Conflict("step number %d does not match expected %d", m.StepNumber, expected)
	}

	if err := l.repo.AppendMinute(ctx, m); err != nil {
		if errors.Is(err, repository.ErrStepConflict) {
			return apperror.Wrap(apperror.KindConflict, err, "concurrent minute append for correspondence %s", m.CorrespondenceID)
		}
		return fmt.Errorf("failed to append minute: %w", err)
	}
	return nil
}

// Latest returns the most recent minute by timestamp, ties broken by the
// greater step number. The boolean is false for an empty ledger.
func (l *Ledger) Latest(ctx context.Context, correspondenceID uuid.UUID) (model.Minute, bool, error) {
	minutes, err := l.repo.ListMinutes(ctx, correspondenceID)
	if err != nil {
		return model.Minute{}, false, fmt.Errorf("failed to list minutes: %w", err)
	}
	if len(minutes) == 0 {
		return model.Minute{}, false, nil
	}
	latest := minutes[0]
	for _, m := range minutes[1:] {
		if m.Timestamp.After(latest.Timestamp) ||
			(m.Timestamp.Equal(latest.Timestamp) && m.StepNumber > latest.StepNumber) {
			latest = m
		}
	}
	return latest, true, nil
}
