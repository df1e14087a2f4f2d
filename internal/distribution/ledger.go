package distribution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"corrflow/internal/apperror"
	"corrflow/internal/audit"
	"corrflow/internal/model"
	"corrflow/internal/organisation"
	"corrflow/internal/repository"
)

// Ledger is the append-only CC fan-out per correspondence, deduplicated by
// (recipient type, target id). Only management grades may add entries.
type Ledger struct {
	repo           repository.Repository
	directory      organisation.Directory
	auditor        audit.Auditor
	managementRank int
}

func NewLedger(repo repository.Repository, directory organisation.Directory, auditor audit.Auditor, managementRank int) *Ledger {
	return &Ledger{repo: repo, directory: directory, auditor: auditor, managementRank: managementRank}
}

type Recipient struct {
	Type     model.RecipientType
	TargetID uuid.UUID
	Purpose  model.DistributionPurpose
}

// Add appends the given recipients, skipping keys already present. It
// returns the entries actually added.
func (l *Ledger) Add(ctx context.Context, correspondenceID, actorID uuid.UUID, recipients []Recipient) ([]model.DistributionRecipient, error) {
	if len(recipients) == 0 {
		return nil, apperror.Validation("no distribution recipients given")
	}

	actor, err := l.directory.GetUser(ctx, actorID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.NotFound("user %s not found", actorID)
		}
		return nil, fmt.Errorf("failed to load actor: %w", err)
	}
	if organisation.RankOf(actor.GradeLevel) < l.managementRank {
		return nil, apperror.Permission("grade %s may not add distribution recipients", actor.GradeLevel)
	}

	if _, err := l.repo.GetCorrespondence(ctx, correspondenceID); err != nil {
		if errors.Is(err, repository.ErrCorrespondenceNotFound) {
			return nil, apperror.NotFound("correspondence %s not found", correspondenceID)
		}
		return nil, fmt.Errorf("failed to load correspondence: %w", err)
	}

	for _, r := range recipients {
		if err := l.validateTarget(ctx, r); err != nil {
			return nil, err
		}
	}

	var added []model.DistributionRecipient
	for _, r := range recipients {
		rec := model.DistributionRecipient{
			ID:               uuid.New(),
			CorrespondenceID: correspondenceID,
			Type:             r.Type,
			TargetID:         r.TargetID,
			Purpose:          r.Purpose,
			AddedByID:        actorID,
			AddedAt:          time.Now(),
		}
		err := l.repo.AddDistribution(ctx, rec)
		if errors.Is(err, repository.ErrDuplicateDistribution) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to add distribution recipient: %w", err)
		}
		added = append(added, rec)
	}

	if len(added) > 0 {
		_ = l.auditor.LogEvent(ctx, audit.LogEventParam{
			ActorID: actorID,
			Type:    audit.EventTypeDistributionAdd,
			Data: map[string]any{
				"correspondence_id": correspondenceID,
				"added":             len(added),
			},
		})
	}
	return added, nil
}

func (l *Ledger) validateTarget(ctx context.Context, r Recipient) error {
	var err error
	switch r.Type {
	case model.RecipientTypeDivision:
		_, err = l.directory.GetDivision(ctx, r.TargetID)
	case model.RecipientTypeDepartment:
		_, err = l.directory.GetDepartment(ctx, r.TargetID)
	case model.RecipientTypeDirectorate:
		_, err = l.directory.GetDirectorate(ctx, r.TargetID)
	default:
		return apperror.Validation("unknown recipient type %q", r.Type)
	}
	if err != nil {
		if errors.Is(err, repository.ErrDivisionNotFound) ||
			errors.Is(err, repository.ErrDepartmentNotFound) ||
			errors.Is(err, repository.ErrDirectorateNotFound) {
			return apperror.NotFound("%s %s not found", r.Type, r.TargetID)
		}
		return fmt.Errorf("failed to resolve distribution target: %w", err)
	}
	return nil
}

func (l *Ledger) ListFor(ctx context.Context, correspondenceID uuid.UUID) ([]model.DistributionRecipient, error) {
	return l.repo.ListDistribution(ctx, correspondenceID)
}
