package delegation

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

// Registry manages at-most-one active delegation per correspondence. A
// revoked delegation is kept for audit and a new one may then be created.
type Registry struct {
	repo      repository.Repository
	directory organisation.Directory
	auditor   audit.Auditor
}

func NewRegistry(repo repository.Repository, directory organisation.Directory, auditor audit.Auditor) *Registry {
	return &Registry{repo: repo, directory: directory, auditor: auditor}
}

type DelegateParams struct {
	CorrespondenceID uuid.UUID
	ExecutiveID      uuid.UUID
	AssistantID      uuid.UUID
	AssistantType    model.AssistantType
	Permissions      []model.AssistantPermission
	Notes            string
}

func (r *Registry) Delegate(ctx context.Context, params DelegateParams) (model.Delegation, error) {
	if params.ExecutiveID == params.AssistantID {
		return model.Delegation{}, apperror.Validation("executive cannot delegate to themselves")
	}
	if params.AssistantType != model.AssistantTypeTechnical && params.AssistantType != model.AssistantTypePersonal {
		return model.Delegation{}, apperror.Validation("unknown assistant type %q", params.AssistantType)
	}
	if len(params.Permissions) == 0 {
		return model.Delegation{}, apperror.Validation("delegation requires at least one permission")
	}

	assistant, err := r.directory.GetUser(ctx, params.AssistantID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.Delegation{}, apperror.NotFound("assistant %s not found", params.AssistantID)
		}
		return model.Delegation{}, fmt.Errorf("failed to load assistant: %w", err)
	}
	if !assistant.Active {
		return model.Delegation{}, apperror.Validation("assistant %s is not active", params.AssistantID)
	}

	if _, err := r.repo.GetCorrespondence(ctx, params.CorrespondenceID); err != nil {
		if errors.Is(err, repository.ErrCorrespondenceNotFound) {
			return model.Delegation{}, apperror.NotFound("correspondence %s not found", params.CorrespondenceID)
		}
		return model.Delegation{}, fmt.Errorf("failed to load correspondence: %w", err)
	}

	d := model.Delegation{
		ID:               uuid.New(),
		CorrespondenceID: params.CorrespondenceID,
		ExecutiveID:      params.ExecutiveID,
		AssistantID:      params.AssistantID,
		AssistantType:    params.AssistantType,
		Permissions:      params.Permissions,
		Notes:            params.Notes,
		Status:           model.DelegationStatusActive,
		DelegatedAt:      time.Now(),
	}
	if err := r.repo.CreateDelegation(ctx, d); err != nil {
		if errors.Is(err, repository.ErrActiveDelegationExists) {
			return model.Delegation{}, apperror.Conflict("an active delegation already exists for correspondence %s", params.CorrespondenceID)
		}
		return model.Delegation{}, fmt.Errorf("failed to create delegation: %w", err)
	}

	_ = r.auditor.LogEvent(ctx, audit.LogEventParam{
		ActorID: params.ExecutiveID,
		Type:    audit.EventTypeDelegationCreate,
		Data: map[string]any{
			"delegation_id":     d.ID,
			"correspondence_id": params.CorrespondenceID,
			"assistant_id":      params.AssistantID,
			"assistant_type":    params.AssistantType,
		},
	})
	return d, nil
}

// ActiveFor returns the active delegation for a correspondence, or nil when
// none exists.
func (r *Registry) ActiveFor(ctx context.Context, correspondenceID uuid.UUID) (*model.Delegation, error) {
	d, err := r.repo.GetActiveDelegation(ctx, correspondenceID)
	if err != nil {
		if errors.Is(err, repository.ErrDelegationNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load active delegation: %w", err)
	}
	return &d, nil
}

// Revoke deactivates a delegation. Only the delegating executive may
// revoke. The record is retained.
func (r *Registry) Revoke(ctx context.Context, delegationID, actorID uuid.UUID) (model.Delegation, error) {
	d, err := r.repo.GetDelegation(ctx, delegationID)
	if err != nil {
		if errors.Is(err, repository.ErrDelegationNotFound) {
			return model.Delegation{}, apperror.NotFound("delegation %s not found", delegationID)
		}
		return model.Delegation{}, fmt.Errorf("failed to load delegation: %w", err)
	}
	if d.ExecutiveID != actorID {
		return model.Delegation{}, apperror.Permission("only the delegating executive may revoke")
	}
	if d.Status != model.DelegationStatusActive {
		return model.Delegation{}, apperror.Precondition("delegation %s is not active", delegationID)
	}

	now := time.Now()
	d.Status = model.DelegationStatusRevoked
	d.RevokedAt = &now
	if err := r.repo.UpdateDelegation(ctx, d); err != nil {
		return model.Delegation{}, fmt.Errorf("failed to revoke delegation: %w", err)
	}

	_ = r.auditor.LogEvent(ctx, audit.LogEventParam{
		ActorID: actorID,
		Type:    audit.EventTypeDelegationRevoke,
		Data: map[string]any{
			"delegation_id":     d.ID,
			"correspondence_id": d.CorrespondenceID,
		},
	})
	return d, nil
}
