package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"corrflow/internal/apperror"
	"corrflow/internal/audit"
	"corrflow/internal/config"
	"corrflow/internal/delegation"
	"corrflow/internal/model"
	"corrflow/internal/organisation"
	"corrflow/internal/repository"
	"corrflow/internal/signature"
)

// manualRouteMarker tags hierarchy-bypass minutes so they stay
// distinguishable in the ledger.
const manualRouteMarker = "[MANUAL ROUTE]"

// treatmentMarker opens the minute recorded on the original correspondence
// when a treatment reply is composed.
const treatmentMarker = "[TREATMENT & RESPONSE]"

// Engine owns the correspondence lifecycle: minuting, manual routing,
// treatment, completion and archival. Every mutating operation is
// serialized per correspondence id and committed with optimistic version
// checks, retried a bounded number of times.
type Engine struct {
	repo        repository.Repository
	directory   organisation.Directory
	resolver    *Resolver
	ledger      *Ledger
	signatures  *signature.Service
	delegations *delegation.Registry
	refs        *ReferenceGenerator
	auditor     audit.Auditor
	logger      *slog.Logger
	cfg         config.WorkflowConfig
	locks       *keyedMutex
}

func NewEngine(
	repo repository.Repository,
	directory organisation.Directory,
	resolver *Resolver,
	ledger *Ledger,
	signatures *signature.Service,
	delegations *delegation.Registry,
	refs *ReferenceGenerator,
	auditor audit.Auditor,
	logger *slog.Logger,
	cfg config.WorkflowConfig,
) *Engine {
	return &Engine{
		repo:        repo,
		directory:   directory,
		resolver:    resolver,
		ledger:      ledger,
		signatures:  signatures,
		delegations: delegations,
		refs:        refs,
		auditor:     auditor,
		logger:      logger,
		cfg:         cfg,
		locks:       newKeyedMutex(),
	}
}

type CreateParams struct {
	Subject           string
	SenderName        string
	SenderOrg         string
	Source            model.Source
	Priority          model.Priority
	Direction         model.Direction
	DivisionID        *uuid.UUID
	DepartmentID      *uuid.UUID
	CreatedByID       uuid.UUID
	CurrentApproverID uuid.UUID
	ReceivedDate      time.Time
}

// Create registers a new correspondence with a generated reference number
// and status pending.
func (e *Engine) Create(ctx context.Context, params CreateParams) (model.Correspondence, error) {
	if strings.TrimSpace(params.Subject) == "" {
		return model.Correspondence{}, apperror.Validation("subject must not be empty")
	}
	creator, err := e.loadUser(ctx, params.CreatedByID)
	if err != nil {
		return model.Correspondence{}, err
	}
	approver, err := e.loadUser(ctx, params.CurrentApproverID)
	if err != nil {
		return model.Correspondence{}, err
	}
	if !approver.Active {
		return model.Correspondence{}, apperror.Validation("approver %s is not active", approver.ID)
	}

	direction := EffectiveDirection(creator, params.Direction)
	divisionCode, err := e.divisionCode(ctx, params.DivisionID)
	if err != nil {
		return model.Correspondence{}, err
	}

	now := time.Now()
	approverID := params.CurrentApproverID
	c := model.Correspondence{
		ID:                uuid.New(),
		Subject:           params.Subject,
		SenderName:        params.SenderName,
		SenderOrg:         params.SenderOrg,
		Source:            params.Source,
		Status:            model.StatusPending,
		Priority:          params.Priority,
		Direction:         direction,
		DivisionID:        params.DivisionID,
		DepartmentID:      params.DepartmentID,
		CurrentApproverID: &approverID,
		CreatedByID:       &params.CreatedByID,
		ReceivedDate:      params.ReceivedDate,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if c.ReceivedDate.IsZero() {
		c.ReceivedDate = now
	}

	created, err := e.refs.CreateWithReference(ctx, e.repo, c, divisionCode)
	if err != nil {
		return model.Correspondence{}, err
	}

	_ = e.auditor.LogEvent(ctx, audit.LogEventParam{
		ActorID: params.CreatedByID,
		Type:    audit.EventTypeCorrespondenceCreate,
		Data: map[string]any{
			"correspondence_id": created.ID,
			"reference_number":  created.ReferenceNumber,
		},
	})
	return created, nil
}

// SuggestApprovers computes the ranked recipient set for an actor. When a
// correspondence id is given and the actor holds an active delegation as
// executive, the assistant is surfaced as a higher-priority candidate.
func (e *Engine) SuggestApprovers(ctx context.Context, actorID uuid.UUID, direction model.Direction, correspondenceID *uuid.UUID) (Suggestions, error) {
	actor, err := e.loadUser(ctx, actorID)
	if err != nil {
		return Suggestions{}, err
	}

	var assistants []model.User
	if correspondenceID != nil {
		active, err := e.delegations.ActiveFor(ctx, *correspondenceID)
		if err != nil {
			return Suggestions{}, err
		}
		if active != nil && active.ExecutiveID == actorID && active.HasPermission(model.AssistantPermissionForward) {
			assistant, err := e.loadUser(ctx, active.AssistantID)
			if err != nil {
				return Suggestions{}, err
			}
			assistants = append(assistants, assistant)
		}
	}

	return e.resolver.Suggest(ctx, actor, direction, assistants)
}

type MinuteParams struct {
	ActionType       model.ActionType
	Text             string
	Direction        model.Direction
	RecipientID      uuid.UUID
	ActedBySecretary bool
}

// SubmitMinute appends a minute and advances the correspondence to the
// chosen recipient. Approve actions require the actor's signature on file
// before any state changes.
func (e *Engine) SubmitMinute(ctx context.Context, correspondenceID, actorID uuid.UUID, params MinuteParams) (model.Correspondence, error) {
	switch params.ActionType {
	case model.ActionTypeMinute, model.ActionTypeApprove, model.ActionTypeForward, model.ActionTypeReject:
	case model.ActionTypeTreat:
		return model.Correspondence{}, apperror.Validation("treat actions go through the treatment operation")
	default:
		return model.Correspondence{}, apperror.Validation("unknown action type %q", params.ActionType)
	}
	if strings.TrimSpace(params.Text) == "" {
		return model.Correspondence{}, apperror.Validation("minute text must not be empty")
	}

	e.locks.Lock(correspondenceID)
	defer e.locks.Unlock(correspondenceID)

	c, err := e.loadCorrespondence(ctx, correspondenceID)
	if err != nil {
		return model.Correspondence{}, err
	}
	if err := requireOpen(c); err != nil {
		return model.Correspondence{}, err
	}

	actor, err := e.loadUser(ctx, actorID)
	if err != nil {
		return model.Correspondence{}, err
	}
	actedByAssistant, assistantType, err := e.authorizeActor(ctx, c, actor)
	if err != nil {
		return model.Correspondence{}, err
	}

	recipient, err := e.loadUser(ctx, params.RecipientID)
	if err != nil {
		return model.Correspondence{}, err
	}
	if recipient.ID == actorID {
		return model.Correspondence{}, apperror.Validation("cannot forward a correspondence to yourself")
	}
	if !recipient.Active {
		return model.Correspondence{}, apperror.Validation("recipient %s is not active", recipient.ID)
	}

	direction := EffectiveDirection(actor, params.Direction)

	var payload *model.SignaturePayload
	if params.ActionType == model.ActionTypeApprove {
		payload, err = e.signatures.BuildPayload(ctx, actor, params.ActionType, c)
		if err != nil {
			return model.Correspondence{}, err
		}
	}

	minute := model.Minute{
		ID:               uuid.New(),
		CorrespondenceID: correspondenceID,
		UserID:           actorID,
		GradeLevel:       actor.GradeLevel,
		ActionType:       params.ActionType,
		Text:             params.Text,
		Direction:        direction,
		Timestamp:        time.Now(),
		ActedBySecretary: params.ActedBySecretary,
		ActedByAssistant: actedByAssistant,
		AssistantType:    assistantType,
		Signature:        payload,
	}
	if err := e.appendWithRetry(ctx, minute); err != nil {
		return model.Correspondence{}, err
	}

	recipientID := params.RecipientID
	updated, err := e.commitCorrespondence(ctx, correspondenceID, func(c *model.Correspondence) {
		if c.Status == model.StatusPending {
			c.Status = model.StatusInProgress
		}
		c.Direction = direction
		c.CurrentApproverID = &recipientID
	})
	if err != nil {
		return model.Correspondence{}, err
	}

	_ = e.auditor.LogEvent(ctx, audit.LogEventParam{
		ActorID: actorID,
		Type:    audit.EventTypeCorrespondenceMinute,
		Data: map[string]any{
			"correspondence_id": correspondenceID,
			"action_type":       params.ActionType,
			"recipient_id":      params.RecipientID,
			"direction":         direction,
		},
	})
	return updated, nil
}

// ManualRoute bypasses the resolver: any active user may be chosen as the
// next approver, with a written justification. The resulting minute is
// tagged and always recorded as downward dispatch.
func (e *Engine) ManualRoute(ctx context.Context, correspondenceID, actorID, recipientID uuid.UUID, justification string) (model.Correspondence, error) {
	justification = strings.TrimSpace(justification)
	if len(justification) < e.cfg.ManualRouteMinJustification {
		return model.Correspondence{}, apperror.Validation("justification must be at least %d characters", e.cfg.ManualRouteMinJustification)
	}
	if recipientID == actorID {
		return model.Correspondence{}, apperror.Validation("cannot route a correspondence to yourself")
	}

	e.locks.Lock(correspondenceID)
	defer e.locks.Unlock(correspondenceID)

	c, err := e.loadCorrespondence(ctx, correspondenceID)
	if err != nil {
		return model.Correspondence{}, err
	}
	if err := requireOpen(c); err != nil {
		return model.Correspondence{}, err
	}

	actor, err := e.loadUser(ctx, actorID)
	if err != nil {
		return model.Correspondence{}, err
	}
	recipient, err := e.loadUser(ctx, recipientID)
	if err != nil {
		return model.Correspondence{}, err
	}
	if !recipient.Active {
		return model.Correspondence{}, apperror.Validation("recipient %s is not active", recipient.ID)
	}

	minute := model.Minute{
		ID:               uuid.New(),
		CorrespondenceID: correspondenceID,
		UserID:           actorID,
		GradeLevel:       actor.GradeLevel,
		ActionType:       model.ActionTypeForward,
		Text:             fmt.Sprintf("%s %s", manualRouteMarker, justification),
		Direction:        model.DirectionDownward,
		Timestamp:        time.Now(),
	}
	if err := e.appendWithRetry(ctx, minute); err != nil {
		return model.Correspondence{}, err
	}

	updated, err := e.commitCorrespondence(ctx, correspondenceID, func(c *model.Correspondence) {
		c.Status = model.StatusInProgress
		c.Direction = model.DirectionDownward
		c.CurrentApproverID = &recipientID
	})
	if err != nil {
		return model.Correspondence{}, err
	}

	_ = e.auditor.LogEvent(ctx, audit.LogEventParam{
		ActorID: actorID,
		Type:    audit.EventTypeCorrespondenceManualRoute,
		Data: map[string]any{
			"correspondence_id": correspondenceID,
			"recipient_id":      recipientID,
		},
	})
	return updated, nil
}

type TreatParams struct {
	Subject     string
	Body        string
	RecipientID uuid.UUID
}

type TreatResult struct {
	Original model.Correspondence `json:"original"`
	Reply    model.Correspondence `json:"reply"`
}

// TreatAndRespond records a treatment minute on the original correspondence
// and spawns a new upward reply thread addressed to the chosen recipient.
func (e *Engine) TreatAndRespond(ctx context.Context, correspondenceID, actorID uuid.UUID, params TreatParams) (TreatResult, error) {
	if len(strings.TrimSpace(params.Subject)) < 5 {
		return TreatResult{}, apperror.Validation("treatment subject must be at least 5 characters")
	}
	if len(strings.TrimSpace(params.Body)) < 10 {
		return TreatResult{}, apperror.Validation("treatment body must be at least 10 characters")
	}
	if params.RecipientID == actorID {
		return TreatResult{}, apperror.Validation("cannot address a treatment reply to yourself")
	}

	e.locks.Lock(correspondenceID)
	defer e.locks.Unlock(correspondenceID)

	c, err := e.loadCorrespondence(ctx, correspondenceID)
	if err != nil {
		return TreatResult{}, err
	}
	if err := requireOpen(c); err != nil {
		return TreatResult{}, err
	}

	actor, err := e.loadUser(ctx, actorID)
	if err != nil {
		return TreatResult{}, err
	}
	actedByAssistant, assistantType, err := e.authorizeActor(ctx, c, actor)
	if err != nil {
		return TreatResult{}, err
	}

	recipient, err := e.loadUser(ctx, params.RecipientID)
	if err != nil {
		return TreatResult{}, err
	}
	if !recipient.Active {
		return TreatResult{}, apperror.Validation("recipient %s is not active", recipient.ID)
	}

	minute := model.Minute{
		ID:               uuid.New(),
		CorrespondenceID: correspondenceID,
		UserID:           actorID,
		GradeLevel:       actor.GradeLevel,
		ActionType:       model.ActionTypeTreat,
		Text:             fmt.Sprintf("%s\n\nSubject: %s\n\n%s", treatmentMarker, params.Subject, params.Body),
		Direction:        model.DirectionUpward,
		Timestamp:        time.Now(),
		ActedByAssistant: actedByAssistant,
		AssistantType:    assistantType,
	}
	if err := e.appendWithRetry(ctx, minute); err != nil {
		return TreatResult{}, err
	}

	original, err := e.commitCorrespondence(ctx, correspondenceID, func(c *model.Correspondence) {
		if c.Status == model.StatusPending {
			c.Status = model.StatusInProgress
		}
	})
	if err != nil {
		return TreatResult{}, err
	}

	senderName := actor.Name
	if actedByAssistant {
		if active, err := e.delegations.ActiveFor(ctx, correspondenceID); err == nil && active != nil {
			if executive, err := e.loadUser(ctx, active.ExecutiveID); err == nil {
				senderName = fmt.Sprintf("%s on behalf of %s", actor.Name, executive.Name)
			}
		}
	}

	divisionCode, err := e.divisionCode(ctx, actor.DivisionID)
	if err != nil {
		return TreatResult{}, err
	}

	now := time.Now()
	recipientID := params.RecipientID
	parentID := original.ID
	reply := model.Correspondence{
		ID:                uuid.New(),
		Subject:           params.Subject,
		SenderName:        senderName,
		Source:            model.SourceInternal,
		Status:            model.StatusPending,
		Priority:          original.Priority,
		Direction:         model.DirectionUpward,
		DivisionID:        actor.DivisionID,
		DepartmentID:      actor.DepartmentID,
		CurrentApproverID: &recipientID,
		CreatedByID:       &actorID,
		ParentID:          &parentID,
		ReceivedDate:      now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	reply, err = e.refs.CreateWithReference(ctx, e.repo, reply, divisionCode)
	if err != nil {
		return TreatResult{}, err
	}

	_ = e.auditor.LogEvent(ctx, audit.LogEventParam{
		ActorID: actorID,
		Type:    audit.EventTypeCorrespondenceTreat,
		Data: map[string]any{
			"correspondence_id": correspondenceID,
			"reply_id":          reply.ID,
			"recipient_id":      params.RecipientID,
		},
	})
	return TreatResult{Original: original, Reply: reply}, nil
}

// Complete closes a correspondence. Only the current approver may complete;
// the approver reference is kept for audit.
func (e *Engine) Complete(ctx context.Context, correspondenceID, actorID uuid.UUID) (model.Correspondence, error) {
	e.locks.Lock(correspondenceID)
	defer e.locks.Unlock(correspondenceID)

	c, err := e.loadCorrespondence(ctx, correspondenceID)
	if err != nil {
		return model.Correspondence{}, err
	}
	if c.Status == model.StatusCompleted || c.Status == model.StatusArchived {
		return model.Correspondence{}, apperror.Precondition("correspondence %s is already %s", correspondenceID, c.Status)
	}
	if c.CurrentApproverID == nil || *c.CurrentApproverID != actorID {
		return model.Correspondence{}, apperror.Precondition("completion is only allowed for the current approver")
	}

	updated, err := e.commitCorrespondence(ctx, correspondenceID, func(c *model.Correspondence) {
		now := time.Now()
		c.Status = model.StatusCompleted
		c.CompletedAt = &now
	})
	if err != nil {
		return model.Correspondence{}, err
	}

	_ = e.auditor.LogEvent(ctx, audit.LogEventParam{
		ActorID: actorID,
		Type:    audit.EventTypeCorrespondenceComplete,
		Data:    map[string]any{"correspondence_id": correspondenceID},
	})
	return updated, nil
}

// Archive moves a completed correspondence into the archive at the given
// level. The actor's grade must carry archival authority for that level.
func (e *Engine) Archive(ctx context.Context, correspondenceID, actorID uuid.UUID, level model.ArchiveLevel) (model.Correspondence, error) {
	e.locks.Lock(correspondenceID)
	defer e.locks.Unlock(correspondenceID)

	c, err := e.loadCorrespondence(ctx, correspondenceID)
	if err != nil {
		return model.Correspondence{}, err
	}
	if c.Status != model.StatusCompleted {
		return model.Correspondence{}, apperror.Precondition("only completed correspondence can be archived, current status is %s", c.Status)
	}

	actor, err := e.loadUser(ctx, actorID)
	if err != nil {
		return model.Correspondence{}, err
	}
	if !organisation.CanArchiveAt(actor.GradeLevel, level) {
		return model.Correspondence{}, apperror.Permission("grade %s may not archive at %s level", actor.GradeLevel, level)
	}

	updated, err := e.commitCorrespondence(ctx, correspondenceID, func(c *model.Correspondence) {
		c.Status = model.StatusArchived
		c.ArchiveLevel = level
	})
	if err != nil {
		return model.Correspondence{}, err
	}

	_ = e.auditor.LogEvent(ctx, audit.LogEventParam{
		ActorID: actorID,
		Type:    audit.EventTypeCorrespondenceArchive,
		Data: map[string]any{
			"correspondence_id": correspondenceID,
			"archive_level":     level,
		},
	})
	return updated, nil
}

// Minutes returns the full ledger and marks entries from other actors as
// read by the caller.
func (e *Engine) Minutes(ctx context.Context, correspondenceID, readerID uuid.UUID) ([]model.Minute, error) {
	minutes, err := e.ledger.List(ctx, correspondenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list minutes: %w", err)
	}
	if err := e.repo.MarkMinutesRead(ctx, correspondenceID, readerID, time.Now()); err != nil {
		e.logger.Warn("failed to mark minutes read", "correspondence_id", correspondenceID, "error", err)
	}
	return minutes, nil
}

// Inbox lists open correspondence awaiting the given approver.
func (e *Engine) Inbox(ctx context.Context, approverID uuid.UUID) ([]model.Correspondence, error) {
	return e.repo.ListCorrespondenceForApprover(ctx, approverID)
}

func (e *Engine) Get(ctx context.Context, correspondenceID uuid.UUID) (model.Correspondence, error) {
	return e.loadCorrespondence(ctx, correspondenceID)
}

// requireOpen rejects minuting on completed or archived correspondence.
func requireOpen(c model.Correspondence) error {
	if c.Status == model.StatusCompleted || c.Status == model.StatusArchived {
		return apperror.Precondition("correspondence %s is %s and accepts no further minutes", c.ID, c.Status)
	}
	return nil
}

// authorizeActor enforces the current-approver guard. An assistant under an
// active delegation with the forward permission acts with the executive's
// authority; the returned flags are snapshotted onto the minute.
func (e *Engine) authorizeActor(ctx context.Context, c model.Correspondence, actor model.User) (bool, model.AssistantType, error) {
	if c.CurrentApproverID != nil && *c.CurrentApproverID == actor.ID {
		return false, "", nil
	}
	active, err := e.delegations.ActiveFor(ctx, c.ID)
	if err != nil {
		return false, "", err
	}
	if active != nil && active.AssistantID == actor.ID {
		if !active.HasPermission(model.AssistantPermissionForward) {
			return false, "", apperror.Permission("delegation for %s does not grant forwarding", actor.ID)
		}
		return true, active.AssistantType, nil
	}
	return false, "", apperror.Permission("user %s is not the current approver for correspondence %s", actor.ID, c.ID)
}

func (e *Engine) loadUser(ctx context.Context, id uuid.UUID) (model.User, error) {
	u, err := e.directory.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.User{}, apperror.NotFound("user %s not found", id)
		}
		return model.User{}, fmt.Errorf("failed to load user: %w", err)
	}
	return u, nil
}

func (e *Engine) loadCorrespondence(ctx context.Context, id uuid.UUID) (model.Correspondence, error) {
	c, err := e.repo.GetCorrespondence(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCorrespondenceNotFound) {
			return model.Correspondence{}, apperror.NotFound("correspondence %s not found", id)
		}
		return model.Correspondence{}, fmt.Errorf("failed to load correspondence: %w", err)
	}
	return c, nil
}

func (e *Engine) divisionCode(ctx context.Context, divisionID *uuid.UUID) (string, error) {
	if divisionID == nil {
		return "GEN", nil
	}
	division, err := e.directory.GetDivision(ctx, *divisionID)
	if err != nil {
		if errors.Is(err, repository.ErrDivisionNotFound) {
			return "", apperror.NotFound("division %s not found", *divisionID)
		}
		return "", fmt.Errorf("failed to load division: %w", err)
	}
	return division.Code, nil
}

// appendWithRetry assigns the next step number and appends, regenerating
// the step on a store-level collision. Collisions only happen when another
// process appends between the step computation and the insert.
func (e *Engine) appendWithRetry(ctx context.Context, minute model.Minute) error {
	for attempt := 0; ; attempt++ {
		existing, err := e.repo.ListMinutes(ctx, minute.CorrespondenceID)
		if err != nil {
			return fmt.Errorf("failed to list minutes: %w", err)
		}
		minute.StepNumber = NextStepNumber(existing)

		err = e.ledger.Append(ctx, minute)
		if err == nil {
			return nil
		}
		if !apperror.IsKind(err, apperror.KindConflict) {
			return err
		}
		if attempt >= e.cfg.ConflictRetries {
			return apperror.Conflict("could not append minute for correspondence %s after %d attempts", minute.CorrespondenceID, attempt+1)
		}
		e.logger.Debug("retrying minute append after step collision",
			"correspondence_id", minute.CorrespondenceID, "attempt", attempt+1)
		time.Sleep(e.cfg.RetryBackoff)
	}
}

// commitCorrespondence applies a mutation under optimistic versioning,
// reloading and reapplying on a version conflict.
func (e *Engine) commitCorrespondence(ctx context.Context, id uuid.UUID, mutate func(*model.Correspondence)) (model.Correspondence, error) {
	for attempt := 0; ; attempt++ {
		c, err := e.loadCorrespondence(ctx, id)
		if err != nil {
			return model.Correspondence{}, err
		}
		mutate(&c)

		updated, err := e.repo.UpdateCorrespondence(ctx, c)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return model.Correspondence{}, fmt.Errorf("failed to update correspondence: %w", err)
		}
		if attempt >= e.cfg.ConflictRetries {
			return model.Correspondence{}, apperror.Conflict("concurrent updates to correspondence %s exceeded retry limit", id)
		}
		e.logger.Debug("retrying correspondence update after version conflict",
			"correspondence_id", id, "attempt", attempt+1)
		time.Sleep(e.cfg.RetryBackoff)
	}
}
