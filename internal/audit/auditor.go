package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"corrflow/internal/model"
)

type EventType string

const (
	EventTypeCorrespondenceCreate      EventType = "correspondence.create"
	EventTypeCorrespondenceMinute      EventType = "correspondence.minute"
	EventTypeCorrespondenceManualRoute EventType = "correspondence.manual_route"
	EventTypeCorrespondenceTreat       EventType = "correspondence.treat"
	EventTypeCorrespondenceComplete    EventType = "correspondence.complete"
	EventTypeCorrespondenceArchive     EventType = "correspondence.archive"
	EventTypeDelegationCreate          EventType = "delegation.create"
	EventTypeDelegationRevoke          EventType = "delegation.revoke"
	EventTypeDistributionAdd           EventType = "distribution.add"
	EventTypeSignatureApply            EventType = "signature.apply"
)

type EventStore interface {
	CreateAuditEvent(ctx context.Context, e model.AuditEvent) error
}

type Auditor struct {
	logger *slog.Logger
	store  EventStore
}

func NewAuditor(logger *slog.Logger, store EventStore) Auditor {
	return Auditor{logger: logger, store: store}
}

type LogEventParam struct {
	ActorID uuid.UUID
	Type    EventType
	Data    map[string]any
}

func (a *Auditor) LogEvent(ctx context.Context, params LogEventParam) error {
	data, err := json.Marshal(params.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event data: %w", err)
	}

	actorID := params.ActorID
	event := model.AuditEvent{
		ID:        uuid.New(),
		ActorID:   &actorID,
		EventType: string(params.Type),
		EventData: data,
		CreatedAt: time.Now(),
	}
	if err := a.store.CreateAuditEvent(ctx, event); err != nil {
		a.logger.Error("failed to persist audit event", "event_type", params.Type, "error", err)
		return fmt.Errorf("failed to create audit event: %w", err)
	}
	return nil
}
