package model

import (
	"time"

	"github.com/google/uuid"
)

type ActionType string

const (
	ActionTypeMinute  ActionType = "minute"
	ActionTypeApprove ActionType = "approve"
	ActionTypeForward ActionType = "forward"
	ActionTypeReject  ActionType = "reject"
	ActionTypeTreat   ActionType = "treat"
)

type AssistantType string

const (
	AssistantTypeTechnical AssistantType = "TA"
	AssistantTypePersonal  AssistantType = "PA"
)

// SignaturePayload is the snapshot attached to a minute when the actor
// applied their signature. RenderedText is the template output at the time
// of the action; it is never re-rendered.
type SignaturePayload struct {
	ImageData    string     `json:"image_data"`
	FileName     string     `json:"file_name,omitempty"`
	TemplateID   *uuid.UUID `json:"template_id,omitempty"`
	TemplateType string     `json:"template_type,omitempty"`
	RenderedText string     `json:"rendered_text,omitempty"`
	AppliedAt    time.Time  `json:"applied_at"`
}

// Minute is one immutable entry in a correspondence's ledger. Grade level is
// snapshotted at action time, not looked up live.
type Minute struct {
	ID               uuid.UUID         `json:"id"`
	CorrespondenceID uuid.UUID         `json:"correspondence_id"`
	UserID           uuid.UUID         `json:"user_id"`
	GradeLevel       string            `json:"grade_level"`
	ActionType       ActionType        `json:"action_type"`
	Text             string            `json:"text"`
	Direction        Direction         `json:"direction"`
	StepNumber       int               `json:"step_number"`
	Timestamp        time.Time         `json:"timestamp"`
	ActedBySecretary bool              `json:"acted_by_secretary,omitempty"`
	ActedByAssistant bool              `json:"acted_by_assistant,omitempty"`
	AssistantType    AssistantType     `json:"assistant_type,omitempty"`
	ReadAt           *time.Time        `json:"read_at,omitempty"`
	Signature        *SignaturePayload `json:"signature,omitempty"`
}
