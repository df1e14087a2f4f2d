package model

import (
	"time"

	"github.com/google/uuid"
)

type TemplateType string

const (
	TemplateTypeApproval  TemplateType = "approval"
	TemplateTypeMinute    TemplateType = "minute"
	TemplateTypeForward   TemplateType = "forward"
	TemplateTypeTreatment TemplateType = "treatment"
)

type TemplateScope string

const (
	TemplateScopeOrganization TemplateScope = "organization"
	TemplateScopePersonal     TemplateScope = "personal-override"
)

type TemplateStyle string

const (
	TemplateStyleStamp   TemplateStyle = "stamp"
	TemplateStyleFormal  TemplateStyle = "formal"
	TemplateStyleMinimal TemplateStyle = "minimal"
)

// SignatureTemplate holds a format string with {token} placeholders rendered
// against the acting user and correspondence at apply time.
type SignatureTemplate struct {
	ID           uuid.UUID     `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	Scope        TemplateScope `json:"scope"`
	TemplateType TemplateType  `json:"template_type"`
	Format       string        `json:"format"`
	Style        TemplateStyle `json:"style"`
	DefaultApply bool          `json:"default_apply"`
	CreatedAt    time.Time     `json:"created_at"`
}

// StoredSignature is a user's on-file signature image. Its presence is a hard
// precondition for approve actions.
type StoredSignature struct {
	UserID     uuid.UUID `json:"user_id"`
	ImageData  string    `json:"image_data"`
	FileName   string    `json:"file_name,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// SignaturePreferences maps template types to a user's preferred template,
// overriding the organization default.
type SignaturePreferences struct {
	UserID              uuid.UUID                  `json:"user_id"`
	TemplateOverrides   map[TemplateType]uuid.UUID `json:"template_overrides,omitempty"`
	AutoApplyForMinutes bool                       `json:"auto_apply_for_minutes"`
}
