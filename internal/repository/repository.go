package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"corrflow/internal/model"
)

var (
	ErrUserNotFound           = errors.New("user not found")
	ErrDirectorateNotFound    = errors.New("directorate not found")
	ErrDivisionNotFound       = errors.New("division not found")
	ErrDepartmentNotFound     = errors.New("department not found")
	ErrCorrespondenceNotFound = errors.New("correspondence not found")
	ErrDelegationNotFound     = errors.New("delegation not found")
	ErrSignatureNotFound      = errors.New("signature not found")
	ErrTemplateNotFound       = errors.New("signature template not found")
	ErrPreferencesNotFound    = errors.New("signature preferences not found")

	// ErrVersionConflict signals a lost optimistic-concurrency race on a
	// correspondence update; callers reload and retry.
	ErrVersionConflict = errors.New("correspondence version conflict")
	// ErrStepConflict signals two appenders computed the same step number.
	ErrStepConflict = errors.New("minute step number conflict")
	// ErrDuplicateReference signals a reference-number collision on create.
	ErrDuplicateReference = errors.New("duplicate reference number")
	// ErrActiveDelegationExists enforces the one-active-delegation rule.
	ErrActiveDelegationExists = errors.New("active delegation already exists")
	// ErrDuplicateDistribution signals the (type, target) key is already
	// present for the correspondence.
	ErrDuplicateDistribution = errors.New("duplicate distribution recipient")
)

// Repository is the persistence contract for the workflow engine. All
// mutating correspondence operations are serialized per correspondence id by
// the implementation (row locks or equivalent).
type Repository interface {
	// Org directory
	CreateDirectorate(ctx context.Context, d model.Directorate) error
	CreateDivision(ctx context.Context, d model.Division) error
	CreateDepartment(ctx context.Context, d model.Department) error
	CreateUser(ctx context.Context, u model.User) error
	GetUser(ctx context.Context, id uuid.UUID) (model.User, error)
	ListActiveUsers(ctx context.Context) ([]model.User, error)
	GetDirectorate(ctx context.Context, id uuid.UUID) (model.Directorate, error)
	GetDivision(ctx context.Context, id uuid.UUID) (model.Division, error)
	GetDepartment(ctx context.Context, id uuid.UUID) (model.Department, error)

	// Correspondence
	CreateCorrespondence(ctx context.Context, c model.Correspondence) error
	GetCorrespondence(ctx context.Context, id uuid.UUID) (model.Correspondence, error)
	UpdateCorrespondence(ctx context.Context, c model.Correspondence) (model.Correspondence, error)
	ListCorrespondenceForApprover(ctx context.Context, approverID uuid.UUID) ([]model.Correspondence, error)

	// Minute ledger
	ListMinutes(ctx context.Context, correspondenceID uuid.UUID) ([]model.Minute, error)
	AppendMinute(ctx context.Context, m model.Minute) error
	MarkMinutesRead(ctx context.Context, correspondenceID, readerID uuid.UUID, at time.Time) error

	// Delegation registry
	CreateDelegation(ctx context.Context, d model.Delegation) error
	GetDelegation(ctx context.Context, id uuid.UUID) (model.Delegation, error)
	GetActiveDelegation(ctx context.Context, correspondenceID uuid.UUID) (model.Delegation, error)
	UpdateDelegation(ctx context.Context, d model.Delegation) error

	// Distribution ledger
	AddDistribution(ctx context.Context, r model.DistributionRecipient) error
	ListDistribution(ctx context.Context, correspondenceID uuid.UUID) ([]model.DistributionRecipient, error)

	// Signatures
	SaveStoredSignature(ctx context.Context, s model.StoredSignature) error
	GetStoredSignature(ctx context.Context, userID uuid.UUID) (model.StoredSignature, error)
	CreateSignatureTemplate(ctx context.Context, t model.SignatureTemplate) error
	GetSignatureTemplate(ctx context.Context, id uuid.UUID) (model.SignatureTemplate, error)
	ListSignatureTemplates(ctx context.Context, templateType model.TemplateType) ([]model.SignatureTemplate, error)
	SaveSignaturePreferences(ctx context.Context, p model.SignaturePreferences) error
	GetSignaturePreferences(ctx context.Context, userID uuid.UUID) (model.SignaturePreferences, error)

	// Audit
	CreateAuditEvent(ctx context.Context, e model.AuditEvent) error

	// Health
	HealthCheck(ctx context.Context) error
}
