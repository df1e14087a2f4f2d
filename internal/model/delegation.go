package model

import (
	"time"

	"github.com/google/uuid"
)

type DelegationStatus string

const (
	DelegationStatusActive  DelegationStatus = "active"
	DelegationStatusRevoked DelegationStatus = "revoked"
)

// AssistantPermission gates which workflow actions an assistant may take on
// behalf of the delegating executive.
type AssistantPermission string

const (
	AssistantPermissionForward    AssistantPermission = "forward"
	AssistantPermissionDraft      AssistantPermission = "draft"
	AssistantPermissionCoordinate AssistantPermission = "coordinate"
)

// Delegation grants an assistant acting authority over one correspondence.
// At most one active delegation may exist per correspondence; revocation
// supersedes, it never deletes.
type Delegation struct {
	ID               uuid.UUID             `json:"id"`
	CorrespondenceID uuid.UUID             `json:"correspondence_id"`
	ExecutiveID      uuid.UUID             `json:"executive_id"`
	AssistantID      uuid.UUID             `json:"assistant_id"`
	AssistantType    AssistantType         `json:"assistant_type"`
	Permissions      []AssistantPermission `json:"permissions"`
	Notes            string                `json:"notes,omitempty"`
	Status           DelegationStatus      `json:"status"`
	DelegatedAt      time.Time             `json:"delegated_at"`
	RevokedAt        *time.Time            `json:"revoked_at,omitempty"`
}

func (d Delegation) HasPermission(p AssistantPermission) bool {
	for _, granted := range d.Permissions {
		if granted == p {
			return true
		}
	}
	return false
}
