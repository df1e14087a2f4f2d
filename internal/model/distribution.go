package model

import (
	"time"

	"github.com/google/uuid"
)

type RecipientType string

const (
	RecipientTypeDivision    RecipientType = "division"
	RecipientTypeDepartment  RecipientType = "department"
	RecipientTypeDirectorate RecipientType = "directorate"
)

type DistributionPurpose string

const (
	PurposeInformation DistributionPurpose = "information"
	PurposeAction      DistributionPurpose = "action"
	PurposeComment     DistributionPurpose = "comment"
)

// DistributionRecipient is a CC entry for a correspondence. Entries have set
// semantics keyed by (correspondence, type, target).
type DistributionRecipient struct {
	ID               uuid.UUID           `json:"id"`
	CorrespondenceID uuid.UUID           `json:"correspondence_id"`
	Type             RecipientType       `json:"type"`
	TargetID         uuid.UUID           `json:"target_id"`
	Purpose          DistributionPurpose `json:"purpose"`
	AddedByID        uuid.UUID           `json:"added_by_id"`
	AddedAt          time.Time           `json:"added_at"`
}

// Key identifies the entry within its correspondence's ledger.
func (r DistributionRecipient) Key() string {
	return string(r.Type) + ":" + r.TargetID.String()
}
