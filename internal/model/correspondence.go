package model

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusArchived   Status = "archived"
)

type Direction string

const (
	DirectionUpward   Direction = "upward"
	DirectionDownward Direction = "downward"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type Source string

const (
	SourceInternal Source = "internal"
	SourceExternal Source = "external"
)

type ArchiveLevel string

const (
	ArchiveLevelDepartment  ArchiveLevel = "department"
	ArchiveLevelDivision    ArchiveLevel = "division"
	ArchiveLevelDirectorate ArchiveLevel = "directorate"
)

type Correspondence struct {
	ID                uuid.UUID    `json:"id"`
	ReferenceNumber   string       `json:"reference_number"`
	Subject           string       `json:"subject"`
	SenderName        string       `json:"sender_name"`
	SenderOrg         string       `json:"sender_organization,omitempty"`
	Source            Source       `json:"source"`
	Status            Status       `json:"status"`
	Priority          Priority     `json:"priority"`
	Direction         Direction    `json:"direction"`
	ArchiveLevel      ArchiveLevel `json:"archive_level,omitempty"`
	DivisionID        *uuid.UUID   `json:"division_id,omitempty"`
	DepartmentID      *uuid.UUID   `json:"department_id,omitempty"`
	CurrentApproverID *uuid.UUID   `json:"current_approver_id,omitempty"`
	CreatedByID       *uuid.UUID   `json:"created_by_id,omitempty"`
	ParentID          *uuid.UUID   `json:"parent_id,omitempty"`
	ReceivedDate      time.Time    `json:"received_date"`
	CompletedAt       *time.Time   `json:"completed_at,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`

	// Version is bumped on every committed mutation and backs the
	// optimistic concurrency check in the repository.
	Version int64 `json:"-"`
}

// IsOverdue reports whether the correspondence has sat unresolved longer
// than its priority allows.
func (c Correspondence) IsOverdue(now time.Time) bool {
	if c.Status == StatusCompleted || c.Status == StatusArchived {
		return false
	}
	age := now.Sub(c.ReceivedDate)
	switch c.Priority {
	case PriorityUrgent:
		return age > 24*time.Hour
	case PriorityHigh:
		return age > 3*24*time.Hour
	case PriorityMedium:
		return age > 7*24*time.Hour
	case PriorityLow:
		return age > 10*24*time.Hour
	default:
		return age > 14*24*time.Hour
	}
}
