package model

import (
	"time"

	"github.com/google/uuid"
)

// GradeLevel is one rung of the organization's grade ladder. Rank is a total
// order: higher rank means more authority.
type GradeLevel struct {
	Code              string `json:"code"`
	DisplayName       string `json:"display_name"`
	Rank              int    `json:"rank"`
	ApprovalAuthority bool   `json:"approval_authority"`
}

type Directorate struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Division struct {
	ID            uuid.UUID `json:"id"`
	DirectorateID uuid.UUID `json:"directorate_id"`
	Name          string    `json:"name"`
	Code          string    `json:"code"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

type Department struct {
	ID         uuid.UUID `json:"id"`
	DivisionID uuid.UUID `json:"division_id"`
	Name       string    `json:"name"`
	Code       string    `json:"code"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

type User struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	GradeLevel    string     `json:"grade_level"`
	SystemRole    string     `json:"system_role,omitempty"`
	DirectorateID *uuid.UUID `json:"directorate_id,omitempty"`
	DivisionID    *uuid.UUID `json:"division_id,omitempty"`
	DepartmentID  *uuid.UUID `json:"department_id,omitempty"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
}
