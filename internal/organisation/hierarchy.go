package organisation

import (
	"context"

	"github.com/google/uuid"

	"corrflow/internal/model"
)

// gradeLadder is the fixed, totally ordered grade hierarchy. Higher rank
// means more authority; MDCS is the apex.
var gradeLadder = []model.GradeLevel{
	{Code: "MDCS", DisplayName: "Managing Director", Rank: 10, ApprovalAuthority: true},
	{Code: "EDCS", DisplayName: "Executive Director", Rank: 9, ApprovalAuthority: true},
	{Code: "MSS1", DisplayName: "General Manager", Rank: 8, ApprovalAuthority: true},
	{Code: "MSS2", DisplayName: "Assistant General Manager", Rank: 7, ApprovalAuthority: true},
	{Code: "MSS3", DisplayName: "Principal Manager", Rank: 6, ApprovalAuthority: true},
	{Code: "MSS4", DisplayName: "Senior Manager", Rank: 5, ApprovalAuthority: true},
	{Code: "MSS5", DisplayName: "Manager", Rank: 4, ApprovalAuthority: false},
	{Code: "SSS1", DisplayName: "Senior Officer", Rank: 3, ApprovalAuthority: false},
	{Code: "SSS2", DisplayName: "Officer", Rank: 2, ApprovalAuthority: false},
	{Code: "SSS3", DisplayName: "Staff", Rank: 1, ApprovalAuthority: false},
}

var gradesByCode = func() map[string]model.GradeLevel {
	m := make(map[string]model.GradeLevel, len(gradeLadder))
	for _, g := range gradeLadder {
		m[g.Code] = g
	}
	return m
}()

// GradeLevels returns the ladder ordered by descending rank.
func GradeLevels() []model.GradeLevel {
	out := make([]model.GradeLevel, len(gradeLadder))
	copy(out, gradeLadder)
	return out
}

func GradeByCode(code string) (model.GradeLevel, bool) {
	g, ok := gradesByCode[code]
	return g, ok
}

// RankOf returns the grade rank for a code, or 0 for unknown grades so they
// sort below the whole ladder.
func RankOf(code string) int {
	if g, ok := gradesByCode[code]; ok {
		return g.Rank
	}
	return 0
}

// ApexGrade is the highest rung of the ladder.
func ApexGrade() model.GradeLevel {
	return gradeLadder[0]
}

func IsApex(code string) bool {
	return code == gradeLadder[0].Code
}

// CanArchiveAt reports whether a grade may archive at the given level.
// Everyone archives at department level, GM and above at division level,
// ED and MD at directorate level.
func CanArchiveAt(gradeCode string, level model.ArchiveLevel) bool {
	rank := RankOf(gradeCode)
	switch level {
	case model.ArchiveLevelDepartment:
		return true
	case model.ArchiveLevelDivision:
		return rank >= RankOf("MSS1")
	case model.ArchiveLevelDirectorate:
		return rank >= RankOf("EDCS")
	default:
		return false
	}
}

// Directory is the identity/org collaborator consumed by the workflow
// engine. Implementations resolve users and org units; the engine never
// mutates through this interface.
type Directory interface {
	GetUser(ctx context.Context, id uuid.UUID) (model.User, error)
	ListActiveUsers(ctx context.Context) ([]model.User, error)
	GetDirectorate(ctx context.Context, id uuid.UUID) (model.Directorate, error)
	GetDivision(ctx context.Context, id uuid.UUID) (model.Division, error)
	GetDepartment(ctx context.Context, id uuid.UUID) (model.Department, error)
}

// DirectorateOf derives a user's directorate, falling through the division
// when the user has no direct assignment.
func DirectorateOf(ctx context.Context, dir Directory, user model.User) (*uuid.UUID, error) {
	if user.DirectorateID != nil {
		return user.DirectorateID, nil
	}
	if user.DivisionID == nil {
		return nil, nil
	}
	division, err := dir.GetDivision(ctx, *user.DivisionID)
	if err != nil {
		return nil, err
	}
	return &division.DirectorateID, nil
}
