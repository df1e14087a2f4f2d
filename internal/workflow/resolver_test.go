package workflow

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corrflow/internal/model"
)

func candidateIDs(s Suggestions) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s.Candidates))
	for _, c := range s.Candidates {
		ids = append(ids, c.User.ID)
	}
	return ids
}

func TestResolverDownwardStaysInDivision(t *testing.T) {
	f := newFixture(t)

	s, err := f.resolver.Suggest(context.Background(), f.gmA, model.DirectionDownward, nil)
	require.NoError(t, err)

	assert.False(t, s.Fallback)
	ids := candidateIDs(s)
	assert.Contains(t, ids, f.smA.ID)
	assert.Contains(t, ids, f.officer.ID)
	assert.NotContains(t, ids, f.gmB.ID, "other divisions are out of scope for non-apex actors")
	assert.NotContains(t, ids, f.gmA.ID, "actor is never a candidate")

	// Higher remaining grade first, SM before officer.
	require.Len(t, s.Candidates, 2)
	assert.Equal(t, f.smA.ID, s.Candidates[0].User.ID)
}

func TestResolverApexSeesWholeOrganization(t *testing.T) {
	f := newFixture(t)

	s, err := f.resolver.Suggest(context.Background(), f.md, model.DirectionDownward, nil)
	require.NoError(t, err)

	ids := candidateIDs(s)
	assert.Contains(t, ids, f.ed.ID)
	assert.Contains(t, ids, f.gmA.ID)
	assert.Contains(t, ids, f.gmB.ID)
	assert.Contains(t, ids, f.officer.ID)
	assert.NotContains(t, ids, f.md.ID)

	// ED outranks everyone below apex and sorts first; GMs tie on rank and
	// order by name.
	require.True(t, len(s.Candidates) >= 3)
	assert.Equal(t, f.ed.ID, s.Candidates[0].User.ID)
	assert.Equal(t, f.gmA.ID, s.Candidates[1].User.ID)
	assert.Equal(t, f.gmB.ID, s.Candidates[2].User.ID)
}

func TestResolverApexForcedUpwardIsCoerced(t *testing.T) {
	f := newFixture(t)

	s, err := f.resolver.Suggest(context.Background(), f.md, model.DirectionUpward, nil)
	require.NoError(t, err)

	assert.Equal(t, model.DirectionDownward, s.Direction)
	assert.NotEmpty(t, s.Candidates)
}

func TestResolverUpwardWithinDivisionAndDirectorate(t *testing.T) {
	f := newFixture(t)

	s, err := f.resolver.Suggest(context.Background(), f.smA, model.DirectionUpward, nil)
	require.NoError(t, err)

	ids := candidateIDs(s)
	assert.Contains(t, ids, f.gmA.ID, "same division, higher grade")
	assert.Contains(t, ids, f.gmB.ID, "same directorate through division")
	assert.NotContains(t, ids, f.officer.ID, "lower grades excluded going upward")
	assert.NotContains(t, ids, f.md.ID, "no shared division or directorate")

	// Nearest grade above the actor comes first.
	require.True(t, len(s.Candidates) >= 2)
	assert.Equal(t, "MSS1", s.Candidates[0].User.GradeLevel)
}

func TestResolverAssistantsOutrankHierarchy(t *testing.T) {
	f := newFixture(t)

	s, err := f.resolver.Suggest(context.Background(), f.gmA, model.DirectionDownward, []model.User{f.officer})
	require.NoError(t, err)

	require.NotEmpty(t, s.Candidates)
	assert.Equal(t, f.officer.ID, s.Candidates[0].User.ID)
	assert.Equal(t, BucketAssistant, s.Candidates[0].Bucket)

	// The assistant must not reappear in the hierarchy bucket.
	count := 0
	for _, c := range s.Candidates {
		if c.User.ID == f.officer.ID {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestResolverFallbackRoster(t *testing.T) {
	f := newFixture(t)

	// The MD has no division and no grades above, so an upward request from
	// the ED finds nobody in scope: the MD shares neither division nor
	// directorate.
	s, err := f.resolver.Suggest(context.Background(), f.ed, model.DirectionUpward, nil)
	require.NoError(t, err)

	assert.True(t, s.Fallback)
	assert.NotEmpty(t, s.Candidates)
	assert.NotContains(t, candidateIDs(s), f.ed.ID)
}

func TestResolverDeterministicOrdering(t *testing.T) {
	f := newFixture(t)

	first, err := f.resolver.Suggest(context.Background(), f.md, model.DirectionDownward, nil)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := f.resolver.Suggest(context.Background(), f.md, model.DirectionDownward, nil)
		require.NoError(t, err)
		assert.Equal(t, candidateIDs(first), candidateIDs(again))
	}
}
