package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corrflow/internal/apperror"
	"corrflow/internal/model"
)

func TestNextStepNumber(t *testing.T) {
	tests := []struct {
		name    string
		minutes []model.Minute
		want    int
	}{
		{name: "empty ledger", minutes: nil, want: 1},
		{name: "single entry", minutes: []model.Minute{{StepNumber: 1}}, want: 2},
		{
			name:    "unordered entries",
			minutes: []model.Minute{{StepNumber: 3}, {StepNumber: 1}, {StepNumber: 2}},
			want:    4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextStepNumber(tt.minutes))
		})
	}
}

func TestLedgerAppendValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ledger := NewLedger(f.repo)
	c := f.createCorrespondence(t, f.gmA)

	base := model.Minute{
		ID:               uuid.New(),
		CorrespondenceID: c.ID,
		UserID:           f.gmA.ID,
		GradeLevel:       f.gmA.GradeLevel,
		ActionType:       model.ActionTypeMinute,
		Direction:        model.DirectionDownward,
		Timestamp:        time.Now(),
	}

	empty := base
	empty.Text = "   "
	empty.StepNumber = 1
	assert.True(t, apperror.IsKind(ledger.Append(ctx, empty), apperror.KindValidation))

	unknown := base
	unknown.CorrespondenceID = uuid.New()
	unknown.Text = "orphaned"
	unknown.StepNumber = 1
	assert.True(t, apperror.IsKind(ledger.Append(ctx, unknown), apperror.KindNotFound))

	wrongStep := base
	wrongStep.Text = "skipping ahead"
	wrongStep.StepNumber = 5
	assert.True(t, apperror.IsKind(ledger.Append(ctx, wrongStep), apperror.KindConflict))

	ok := base
	ok.Text = "first entry"
	ok.StepNumber = 1
	require.NoError(t, ledger.Append(ctx, ok))
}

func TestLedgerLatest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ledger := NewLedger(f.repo)
	c := f.createCorrespondence(t, f.gmA)

	_, found, err := ledger.Latest(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, found)

	now := time.Now()
	for step := 1; step <= 3; step++ {
		m := model.Minute{
			ID:               uuid.New(),
			CorrespondenceID: c.ID,
			UserID:           f.gmA.ID,
			GradeLevel:       f.gmA.GradeLevel,
			ActionType:       model.ActionTypeMinute,
			Text:             "entry",
			Direction:        model.DirectionDownward,
			StepNumber:       step,
			Timestamp:        now, // identical timestamps, step breaks the tie
		}
		require.NoError(t, ledger.Append(ctx, m))
	}

	latest, found, err := ledger.Latest(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 3, latest.StepNumber)
}

func TestReferenceNumberFormat(t *testing.T) {
	gen := NewReferenceGenerator("NPA")
	now := time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 50; i++ {
		ref := gen.next("ADM", now)
		assert.Regexp(t, `^NPA/ADM/2026/08\d{4}$`, ref)
	}
}

func TestReferenceCollisionRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gen := NewReferenceGenerator("NPA")

	// Saturating the store with distinct references must not make creation
	// fail; a collision just draws a fresh suffix.
	for i := 0; i < 20; i++ {
		c := model.Correspondence{
			ID:          uuid.New(),
			Subject:     "collision probe",
			Status:      model.StatusPending,
			Priority:    model.PriorityLow,
			Direction:   model.DirectionDownward,
			CreatedByID: &f.gmA.ID,
		}
		_, err := gen.CreateWithReference(ctx, f.repo, c, "ADM")
		require.NoError(t, err)
	}
}
