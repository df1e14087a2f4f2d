package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corrflow/internal/model"
)

func seedCorrespondence(t *testing.T, repo *MemoryRepository) model.Correspondence {
	t.Helper()
	approver := uuid.New()
	c := model.Correspondence{
		ID:                uuid.New(),
		ReferenceNumber:   "NPA/ADM/2026/081234",
		Subject:           "Test letter",
		Status:            model.StatusPending,
		Priority:          model.PriorityMedium,
		Direction:         model.DirectionDownward,
		CurrentApproverID: &approver,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	require.NoError(t, repo.CreateCorrespondence(context.Background(), c))
	return c
}

func TestDuplicateReferenceRejected(t *testing.T) {
	repo := NewMemoryRepository()
	c := seedCorrespondence(t, repo)

	dup := c
	dup.ID = uuid.New()
	err := repo.CreateCorrespondence(context.Background(), dup)
	assert.ErrorIs(t, err, ErrDuplicateReference)
}

func TestUpdateCorrespondenceVersionCheck(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	c := seedCorrespondence(t, repo)

	first := c
	first.Status = model.StatusInProgress
	updated, err := repo.UpdateCorrespondence(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, c.Version+1, updated.Version)

	// A writer still holding the old version loses.
	stale := c
	stale.Status = model.StatusCompleted
	_, err = repo.UpdateCorrespondence(ctx, stale)
	assert.ErrorIs(t, err, ErrVersionConflict)

	// Reloading and retrying with the fresh version wins.
	updated.Status = model.StatusCompleted
	_, err = repo.UpdateCorrespondence(ctx, updated)
	require.NoError(t, err)
}

func TestAppendMinuteStepUniqueness(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	c := seedCorrespondence(t, repo)

	m := model.Minute{
		ID:               uuid.New(),
		CorrespondenceID: c.ID,
		UserID:           uuid.New(),
		ActionType:       model.ActionTypeMinute,
		Text:             "first",
		Direction:        model.DirectionDownward,
		StepNumber:       1,
		Timestamp:        time.Now(),
	}
	require.NoError(t, repo.AppendMinute(ctx, m))

	clash := m
	clash.ID = uuid.New()
	clash.Text = "same step"
	assert.ErrorIs(t, repo.AppendMinute(ctx, clash), ErrStepConflict)
}

func TestSingleActiveDelegation(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	c := seedCorrespondence(t, repo)

	d := model.Delegation{
		ID:               uuid.New(),
		CorrespondenceID: c.ID,
		ExecutiveID:      uuid.New(),
		AssistantID:      uuid.New(),
		AssistantType:    model.AssistantTypeTechnical,
		Permissions:      []model.AssistantPermission{model.AssistantPermissionForward},
		Status:           model.DelegationStatusActive,
		DelegatedAt:      time.Now(),
	}
	require.NoError(t, repo.CreateDelegation(ctx, d))

	second := d
	second.ID = uuid.New()
	assert.ErrorIs(t, repo.CreateDelegation(ctx, second), ErrActiveDelegationExists)

	// Revoking frees the slot.
	now := time.Now()
	d.Status = model.DelegationStatusRevoked
	d.RevokedAt = &now
	require.NoError(t, repo.UpdateDelegation(ctx, d))
	require.NoError(t, repo.CreateDelegation(ctx, second))
}

func TestDistributionDedup(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	c := seedCorrespondence(t, repo)
	target := uuid.New()

	rec := model.DistributionRecipient{
		ID:               uuid.New(),
		CorrespondenceID: c.ID,
		Type:             model.RecipientTypeDivision,
		TargetID:         target,
		Purpose:          model.PurposeInformation,
		AddedByID:        uuid.New(),
		AddedAt:          time.Now(),
	}
	require.NoError(t, repo.AddDistribution(ctx, rec))

	dup := rec
	dup.ID = uuid.New()
	dup.Purpose = model.PurposeAction // same key, different payload
	assert.ErrorIs(t, repo.AddDistribution(ctx, dup), ErrDuplicateDistribution)

	other := rec
	other.ID = uuid.New()
	other.Type = model.RecipientTypeDepartment
	require.NoError(t, repo.AddDistribution(ctx, other))

	list, err := repo.ListDistribution(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestMarkMinutesReadSkipsAuthor(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	c := seedCorrespondence(t, repo)
	author := uuid.New()

	require.NoError(t, repo.AppendMinute(ctx, model.Minute{
		ID: uuid.New(), CorrespondenceID: c.ID, UserID: author,
		ActionType: model.ActionTypeMinute, Text: "mine", Direction: model.DirectionDownward,
		StepNumber: 1, Timestamp: time.Now(),
	}))

	require.NoError(t, repo.MarkMinutesRead(ctx, c.ID, author, time.Now()))
	minutes, err := repo.ListMinutes(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, minutes[0].ReadAt, "authors do not mark their own minutes")

	reader := uuid.New()
	require.NoError(t, repo.MarkMinutesRead(ctx, c.ID, reader, time.Now()))
	minutes, err = repo.ListMinutes(ctx, c.ID)
	require.NoError(t, err)
	assert.NotNil(t, minutes[0].ReadAt)
}
