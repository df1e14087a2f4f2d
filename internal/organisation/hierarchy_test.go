package organisation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corrflow/internal/model"
	"corrflow/internal/repository"
)

func TestGradeLadderIsTotallyOrdered(t *testing.T) {
	grades := GradeLevels()
	require.NotEmpty(t, grades)

	for i := 1; i < len(grades); i++ {
		assert.Greater(t, grades[i-1].Rank, grades[i].Rank, "ladder must be strictly descending")
	}
	assert.Equal(t, "MDCS", grades[0].Code)
	assert.True(t, IsApex("MDCS"))
	assert.False(t, IsApex("EDCS"))
}

func TestRankOf(t *testing.T) {
	assert.Equal(t, 10, RankOf("MDCS"))
	assert.Equal(t, 8, RankOf("MSS1"))
	assert.Equal(t, 1, RankOf("SSS3"))
	assert.Equal(t, 0, RankOf("UNKNOWN"), "unknown grades sort below the ladder")
}

func TestCanArchiveAt(t *testing.T) {
	tests := []struct {
		grade string
		level model.ArchiveLevel
		want  bool
	}{
		{"SSS3", model.ArchiveLevelDepartment, true},
		{"SSS3", model.ArchiveLevelDivision, false},
		{"MSS1", model.ArchiveLevelDivision, true},
		{"MSS1", model.ArchiveLevelDirectorate, false},
		{"EDCS", model.ArchiveLevelDirectorate, true},
		{"MDCS", model.ArchiveLevelDirectorate, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanArchiveAt(tt.grade, tt.level), "%s at %s", tt.grade, tt.level)
	}
}

func TestDirectorateOfDerivesThroughDivision(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()

	directorate := model.Directorate{ID: uuid.New(), Name: "Corporate Services", Code: "CS", Active: true, CreatedAt: time.Now()}
	require.NoError(t, repo.CreateDirectorate(ctx, directorate))
	division := model.Division{ID: uuid.New(), DirectorateID: directorate.ID, Name: "Administration", Code: "ADM", Active: true, CreatedAt: time.Now()}
	require.NoError(t, repo.CreateDivision(ctx, division))

	direct := model.User{ID: uuid.New(), DirectorateID: &directorate.ID}
	got, err := DirectorateOf(ctx, repo, direct)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, directorate.ID, *got)

	viaDivision := model.User{ID: uuid.New(), DivisionID: &division.ID}
	got, err = DirectorateOf(ctx, repo, viaDivision)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, directorate.ID, *got)

	unattached := model.User{ID: uuid.New()}
	got, err = DirectorateOf(ctx, repo, unattached)
	require.NoError(t, err)
	assert.Nil(t, got)
}
