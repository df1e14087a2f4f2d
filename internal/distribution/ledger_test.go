package distribution

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corrflow/internal/apperror"
	"corrflow/internal/audit"
	"corrflow/internal/model"
	"corrflow/internal/repository"
)

type env struct {
	ledger      *Ledger
	repo        *repository.MemoryRepository
	manager     model.User
	officer     model.User
	division    model.Division
	department  model.Department
	directorate model.Directorate
	corr        model.Correspondence
}

func setup(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	auditor := audit.NewAuditor(slog.New(slog.DiscardHandler), repo)
	// MSS3 and above count as management.
	ledger := NewLedger(repo, repo, auditor, 6)

	e := &env{ledger: ledger, repo: repo}
	e.directorate = model.Directorate{ID: uuid.New(), Name: "Corporate Services", Code: "CS", Active: true, CreatedAt: time.Now()}
	require.NoError(t, repo.CreateDirectorate(ctx, e.directorate))
	e.division = model.Division{ID: uuid.New(), DirectorateID: e.directorate.ID, Name: "Administration", Code: "ADM", Active: true, CreatedAt: time.Now()}
	require.NoError(t, repo.CreateDivision(ctx, e.division))
	e.department = model.Department{ID: uuid.New(), DivisionID: e.division.ID, Name: "Registry", Code: "REG", Active: true, CreatedAt: time.Now()}
	require.NoError(t, repo.CreateDepartment(ctx, e.department))

	e.manager = model.User{ID: uuid.New(), Name: "Chukwu Obi", Email: "obi@corrflow.local", GradeLevel: "MSS1", Active: true, CreatedAt: time.Now()}
	e.officer = model.User{ID: uuid.New(), Name: "Yusuf Danladi", Email: "danladi@corrflow.local", GradeLevel: "SSS1", Active: true, CreatedAt: time.Now()}
	require.NoError(t, repo.CreateUser(ctx, e.manager))
	require.NoError(t, repo.CreateUser(ctx, e.officer))

	approver := e.manager.ID
	e.corr = model.Correspondence{
		ID:                uuid.New(),
		ReferenceNumber:   "NPA/ADM/2026/087654",
		Subject:           "Distribution target",
		Status:            model.StatusInProgress,
		Priority:          model.PriorityMedium,
		Direction:         model.DirectionDownward,
		CurrentApproverID: &approver,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	require.NoError(t, repo.CreateCorrespondence(ctx, e.corr))
	return e
}

func TestAddDeduplicatesByKey(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	added, err := e.ledger.Add(ctx, e.corr.ID, e.manager.ID, []Recipient{
		{Type: model.RecipientTypeDivision, TargetID: e.division.ID, Purpose: model.PurposeInformation},
		{Type: model.RecipientTypeDepartment, TargetID: e.department.ID, Purpose: model.PurposeAction},
	})
	require.NoError(t, err)
	assert.Len(t, added, 2)

	// Same key again, different purpose: still one entry.
	again, err := e.ledger.Add(ctx, e.corr.ID, e.manager.ID, []Recipient{
		{Type: model.RecipientTypeDivision, TargetID: e.division.ID, Purpose: model.PurposeComment},
	})
	require.NoError(t, err)
	assert.Empty(t, again)

	list, err := e.ledger.ListFor(ctx, e.corr.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestAddRequiresManagementGrade(t *testing.T) {
	e := setup(t)

	_, err := e.ledger.Add(context.Background(), e.corr.ID, e.officer.ID, []Recipient{
		{Type: model.RecipientTypeDivision, TargetID: e.division.ID, Purpose: model.PurposeInformation},
	})
	assert.True(t, apperror.IsKind(err, apperror.KindPermission))
}

func TestAddValidatesTargets(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	_, err := e.ledger.Add(ctx, e.corr.ID, e.manager.ID, []Recipient{
		{Type: model.RecipientTypeDirectorate, TargetID: uuid.New(), Purpose: model.PurposeInformation},
	})
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))

	_, err = e.ledger.Add(ctx, e.corr.ID, e.manager.ID, []Recipient{
		{Type: "committee", TargetID: e.division.ID, Purpose: model.PurposeInformation},
	})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	_, err = e.ledger.Add(ctx, e.corr.ID, e.manager.ID, nil)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	// A bad target anywhere in the batch rejects the whole request.
	_, err = e.ledger.Add(ctx, e.corr.ID, e.manager.ID, []Recipient{
		{Type: model.RecipientTypeDivision, TargetID: e.division.ID, Purpose: model.PurposeInformation},
		{Type: model.RecipientTypeDepartment, TargetID: uuid.New(), Purpose: model.PurposeAction},
	})
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	list, err := e.ledger.ListFor(ctx, e.corr.ID)
	require.NoError(t, err)
	assert.Empty(t, list, "rejected requests leave no partial state")
}
