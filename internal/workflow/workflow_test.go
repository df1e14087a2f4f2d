package workflow

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"corrflow/internal/audit"
	"corrflow/internal/config"
	"corrflow/internal/delegation"
	"corrflow/internal/model"
	"corrflow/internal/repository"
	"corrflow/internal/signature"
)

// fixture wires the engine against the in-memory store with a small seeded
// organization spanning two divisions under one directorate.
type fixture struct {
	repo        *repository.MemoryRepository
	engine      *Engine
	resolver    *Resolver
	delegations *delegation.Registry
	signatures  *signature.Service

	directorate model.Directorate
	divisionA   model.Division
	divisionB   model.Division
	department  model.Department

	md      model.User // MDCS, apex
	ed      model.User // EDCS, no division
	gmA     model.User // MSS1, division A
	smA     model.User // MSS4, division A
	officer model.User // SSS1, division A
	gmB     model.User // MSS1, division B
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	repo := repository.NewMemoryRepository()
	logger := slog.New(slog.DiscardHandler)
	auditor := audit.NewAuditor(logger, repo)
	signatures := signature.NewService(repo, repo)
	require.NoError(t, signatures.SeedDefaultTemplates(ctx))

	delegations := delegation.NewRegistry(repo, repo, auditor)
	cfg := config.WorkflowConfig{
		OrgCode:                     "NPA",
		ConflictRetries:             3,
		RetryBackoff:                time.Millisecond,
		ManualRouteMinJustification: 10,
		ManagementRank:              6,
	}
	resolver := NewResolver(repo)
	engine := NewEngine(
		repo, repo, resolver, NewLedger(repo), signatures, delegations,
		NewReferenceGenerator(cfg.OrgCode), auditor, logger, cfg,
	)

	f := &fixture{
		repo:        repo,
		engine:      engine,
		resolver:    resolver,
		delegations: delegations,
		signatures:  signatures,
	}

	f.directorate = model.Directorate{ID: uuid.New(), Name: "Corporate Services", Code: "CS", Active: true, CreatedAt: time.Now()}
	require.NoError(t, repo.CreateDirectorate(ctx, f.directorate))
	f.divisionA = model.Division{ID: uuid.New(), DirectorateID: f.directorate.ID, Name: "Administration", Code: "ADM", Active: true, CreatedAt: time.Now()}
	f.divisionB = model.Division{ID: uuid.New(), DirectorateID: f.directorate.ID, Name: "Procurement", Code: "PRC", Active: true, CreatedAt: time.Now()}
	require.NoError(t, repo.CreateDivision(ctx, f.divisionA))
	require.NoError(t, repo.CreateDivision(ctx, f.divisionB))
	f.department = model.Department{ID: uuid.New(), DivisionID: f.divisionA.ID, Name: "Registry", Code: "REG", Active: true, CreatedAt: time.Now()}
	require.NoError(t, repo.CreateDepartment(ctx, f.department))

	f.md = f.seedUser(t, "Amina Bello", "MDCS", nil, nil)
	f.ed = f.seedUser(t, "Daniel Eze", "EDCS", nil, nil)
	f.gmA = f.seedUser(t, "Chukwu Obi", "MSS1", &f.divisionA.ID, nil)
	f.smA = f.seedUser(t, "Fatima Sule", "MSS4", &f.divisionA.ID, &f.department.ID)
	f.officer = f.seedUser(t, "Yusuf Danladi", "SSS1", &f.divisionA.ID, &f.department.ID)
	f.gmB = f.seedUser(t, "Grace Adeyemi", "MSS1", &f.divisionB.ID, nil)
	return f
}

func (f *fixture) seedUser(t *testing.T, name, grade string, divisionID, departmentID *uuid.UUID) model.User {
	t.Helper()
	u := model.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        name + "@corrflow.local",
		GradeLevel:   grade,
		DivisionID:   divisionID,
		DepartmentID: departmentID,
		Active:       true,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, f.repo.CreateUser(context.Background(), u))
	return u
}

func (f *fixture) createCorrespondence(t *testing.T, approver model.User) model.Correspondence {
	t.Helper()
	c, err := f.engine.Create(context.Background(), CreateParams{
		Subject:           "Request for berth allocation review",
		SenderName:        "Lagos Shipping Ltd",
		Source:            model.SourceExternal,
		Priority:          model.PriorityMedium,
		Direction:         model.DirectionDownward,
		DivisionID:        &f.divisionA.ID,
		CreatedByID:       f.gmA.ID,
		CurrentApproverID: approver.ID,
	})
	require.NoError(t, err)
	return c
}
