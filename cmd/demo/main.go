package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"corrflow/internal/audit"
	"corrflow/internal/config"
	"corrflow/internal/delegation"
	"corrflow/internal/distribution"
	"corrflow/internal/logger"
	"corrflow/internal/model"
	"corrflow/internal/repository"
	"corrflow/internal/signature"
	"corrflow/internal/workflow"
)

// Walks one correspondence through the full lifecycle against the in-memory
// store: intake, minuting down the ladder, a treatment reply, distribution,
// completion and archival.
func main() {
	cfg := config.NewConfig()
	log := logger.New(cfg)
	ctx := context.Background()

	repo := repository.NewMemoryRepository()
	auditor := audit.NewAuditor(log, repo)
	signatures := signature.NewService(repo, repo)
	if err := signatures.SeedDefaultTemplates(ctx); err != nil {
		fail(log, "seed templates", err)
	}

	delegations := delegation.NewRegistry(repo, repo, auditor)
	distributions := distribution.NewLedger(repo, repo, auditor, cfg.Workflow.ManagementRank)
	engine := workflow.NewEngine(
		repo,
		repo,
		workflow.NewResolver(repo),
		workflow.NewLedger(repo),
		signatures,
		delegations,
		workflow.NewReferenceGenerator(cfg.Workflow.OrgCode),
		auditor,
		log,
		cfg.Workflow,
	)

	// Seed a small organization.
	directorate := model.Directorate{ID: uuid.New(), Name: "Corporate Services", Code: "CS", Active: true, CreatedAt: time.Now()}
	division := model.Division{ID: uuid.New(), DirectorateID: directorate.ID, Name: "Administration", Code: "ADM", Active: true, CreatedAt: time.Now()}
	department := model.Department{ID: uuid.New(), DivisionID: division.ID, Name: "Registry", Code: "REG", Active: true, CreatedAt: time.Now()}
	if err := repo.CreateDirectorate(ctx, directorate); err != nil {
		fail(log, "seed directorate", err)
	}
	if err := repo.CreateDivision(ctx, division); err != nil {
		fail(log, "seed division", err)
	}
	if err := repo.CreateDepartment(ctx, department); err != nil {
		fail(log, "seed department", err)
	}

	md := seedUser(ctx, log, repo, "Amina Bello", "MDCS", nil, nil)
	gm := seedUser(ctx, log, repo, "Chukwu Obi", "MSS1", &division.ID, nil)
	sm := seedUser(ctx, log, repo, "Fatima Sule", "MSS4", &division.ID, &department.ID)
	officer := seedUser(ctx, log, repo, "Yusuf Danladi", "SSS1", &division.ID, &department.ID)

	if err := signatures.SaveImage(ctx, gm.ID, "iVBORw0KGgoDEMO", "gm-signature.png"); err != nil {
		fail(log, "store signature", err)
	}

	// Intake: external letter lands on the GM's desk.
	letter, err := engine.Create(ctx, workflow.CreateParams{
		Subject:           "Request for berth allocation review",
		SenderName:        "Lagos Shipping Ltd",
		SenderOrg:         "Lagos Shipping Ltd",
		Source:            model.SourceExternal,
		Priority:          model.PriorityHigh,
		Direction:         model.DirectionDownward,
		DivisionID:        &division.ID,
		DepartmentID:      &department.ID,
		CreatedByID:       gm.ID,
		CurrentApproverID: gm.ID,
	})
	if err != nil {
		fail(log, "create correspondence", err)
	}
	log.Info("Correspondence created", "reference", letter.ReferenceNumber, "status", letter.Status)

	// GM asks who to route to, then approves downward to the SM.
	suggestions, err := engine.SuggestApprovers(ctx, gm.ID, model.DirectionDownward, &letter.ID)
	if err != nil {
		fail(log, "suggest approvers", err)
	}
	if next, ok := suggestions.Suggested(); ok {
		log.Info("Suggested next approver", "name", next.Name, "grade", next.GradeLevel)
	}

	letter, err = engine.SubmitMinute(ctx, letter.ID, gm.ID, workflow.MinuteParams{
		ActionType:  model.ActionTypeApprove,
		Text:        "Please review and advise on available berth windows.",
		Direction:   model.DirectionDownward,
		RecipientID: sm.ID,
	})
	if err != nil {
		fail(log, "approve and forward", err)
	}
	log.Info("Minute recorded", "status", letter.Status, "current_approver", sm.Name)

	// SM delegates coordination to an officer, then treats with a reply to
	// the GM.
	if _, err := delegations.Delegate(ctx, delegation.DelegateParams{
		CorrespondenceID: letter.ID,
		ExecutiveID:      sm.ID,
		AssistantID:      officer.ID,
		AssistantType:    model.AssistantTypeTechnical,
		Permissions:      []model.AssistantPermission{model.AssistantPermissionForward},
		Notes:            "Coordinate berth data collection",
	}); err != nil {
		fail(log, "delegate", err)
	}

	result, err := engine.TreatAndRespond(ctx, letter.ID, sm.ID, workflow.TreatParams{
		Subject:     "Berth allocation review findings",
		Body:        "Two berth windows are available in the coming quarter; details attached.",
		RecipientID: gm.ID,
	})
	if err != nil {
		fail(log, "treat and respond", err)
	}
	log.Info("Treatment reply created", "reply_reference", result.Reply.ReferenceNumber, "addressed_to", gm.Name)

	// GM fans the original out to the directorate for information.
	if _, err := distributions.Add(ctx, letter.ID, gm.ID, []distribution.Recipient{
		{Type: model.RecipientTypeDirectorate, TargetID: directorate.ID, Purpose: model.PurposeInformation},
	}); err != nil {
		fail(log, "add distribution", err)
	}

	// SM completes the original; GM archives it at division level.
	if _, err := engine.Complete(ctx, letter.ID, sm.ID); err != nil {
		fail(log, "complete", err)
	}
	final, err := engine.Archive(ctx, letter.ID, gm.ID, model.ArchiveLevelDivision)
	if err != nil {
		fail(log, "archive", err)
	}
	log.Info("Correspondence archived", "reference", final.ReferenceNumber, "level", final.ArchiveLevel)

	minutes, err := engine.Minutes(ctx, letter.ID, md.ID)
	if err != nil {
		fail(log, "list minutes", err)
	}
	for _, m := range minutes {
		log.Info("Ledger entry", "step", m.StepNumber, "action", m.ActionType, "direction", m.Direction)
	}
	log.Info("Audit trail", "events", len(repo.AuditEvents()))
}

func seedUser(ctx context.Context, log *slog.Logger, repo *repository.MemoryRepository, name, grade string, divisionID, departmentID *uuid.UUID) model.User {
	u := model.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@corrflow.local",
		GradeLevel:   grade,
		DivisionID:   divisionID,
		DepartmentID: departmentID,
		Active:       true,
		CreatedAt:    time.Now(),
	}
	if err := repo.CreateUser(ctx, u); err != nil {
		fail(log, "seed user", err)
	}
	return u
}

func fail(log *slog.Logger, step string, err error) {
	log.Error("Demo step failed", "step", step, "error", err)
	os.Exit(1)
}
