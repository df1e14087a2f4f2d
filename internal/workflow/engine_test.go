package workflow

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corrflow/internal/apperror"
	"corrflow/internal/delegation"
	"corrflow/internal/model"
)

func TestCreateAssignsReferenceAndPendingStatus(t *testing.T) {
	f := newFixture(t)

	c := f.createCorrespondence(t, f.gmA)

	assert.Equal(t, model.StatusPending, c.Status)
	require.NotNil(t, c.CurrentApproverID)
	assert.Equal(t, f.gmA.ID, *c.CurrentApproverID)
	assert.Regexp(t, `^NPA/ADM/\d{4}/\d{2}\d{4}$`, c.ReferenceNumber)
}

func TestSubmitMinuteAdvancesCorrespondence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCorrespondence(t, f.gmA)

	updated, err := f.engine.SubmitMinute(ctx, c.ID, f.gmA.ID, MinuteParams{
		ActionType:  model.ActionTypeMinute,
		Text:        "Please handle.",
		Direction:   model.DirectionDownward,
		RecipientID: f.smA.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusInProgress, updated.Status)
	assert.Equal(t, model.DirectionDownward, updated.Direction)
	require.NotNil(t, updated.CurrentApproverID)
	assert.Equal(t, f.smA.ID, *updated.CurrentApproverID)

	minutes, err := f.repo.ListMinutes(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, minutes, 1)
	assert.Equal(t, 1, minutes[0].StepNumber)
	assert.Equal(t, "MSS1", minutes[0].GradeLevel)
}

func TestStepNumbersAreGapless(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCorrespondence(t, f.gmA)

	_, err := f.engine.SubmitMinute(ctx, c.ID, f.gmA.ID, MinuteParams{
		ActionType: model.ActionTypeMinute, Text: "to SM", Direction: model.DirectionDownward, RecipientID: f.smA.ID,
	})
	require.NoError(t, err)
	_, err = f.engine.SubmitMinute(ctx, c.ID, f.smA.ID, MinuteParams{
		ActionType: model.ActionTypeForward, Text: "to officer", Direction: model.DirectionDownward, RecipientID: f.officer.ID,
	})
	require.NoError(t, err)
	_, err = f.engine.SubmitMinute(ctx, c.ID, f.officer.ID, MinuteParams{
		ActionType: model.ActionTypeMinute, Text: "back up", Direction: model.DirectionUpward, RecipientID: f.smA.ID,
	})
	require.NoError(t, err)

	minutes, err := f.repo.ListMinutes(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, minutes, 3)
	for i, m := range minutes {
		assert.Equal(t, i+1, m.StepNumber)
	}
}

func TestConcurrentMinutingKeepsStepsUnique(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCorrespondence(t, f.gmA)

	// An assistant under delegation stays authorized no matter how the
	// current approver moves, so two racing writes from the assistant must
	// both land with distinct steps.
	_, err := f.delegations.Delegate(ctx, delegation.DelegateParams{
		CorrespondenceID: c.ID,
		ExecutiveID:      f.gmA.ID,
		AssistantID:      f.officer.ID,
		AssistantType:    model.AssistantTypePersonal,
		Permissions:      []model.AssistantPermission{model.AssistantPermissionForward},
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.SubmitMinute(ctx, c.ID, f.officer.ID, MinuteParams{
				ActionType: model.ActionTypeMinute, Text: "racing", Direction: model.DirectionDownward, RecipientID: f.smA.ID,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	minutes, err := f.repo.ListMinutes(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, minutes, 2)
	assert.Equal(t, 1, minutes[0].StepNumber)
	assert.Equal(t, 2, minutes[1].StepNumber)
}

func TestMinuteByNonApproverRejected(t *testing.T) {
	f := newFixture(t)
	c := f.createCorrespondence(t, f.gmA)

	_, err := f.engine.SubmitMinute(context.Background(), c.ID, f.smA.ID, MinuteParams{
		ActionType: model.ActionTypeMinute, Text: "not my turn", Direction: model.DirectionUpward, RecipientID: f.gmA.ID,
	})
	assert.True(t, apperror.IsKind(err, apperror.KindPermission))
}

func TestAssistantUnderDelegationMayMinute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCorrespondence(t, f.gmA)

	_, err := f.delegations.Delegate(ctx, delegation.DelegateParams{
		CorrespondenceID: c.ID,
		ExecutiveID:      f.gmA.ID,
		AssistantID:      f.officer.ID,
		AssistantType:    model.AssistantTypeTechnical,
		Permissions:      []model.AssistantPermission{model.AssistantPermissionForward},
	})
	require.NoError(t, err)

	_, err = f.engine.SubmitMinute(ctx, c.ID, f.officer.ID, MinuteParams{
		ActionType: model.ActionTypeMinute, Text: "acting for GM", Direction: model.DirectionDownward, RecipientID: f.smA.ID,
	})
	require.NoError(t, err)

	minutes, err := f.repo.ListMinutes(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, minutes, 1)
	assert.True(t, minutes[0].ActedByAssistant)
	assert.Equal(t, model.AssistantTypeTechnical, minutes[0].AssistantType)
}

func TestApproveWithoutSignatureFailsUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCorrespondence(t, f.gmA)

	_, err := f.engine.SubmitMinute(ctx, c.ID, f.gmA.ID, MinuteParams{
		ActionType: model.ActionTypeApprove, Text: "approved", Direction: model.DirectionDownward, RecipientID: f.smA.ID,
	})
	assert.True(t, apperror.IsKind(err, apperror.KindPrecondition))

	after, err := f.repo.GetCorrespondence(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, after.Status)
	require.NotNil(t, after.CurrentApproverID)
	assert.Equal(t, f.gmA.ID, *after.CurrentApproverID)

	minutes, err := f.repo.ListMinutes(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, minutes)
}

func TestApproveWithSignatureAttachesPayload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCorrespondence(t, f.gmA)
	require.NoError(t, f.signatures.SaveImage(ctx, f.gmA.ID, "iVBORw0KGgoTEST", "sig.png"))

	_, err := f.engine.SubmitMinute(ctx, c.ID, f.gmA.ID, MinuteParams{
		ActionType: model.ActionTypeApprove, Text: "approved", Direction: model.DirectionDownward, RecipientID: f.smA.ID,
	})
	require.NoError(t, err)

	minutes, err := f.repo.ListMinutes(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, minutes, 1)
	require.NotNil(t, minutes[0].Signature)
	assert.Equal(t, "iVBORw0KGgoTEST", minutes[0].Signature.ImageData)
	assert.Contains(t, minutes[0].Signature.RenderedText, "Chukwu Obi")
}

func TestApexMinuteAlwaysDownward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCorrespondence(t, f.md)

	updated, err := f.engine.SubmitMinute(ctx, c.ID, f.md.ID, MinuteParams{
		ActionType: model.ActionTypeMinute, Text: "to the ED", Direction: model.DirectionUpward, RecipientID: f.ed.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, model.DirectionDownward, updated.Direction)

	minutes, err := f.repo.ListMinutes(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, minutes, 1)
	assert.Equal(t, model.DirectionDownward, minutes[0].Direction)
}

func TestManualRouteJustificationLength(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCorrespondence(t, f.gmA)

	_, err := f.engine.ManualRoute(ctx, c.ID, f.gmA.ID, f.gmB.ID, "short")
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	updated, err := f.engine.ManualRoute(ctx, c.ID, f.gmA.ID, f.gmB.ID, "cross-division review")
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, updated.Status)
	require.NotNil(t, updated.CurrentApproverID)
	assert.Equal(t, f.gmB.ID, *updated.CurrentApproverID)

	minutes, err := f.repo.ListMinutes(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, minutes, 1)
	assert.True(t, strings.HasPrefix(minutes[0].Text, "[MANUAL ROUTE]"))
	assert.Equal(t, model.ActionTypeForward, minutes[0].ActionType)
	assert.Equal(t, model.DirectionDownward, minutes[0].Direction)
}

func TestManualRouteBypassesApproverGuard(t *testing.T) {
	f := newFixture(t)
	c := f.createCorrespondence(t, f.gmA)

	// The SM is not the current approver but may still manual-route.
	_, err := f.engine.ManualRoute(context.Background(), c.ID, f.smA.ID, f.officer.ID, "urgent reassignment needed")
	require.NoError(t, err)
}

func TestTreatAndRespondSpawnsReply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCorrespondence(t, f.smA)

	result, err := f.engine.TreatAndRespond(ctx, c.ID, f.smA.ID, TreatParams{
		Subject:     "Findings on berth review",
		Body:        "Two windows are available next quarter.",
		RecipientID: f.gmA.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusInProgress, result.Original.Status)

	reply := result.Reply
	assert.Equal(t, model.StatusPending, reply.Status)
	assert.Equal(t, model.DirectionUpward, reply.Direction)
	assert.Equal(t, model.SourceInternal, reply.Source)
	require.NotNil(t, reply.CurrentApproverID)
	assert.Equal(t, f.gmA.ID, *reply.CurrentApproverID)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, c.ID, *reply.ParentID)
	assert.NotEqual(t, c.ReferenceNumber, reply.ReferenceNumber)

	minutes, err := f.repo.ListMinutes(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, minutes, 1)
	assert.Equal(t, model.ActionTypeTreat, minutes[0].ActionType)
	assert.Equal(t, model.DirectionUpward, minutes[0].Direction)
	assert.Contains(t, minutes[0].Text, "[TREATMENT & RESPONSE]")
	assert.Contains(t, minutes[0].Text, "Findings on berth review")
}

func TestTreatValidation(t *testing.T) {
	f := newFixture(t)
	c := f.createCorrespondence(t, f.smA)

	_, err := f.engine.TreatAndRespond(context.Background(), c.ID, f.smA.ID, TreatParams{
		Subject: "abc", Body: "long enough reply body", RecipientID: f.gmA.ID,
	})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	_, err = f.engine.TreatAndRespond(context.Background(), c.ID, f.smA.ID, TreatParams{
		Subject: "Valid subject", Body: "short", RecipientID: f.gmA.ID,
	})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestCompletionRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCorrespondence(t, f.gmA)

	// Not the approver's turn.
	_, err := f.engine.Complete(ctx, c.ID, f.smA.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindPrecondition))

	done, err := f.engine.Complete(ctx, c.ID, f.gmA.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	require.NotNil(t, done.CurrentApproverID, "approver is retained for audit")

	// Completed twice.
	_, err = f.engine.Complete(ctx, c.ID, f.gmA.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindPrecondition))
}

func TestNoMinutesAfterCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCorrespondence(t, f.gmA)
	_, err := f.engine.Complete(ctx, c.ID, f.gmA.ID)
	require.NoError(t, err)

	_, err = f.engine.SubmitMinute(ctx, c.ID, f.gmA.ID, MinuteParams{
		ActionType: model.ActionTypeMinute, Text: "too late", Direction: model.DirectionDownward, RecipientID: f.smA.ID,
	})
	assert.True(t, apperror.IsKind(err, apperror.KindPrecondition))

	_, err = f.engine.ManualRoute(ctx, c.ID, f.gmA.ID, f.smA.ID, "also much too late")
	assert.True(t, apperror.IsKind(err, apperror.KindPrecondition))
}

func TestArchiveRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCorrespondence(t, f.gmA)

	// Not completed yet.
	_, err := f.engine.Archive(ctx, c.ID, f.gmA.ID, model.ArchiveLevelDivision)
	assert.True(t, apperror.IsKind(err, apperror.KindPrecondition))

	_, err = f.engine.Complete(ctx, c.ID, f.gmA.ID)
	require.NoError(t, err)

	// An officer lacks division-level archival authority.
	_, err = f.engine.Archive(ctx, c.ID, f.officer.ID, model.ArchiveLevelDivision)
	assert.True(t, apperror.IsKind(err, apperror.KindPermission))

	archived, err := f.engine.Archive(ctx, c.ID, f.gmA.ID, model.ArchiveLevelDivision)
	require.NoError(t, err)
	assert.Equal(t, model.StatusArchived, archived.Status)
	assert.Equal(t, model.ArchiveLevelDivision, archived.ArchiveLevel)
}

func TestSuggestNeverReturnsActor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, actor := range []model.User{f.md, f.ed, f.gmA, f.smA, f.officer} {
		for _, direction := range []model.Direction{model.DirectionUpward, model.DirectionDownward} {
			s, err := f.engine.SuggestApprovers(ctx, actor.ID, direction, nil)
			require.NoError(t, err)
			for _, c := range s.Candidates {
				assert.NotEqual(t, actor.ID, c.User.ID)
			}
		}
	}
}

func TestMinutesMarkedReadForReader(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCorrespondence(t, f.gmA)

	_, err := f.engine.SubmitMinute(ctx, c.ID, f.gmA.ID, MinuteParams{
		ActionType: model.ActionTypeMinute, Text: "please handle", Direction: model.DirectionDownward, RecipientID: f.smA.ID,
	})
	require.NoError(t, err)

	_, err = f.engine.Minutes(ctx, c.ID, f.smA.ID)
	require.NoError(t, err)

	minutes, err := f.repo.ListMinutes(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, minutes, 1)
	assert.NotNil(t, minutes[0].ReadAt)
}
