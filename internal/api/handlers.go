package api

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"corrflow/internal/apperror"
	"corrflow/internal/delegation"
	"corrflow/internal/distribution"
	"corrflow/internal/model"
	"corrflow/internal/repository"
	"corrflow/internal/signature"
	"corrflow/internal/telemetry"
	"corrflow/internal/validator"
	"corrflow/internal/workflow"
)

// Handler exposes the workflow engine over HTTP. Actor identity arrives as
// an explicit actor_id on every mutating request; authentication is an
// upstream concern.
type Handler struct {
	engine        *workflow.Engine
	delegations   *delegation.Registry
	distributions *distribution.Ledger
	signatures    *signature.Service
	repo          repository.Repository
	validate      *validator.Validator
	telemetry     *telemetry.Telemetry
	logger        *slog.Logger
}

func NewHandler(
	engine *workflow.Engine,
	delegations *delegation.Registry,
	distributions *distribution.Ledger,
	signatures *signature.Service,
	repo repository.Repository,
	validate *validator.Validator,
	tel *telemetry.Telemetry,
	logger *slog.Logger,
) Handler {
	return Handler{
		engine:        engine,
		delegations:   delegations,
		distributions: distributions,
		signatures:    signatures,
		repo:          repo,
		validate:      validate,
		telemetry:     tel,
		logger:        logger,
	}
}

// Health reports database connectivity.
func (h *Handler) Health(c *fiber.Ctx) error {
	if err := h.repo.HealthCheck(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  "database connection failed",
		})
	}
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

type createCorrespondenceRequest struct {
	Subject      string `json:"subject" validate:"required,min=3"`
	SenderName   string `json:"sender_name" validate:"required"`
	SenderOrg    string `json:"sender_organization"`
	Source       string `json:"source" validate:"required,oneof=internal external"`
	Priority     string `json:"priority" validate:"required,priority"`
	Direction    string `json:"direction" validate:"required,direction"`
	DivisionID   string `json:"division_id"`
	DepartmentID string `json:"department_id"`
	ApproverID   string `json:"approver_id" validate:"required,uuid"`
	ActorID      string `json:"actor_id" validate:"required,uuid"`
	ReceivedDate string `json:"received_date"`
}

func (h *Handler) CreateCorrespondence(c *fiber.Ctx) error {
	var req createCorrespondenceRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, h.logger, apperror.Validation("invalid request body"))
	}
	if err := h.validate.Validate(req); err != nil {
		return respondError(c, h.logger, apperror.Wrap(apperror.KindValidation, err, "invalid request"))
	}

	params := workflow.CreateParams{
		Subject:    req.Subject,
		SenderName: req.SenderName,
		SenderOrg:  req.SenderOrg,
		Source:     model.Source(req.Source),
		Priority:   model.Priority(req.Priority),
		Direction:  model.Direction(req.Direction),
	}
	params.CreatedByID = uuid.MustParse(req.ActorID)
	params.CurrentApproverID = uuid.MustParse(req.ApproverID)
	if req.DivisionID != "" {
		id, err := uuid.Parse(req.DivisionID)
		if err != nil {
			return respondError(c, h.logger, apperror.Validation("invalid division id"))
		}
		params.DivisionID = &id
	}
	if req.DepartmentID != "" {
		id, err := uuid.Parse(req.DepartmentID)
		if err != nil {
			return respondError(c, h.logger, apperror.Validation("invalid department id"))
		}
		params.DepartmentID = &id
	}
	if req.ReceivedDate != "" {
		received, err := time.Parse(time.RFC3339, req.ReceivedDate)
		if err != nil {
			return respondError(c, h.logger, apperror.Validation("received_date must be RFC3339"))
		}
		params.ReceivedDate = received
	}

	created, err := h.engine.Create(telemetry.ContextFromFiber(c), params)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":         "success",
		"correspondence": created,
	})
}

func (h *Handler) GetCorrespondence(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, apperror.Validation("invalid correspondence id"))
	}
	correspondence, err := h.engine.Get(c.Context(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"status":         "success",
		"correspondence": correspondence,
		"overdue":        correspondence.IsOverdue(time.Now()),
	})
}

func (h *Handler) Inbox(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, apperror.Validation("invalid user id"))
	}
	items, err := h.engine.Inbox(c.Context(), userID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	now := time.Now()
	type inboxItem struct {
		model.Correspondence
		Overdue bool `json:"overdue"`
	}
	out := make([]inboxItem, 0, len(items))
	for _, item := range items {
		out = append(out, inboxItem{Correspondence: item, Overdue: item.IsOverdue(now)})
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"inbox":  out,
	})
}

func (h *Handler) SuggestApprovers(c *fiber.Ctx) error {
	actorID, err := uuid.Parse(c.Query("actor_id"))
	if err != nil {
		return respondError(c, h.logger, apperror.Validation("invalid actor id"))
	}
	direction := model.Direction(c.Query("direction", string(model.DirectionUpward)))
	if direction != model.DirectionUpward && direction != model.DirectionDownward {
		return respondError(c, h.logger, apperror.Validation("direction must be upward or downward"))
	}

	var correspondenceID *uuid.UUID
	if raw := c.Query("correspondence_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return respondError(c, h.logger, apperror.Validation("invalid correspondence id"))
		}
		correspondenceID = &id
	}

	suggestions, err := h.engine.SuggestApprovers(telemetry.ContextFromFiber(c), actorID, direction, correspondenceID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"status":      "success",
		"suggestions": suggestions,
	})
}

type submitMinuteRequest struct {
	ActorID          string `json:"actor_id" validate:"required,uuid"`
	RecipientID      string `json:"recipient_id" validate:"required,uuid"`
	ActionType       string `json:"action_type" validate:"required,oneof=minute approve forward reject"`
	Text             string `json:"text" validate:"required,min=1"`
	Direction        string `json:"direction" validate:"required,direction"`
	ActedBySecretary bool   `json:"acted_by_secretary"`
}

func (h *Handler) SubmitMinute(c *fiber.Ctx) error {
	correspondenceID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, apperror.Validation("invalid correspondence id"))
	}
	var req submitMinuteRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, h.logger, apperror.Validation("invalid request body"))
	}
	if err := h.validate.Validate(req); err != nil {
		return respondError(c, h.logger, apperror.Wrap(apperror.KindValidation, err, "invalid request"))
	}

	updated, err := h.engine.SubmitMinute(telemetry.ContextFromFiber(c), correspondenceID, uuid.MustParse(req.ActorID), workflow.MinuteParams{
		ActionType:       model.ActionType(req.ActionType),
		Text:             req.Text,
		Direction:        model.Direction(req.Direction),
		RecipientID:      uuid.MustParse(req.RecipientID),
		ActedBySecretary: req.ActedBySecretary,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}

	h.telemetry.MinutesRecorded.Add(c.Context(), 1)
	return c.JSON(fiber.Map{
		"status":         "success",
		"correspondence": updated,
	})
}

func (h *Handler) ListMinutes(c *fiber.Ctx) error {
	correspondenceID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, apperror.Validation("invalid correspondence id"))
	}
	readerID, err := uuid.Parse(c.Query("actor_id"))
	if err != nil {
		return respondError(c, h.logger, apperror.Validation("invalid actor id"))
	}
	minutes, err := h.engine.Minutes(c.Context(), correspondenceID, readerID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"minutes": minutes,
	})
}

type manualRouteRequest struct {
	ActorID       string `json:"actor_id" validate:"required,uuid"`
	RecipientID   string `json:"recipient_id" validate:"required,uuid"`
	Justification string `json:"justification" validate:"required"`
}

func (h *Handler) ManualRoute(c *fiber.Ctx) error {
	correspondenceID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, apperror.Validation("invalid correspondence id"))
	}
	var req manualRouteRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, h.logger, apperror.Validation("invalid request body"))
	}
	if err := h.validate.Validate(req); err != nil {
		return respondError(c, h.logger, apperror.Wrap(apperror.KindValidation, err, "invalid request"))
	}

	updated, err := h.engine.ManualRoute(telemetry.ContextFromFiber(c), correspondenceID,
		uuid.MustParse(req.ActorID), uuid.MustParse(req.RecipientID), req.Justification)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"status":         "success",
		"correspondence": updated,
	})
}

type treatRequest struct {
	ActorID     string `json:"actor_id" validate:"required,uuid"`
	RecipientID string `json:"recipient_id" validate:"required,uuid"`
	Subject     string `json:"subject" validate:"required"`
	Body        string `json:"body" validate:"required"`
}

func (h *Handler) TreatAndRespond(c *fiber.Ctx) error {
	correspondenceID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, apperror.Validation("invalid correspondence id"))
	}
	var req treatRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, h.logger, apperror.Validation("invalid request body"))
	}
	if err := h.validate.Validate(req); err != nil {
		return respondError(c, h.logger, apperror.Wrap(apperror.KindValidation, err, "invalid request"))
	}

	result, err := h.engine.TreatAndRespond(telemetry.ContextFromFiber(c), correspondenceID, uuid.MustParse(req.ActorID), workflow.TreatParams{
		Subject:     req.Subject,
		Body:        req.Body,
		RecipientID: uuid.MustParse(req.RecipientID),
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}

	h.telemetry.TreatmentsCreated.Add(c.Context(), 1)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":   "success",
		"original": result.Original,
		"reply":    result.Reply,
	})
}

type completeRequest struct {
	ActorID string `json:"actor_id" validate:"required,uuid"`
}

func (h *Handler) Complete(c *fiber.Ctx) error {
	correspondenceID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, apperror.Validation("invalid correspondence id"))
	}
	var req completeRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, h.logger, apperror.Validation("invalid request body"))
	}
	if err := h.validate.Validate(req); err != nil {
		return respondError(c, h.logger, apperror.Wrap(apperror.KindValidation, err, "invalid request"))
	}

	updated, err := h.engine.Complete(telemetry.ContextFromFiber(c), correspondenceID, uuid.MustParse(req.ActorID))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"status":         "success",
		"correspondence": updated,
	})
}

type archiveRequest struct {
	ActorID string `json:"actor_id" validate:"required,uuid"`
	Level   string `json:"level" validate:"required,oneof=department division directorate"`
}

func (h *Handler) Archive(c *fiber.Ctx) error {
	correspondenceID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, apperror.Validation("invalid correspondence id"))
	}
	var req archiveRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, h.logger, apperror.Validation("invalid request body"))
	}
	if err := h.validate.Validate(req); err != nil {
		return respondError(c, h.logger, apperror.Wrap(apperror.KindValidation, err, "invalid request"))
	}

	updated, err := h.engine.Archive(telemetry.ContextFromFiber(c), correspondenceID,
		uuid.MustParse(req.ActorID), model.ArchiveLevel(req.Level))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"status":         "success",
		"correspondence": updated,
	})
}

type delegateRequest struct {
	ActorID       string   `json:"actor_id" validate:"required,uuid"`
	AssistantID   string   `json:"assistant_id" validate:"required,uuid"`
	AssistantType string   `json:"assistant_type" validate:"required,oneof=TA PA"`
	Permissions   []string `json:"permissions" validate:"required,min=1,dive,oneof=forward draft coordinate"`
	Notes         string   `json:"notes"`
}

func (h *Handler) Delegate(c *fiber.Ctx) error {
	correspondenceID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, apperror.Validation("invalid correspondence id"))
	}
	var req delegateRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, h.logger, apperror.Validation("invalid request body"))
	}
	if err := h.validate.Validate(req); err != nil {
		return respondError(c, h.logger, apperror.Wrap(apperror.KindValidation, err, "invalid request"))
	}

	permissions := make([]model.AssistantPermission, 0, len(req.Permissions))
	for _, p := range req.Permissions {
		permissions = append(permissions, model.AssistantPermission(p))
	}

	created, err := h.delegations.Delegate(telemetry.ContextFromFiber(c), delegation.DelegateParams{
		CorrespondenceID: correspondenceID,
		ExecutiveID:      uuid.MustParse(req.ActorID),
		AssistantID:      uuid.MustParse(req.AssistantID),
		AssistantType:    model.AssistantType(req.AssistantType),
		Permissions:      permissions,
		Notes:            req.Notes,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":     "success",
		"delegation": created,
	})
}

type revokeDelegationRequest struct {
	ActorID string `json:"actor_id" validate:"required,uuid"`
}

func (h *Handler) RevokeDelegation(c *fiber.Ctx) error {
	delegationID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, apperror.Validation("invalid delegation id"))
	}
	var req revokeDelegationRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, h.logger, apperror.Validation("invalid request body"))
	}
	if err := h.validate.Validate(req); err != nil {
		return respondError(c, h.logger, apperror.Wrap(apperror.KindValidation, err, "invalid request"))
	}

	revoked, err := h.delegations.Revoke(telemetry.ContextFromFiber(c), delegationID, uuid.MustParse(req.ActorID))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"status":     "success",
		"delegation": revoked,
	})
}

type distributionRecipientRequest struct {
	Type     string `json:"type" validate:"required,recipient_type"`
	TargetID string `json:"target_id" validate:"required,uuid"`
	Purpose  string `json:"purpose" validate:"required,distribution_purpose"`
}

type addDistributionRequest struct {
	ActorID    string                         `json:"actor_id" validate:"required,uuid"`
	Recipients []distributionRecipientRequest `json:"recipients" validate:"required,min=1,dive"`
}

func (h *Handler) AddDistribution(c *fiber.Ctx) error {
	correspondenceID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, apperror.Validation("invalid correspondence id"))
	}
	var req addDistributionRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, h.logger, apperror.Validation("invalid request body"))
	}
	if err := h.validate.Validate(req); err != nil {
		return respondError(c, h.logger, apperror.Wrap(apperror.KindValidation, err, "invalid request"))
	}

	recipients := make([]distribution.Recipient, 0, len(req.Recipients))
	for _, r := range req.Recipients {
		recipients = append(recipients, distribution.Recipient{
			Type:     model.RecipientType(r.Type),
			TargetID: uuid.MustParse(r.TargetID),
			Purpose:  model.DistributionPurpose(r.Purpose),
		})
	}

	added, err := h.distributions.Add(telemetry.ContextFromFiber(c), correspondenceID, uuid.MustParse(req.ActorID), recipients)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status": "success",
		"added":  added,
	})
}

func (h *Handler) ListDistribution(c *fiber.Ctx) error {
	correspondenceID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, apperror.Validation("invalid correspondence id"))
	}
	recipients, err := h.distributions.ListFor(c.Context(), correspondenceID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(fiber.Map{
		"status":     "success",
		"recipients": recipients,
	})
}

type uploadSignatureRequest struct {
	ImageData string `json:"image_data" validate:"required"`
	FileName  string `json:"file_name"`
}

func (h *Handler) UploadSignature(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, apperror.Validation("invalid user id"))
	}
	var req uploadSignatureRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, h.logger, apperror.Validation("invalid request body"))
	}
	if err := h.validate.Validate(req); err != nil {
		return respondError(c, h.logger, apperror.Wrap(apperror.KindValidation, err, "invalid request"))
	}

	if err := h.signatures.SaveImage(c.Context(), userID, req.ImageData, req.FileName); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "success"})
}
