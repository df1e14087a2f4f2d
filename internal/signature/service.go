package signature

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"corrflow/internal/apperror"
	"corrflow/internal/model"
	"corrflow/internal/organisation"
	"corrflow/internal/repository"
)

// TemplateTypeFor maps a workflow action to the signature template type
// rendered for it.
func TemplateTypeFor(action model.ActionType) model.TemplateType {
	switch action {
	case model.ActionTypeApprove:
		return model.TemplateTypeApproval
	case model.ActionTypeForward:
		return model.TemplateTypeForward
	case model.ActionTypeTreat:
		return model.TemplateTypeTreatment
	default:
		return model.TemplateTypeMinute
	}
}

// Service resolves signature templates and builds the payload attached to
// minutes. Approve actions require an on-file signature image.
type Service struct {
	repo      repository.Repository
	directory organisation.Directory
}

func NewService(repo repository.Repository, directory organisation.Directory) *Service {
	return &Service{repo: repo, directory: directory}
}

// RequireOnFile rejects with a precondition error when the user has no
// stored signature image.
func (s *Service) RequireOnFile(ctx context.Context, userID uuid.UUID) error {
	_, err := s.repo.GetStoredSignature(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrSignatureNotFound) {
			return apperror.Precondition("user %s has no signature on file", userID)
		}
		return fmt.Errorf("failed to load stored signature: %w", err)
	}
	return nil
}

// ResolveTemplate picks the template for a user and action. Resolution
// order: the user's personal override for the type, then the organization
// default marked for automatic application, then the first template of the
// type. A nil result with no error means no template exists.
func (s *Service) ResolveTemplate(ctx context.Context, userID uuid.UUID, action model.ActionType) (*model.SignatureTemplate, error) {
	templateType := TemplateTypeFor(action)

	prefs, err := s.repo.GetSignaturePreferences(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrPreferencesNotFound) {
		return nil, fmt.Errorf("failed to load signature preferences: %w", err)
	}
	if err == nil {
		if overrideID, ok := prefs.TemplateOverrides[templateType]; ok {
			template, err := s.repo.GetSignatureTemplate(ctx, overrideID)
			if err == nil {
				return &template, nil
			}
			if !errors.Is(err, repository.ErrTemplateNotFound) {
				return nil, fmt.Errorf("failed to load override template: %w", err)
			}
			// Stale override, fall through to the organization default.
		}
	}

	templates, err := s.repo.ListSignatureTemplates(ctx, templateType)
	if err != nil {
		return nil, fmt.Errorf("failed to list signature templates: %w", err)
	}
	for i := range templates {
		if templates[i].DefaultApply {
			return &templates[i], nil
		}
	}
	if len(templates) > 0 {
		return &templates[0], nil
	}
	return nil, nil
}

// RenderContext carries the token values substituted into a template's
// format string.
type RenderContext struct {
	Name            string
	Title           string
	GradeLevel      string
	Division        string
	Department      string
	Date            time.Time
	ReferenceNumber string
}

// Render substitutes {token} placeholders in the template format string.
// Unknown tokens are left as literal text.
func Render(template model.SignatureTemplate, rc RenderContext) string {
	replacer := strings.NewReplacer(
		"{name}", rc.Name,
		"{title}", rc.Title,
		"{gradeLevel}", rc.GradeLevel,
		"{division}", rc.Division,
		"{department}", rc.Department,
		"{initials}", initials(rc.Name),
		"{date}", rc.Date.Format("2006-01-02"),
		"{dateTime}", rc.Date.Format("2006-01-02 15:04"),
		"{referenceNumber}", rc.ReferenceNumber,
	)
	return replacer.Replace(template.Format)
}

func initials(name string) string {
	var b strings.Builder
	for _, part := range strings.Fields(name) {
		r := []rune(part)
		if len(r) > 0 {
			b.WriteRune(r[0])
		}
	}
	return strings.ToUpper(b.String())
}

// BuildPayload assembles the signature payload for a minute. Approve
// actions fail without an on-file image; for other actions a missing image
// yields a nil payload and no error.
func (s *Service) BuildPayload(ctx context.Context, user model.User, action model.ActionType, c model.Correspondence) (*model.SignaturePayload, error) {
	stored, err := s.repo.GetStoredSignature(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrSignatureNotFound) {
			if action == model.ActionTypeApprove {
				return nil, apperror.Precondition("approve requires a signature on file for user %s", user.ID)
			}
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load stored signature: %w", err)
	}

	template, err := s.ResolveTemplate(ctx, user.ID, action)
	if err != nil {
		return nil, err
	}

	payload := &model.SignaturePayload{
		ImageData: stored.ImageData,
		FileName:  stored.FileName,
		AppliedAt: time.Now(),
	}
	if template != nil {
		rc := RenderContext{
			Name:            user.Name,
			GradeLevel:      user.GradeLevel,
			Date:            payload.AppliedAt,
			ReferenceNumber: c.ReferenceNumber,
		}
		if grade, ok := organisation.GradeByCode(user.GradeLevel); ok {
			rc.Title = grade.DisplayName
		}
		if user.DivisionID != nil {
			if division, err := s.directory.GetDivision(ctx, *user.DivisionID); err == nil {
				rc.Division = division.Name
			}
		}
		if user.DepartmentID != nil {
			if department, err := s.directory.GetDepartment(ctx, *user.DepartmentID); err == nil {
				rc.Department = department.Name
			}
		}
		templateID := template.ID
		payload.TemplateID = &templateID
		payload.TemplateType = string(template.TemplateType)
		payload.RenderedText = Render(*template, rc)
	}
	return payload, nil
}

// SaveImage stores or replaces a user's signature image.
func (s *Service) SaveImage(ctx context.Context, userID uuid.UUID, imageData, fileName string) error {
	if strings.TrimSpace(imageData) == "" {
		return apperror.Validation("signature image data must not be empty")
	}
	return s.repo.SaveStoredSignature(ctx, model.StoredSignature{
		UserID:     userID,
		ImageData:  imageData,
		FileName:   fileName,
		UploadedAt: time.Now(),
	})
}

// SeedDefaultTemplates installs one organization default per template type
// when none exists yet.
func (s *Service) SeedDefaultTemplates(ctx context.Context) error {
	defaults := []model.SignatureTemplate{
		{
			Name:         "Standard Approval",
			TemplateType: model.TemplateTypeApproval,
			Format:       "Approved by {name}, {title}\n{division}\n{date}\nRef: {referenceNumber}",
			Style:        model.TemplateStyleFormal,
		},
		{
			Name:         "Standard Minute",
			TemplateType: model.TemplateTypeMinute,
			Format:       "{initials} {date}",
			Style:        model.TemplateStyleMinimal,
		},
		{
			Name:         "Standard Forward",
			TemplateType: model.TemplateTypeForward,
			Format:       "Forwarded by {name} ({gradeLevel}) on {dateTime}",
			Style:        model.TemplateStyleMinimal,
		},
		{
			Name:         "Standard Treatment",
			TemplateType: model.TemplateTypeTreatment,
			Format:       "Treated by {name}, {title}\n{department}\n{dateTime}",
			Style:        model.TemplateStyleFormal,
		},
	}

	for _, template := range defaults {
		existing, err := s.repo.ListSignatureTemplates(ctx, template.TemplateType)
		if err != nil {
			return fmt.Errorf("failed to list signature templates: %w", err)
		}
		if len(existing) > 0 {
			continue
		}
		template.ID = uuid.New()
		template.Scope = model.TemplateScopeOrganization
		template.DefaultApply = true
		template.CreatedAt = time.Now()
		if err := s.repo.CreateSignatureTemplate(ctx, template); err != nil {
			return fmt.Errorf("failed to create default template: %w", err)
		}
	}
	return nil
}
