package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"corrflow/internal/database"
	"corrflow/internal/model"
)

const pgUniqueViolation = "23505"

type DatabaseRepository struct {
	db database.Database
}

func NewDatabaseRepository(db database.Database) *DatabaseRepository {
	return &DatabaseRepository{db: db}
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if string(pqErr.Code) != pgUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

func (r *DatabaseRepository) CreateDirectorate(ctx context.Context, d model.Directorate) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO tbl_directorate (id, name, code, active, created_at) VALUES ($1, $2, $3, $4, $5)",
		d.ID, d.Name, d.Code, d.Active, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create directorate: %w", err)
	}
	return nil
}

func (r *DatabaseRepository) CreateDivision(ctx context.Context, d model.Division) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO tbl_division (id, directorate_id, name, code, active, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		d.ID, d.DirectorateID, d.Name, d.Code, d.Active, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create division: %w", err)
	}
	return nil
}

func (r *DatabaseRepository) CreateDepartment(ctx context.Context, d model.Department) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO tbl_department (id, division_id, name, code, active, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		d.ID, d.DivisionID, d.Name, d.Code, d.Active, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create department: %w", err)
	}
	return nil
}

func (r *DatabaseRepository) CreateUser(ctx context.Context, u model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tbl_user (id, name, email, grade_level, system_role, directorate_id, division_id, department_id, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID, u.Name, u.Email, u.GradeLevel, u.SystemRole, u.DirectorateID, u.DivisionID, u.DepartmentID, u.Active, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

const userColumns = "id, name, email, grade_level, system_role, directorate_id, division_id, department_id, active, created_at"

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.GradeLevel, &u.SystemRole,
		&u.DirectorateID, &u.DivisionID, &u.DepartmentID, &u.Active, &u.CreatedAt)
	return u, err
}

func (r *DatabaseRepository) GetUser(ctx context.Context, id uuid.UUID) (model.User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM tbl_user WHERE id = $1", id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, err
	}
	return u, nil
}

func (r *DatabaseRepository) ListActiveUsers(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM tbl_user WHERE active = TRUE ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *DatabaseRepository) GetDirectorate(ctx context.Context, id uuid.UUID) (model.Directorate, error) {
	var d model.Directorate
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, code, active, created_at FROM tbl_directorate WHERE id = $1", id).
		Scan(&d.ID, &d.Name, &d.Code, &d.Active, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Directorate{}, ErrDirectorateNotFound
		}
		return model.Directorate{}, err
	}
	return d, nil
}

func (r *DatabaseRepository) GetDivision(ctx context.Context, id uuid.UUID) (model.Division, error) {
	var d model.Division
	err := r.db.QueryRowContext(ctx,
		"SELECT id, directorate_id, name, code, active, created_at FROM tbl_division WHERE id = $1", id).
		Scan(&d.ID, &d.DirectorateID, &d.Name, &d.Code, &d.Active, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Division{}, ErrDivisionNotFound
		}
		return model.Division{}, err
	}
	return d, nil
}

func (r *DatabaseRepository) GetDepartment(ctx context.Context, id uuid.UUID) (model.Department, error) {
	var d model.Department
	err := r.db.QueryRowContext(ctx,
		"SELECT id, division_id, name, code, active, created_at FROM tbl_department WHERE id = $1", id).
		Scan(&d.ID, &d.DivisionID, &d.Name, &d.Code, &d.Active, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Department{}, ErrDepartmentNotFound
		}
		return model.Department{}, err
	}
	return d, nil
}

const correspondenceColumns = `id, reference_number, subject, sender_name, sender_organization, source, status,
	priority, direction, archive_level, division_id, department_id, current_approver_id, created_by_id,
	parent_id, received_date, completed_at, version, created_at, updated_at`

func scanCorrespondence(row interface{ Scan(...any) error }) (model.Correspondence, error) {
	var c model.Correspondence
	err := row.Scan(&c.ID, &c.ReferenceNumber, &c.Subject, &c.SenderName, &c.SenderOrg, &c.Source,
		&c.Status, &c.Priority, &c.Direction, &c.ArchiveLevel, &c.DivisionID, &c.DepartmentID,
		&c.CurrentApproverID, &c.CreatedByID, &c.ParentID, &c.ReceivedDate, &c.CompletedAt,
		&c.Version, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *DatabaseRepository) CreateCorrespondence(ctx context.Context, c model.Correspondence) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tbl_correspondence (id, reference_number, subject, sender_name, sender_organization, source,
			status, priority, direction, archive_level, division_id, department_id, current_approver_id,
			created_by_id, parent_id, received_date, completed_at, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		c.ID, c.ReferenceNumber, c.Subject, c.SenderName, c.SenderOrg, c.Source,
		c.Status, c.Priority, c.Direction, c.ArchiveLevel, c.DivisionID, c.DepartmentID, c.CurrentApproverID,
		c.CreatedByID, c.ParentID, c.ReceivedDate, c.CompletedAt, c.Version, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "tbl_correspondence_reference_number_key") {
			return ErrDuplicateReference
		}
		return fmt.Errorf("failed to create correspondence: %w", err)
	}
	return nil
}

func (r *DatabaseRepository) GetCorrespondence(ctx context.Context, id uuid.UUID) (model.Correspondence, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+correspondenceColumns+" FROM tbl_correspondence WHERE id = $1", id)
	c, err := scanCorrespondence(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Correspondence{}, ErrCorrespondenceNotFound
		}
		return model.Correspondence{}, err
	}
	return c, nil
}

// UpdateCorrespondence commits a mutation with an optimistic version check.
// The write only lands when the stored version still matches c.Version; the
// returned record carries the bumped version.
func (r *DatabaseRepository) UpdateCorrespondence(ctx context.Context, c model.Correspondence) (model.Correspondence, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tbl_correspondence
		 SET subject = $1, status = $2, priority = $3, direction = $4, archive_level = $5,
		     division_id = $6, department_id = $7, current_approver_id = $8, completed_at = $9,
		     version = version + 1, updated_at = $10
		 WHERE id = $11 AND version = $12`,
		c.Subject, c.Status, c.Priority, c.Direction, c.ArchiveLevel,
		c.DivisionID, c.DepartmentID, c.CurrentApproverID, c.CompletedAt,
		time.Now(), c.ID, c.Version)
	if err != nil {
		return model.Correspondence{}, fmt.Errorf("failed to update correspondence: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return model.Correspondence{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		// Either the row is gone or someone else committed first.
		if _, getErr := r.GetCorrespondence(ctx, c.ID); getErr != nil {
			return model.Correspondence{}, getErr
		}
		return model.Correspondence{}, ErrVersionConflict
	}
	return r.GetCorrespondence(ctx, c.ID)
}

func (r *DatabaseRepository) ListCorrespondenceForApprover(ctx context.Context, approverID uuid.UUID) ([]model.Correspondence, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+correspondenceColumns+` FROM tbl_correspondence
		 WHERE current_approver_id = $1 AND status IN ('pending', 'in-progress')
		 ORDER BY created_at DESC`, approverID)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var items []model.Correspondence
	for rows.Next() {
		c, err := scanCorrespondence(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (r *DatabaseRepository) ListMinutes(ctx context.Context, correspondenceID uuid.UUID) ([]model.Minute, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, correspondence_id, user_id, grade_level, action_type, minute_text, direction, step_number,
		        acted_by_secretary, acted_by_assistant, assistant_type, read_at, signature_payload, ts
		 FROM tbl_minute WHERE correspondence_id = $1 ORDER BY step_number`, correspondenceID)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var minutes []model.Minute
	for rows.Next() {
		var m model.Minute
		var signaturePayload []byte
		if err := rows.Scan(&m.ID, &m.CorrespondenceID, &m.UserID, &m.GradeLevel, &m.ActionType,
			&m.Text, &m.Direction, &m.StepNumber, &m.ActedBySecretary, &m.ActedByAssistant,
			&m.AssistantType, &m.ReadAt, &signaturePayload, &m.Timestamp); err != nil {
			return nil, err
		}
		if len(signaturePayload) > 0 {
			var sig model.SignaturePayload
			if err := json.Unmarshal(signaturePayload, &sig); err != nil {
				return nil, fmt.Errorf("failed to decode signature payload: %w", err)
			}
			m.Signature = &sig
		}
		minutes = append(minutes, m)
	}
	return minutes, rows.Err()
}

func (r *DatabaseRepository) AppendMinute(ctx context.Context, m model.Minute) error {
	var signaturePayload []byte
	if m.Signature != nil {
		data, err := json.Marshal(m.Signature)
		if err != nil {
			return fmt.Errorf("failed to encode signature payload: %w", err)
		}
		signaturePayload = data
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tbl_minute (id, correspondence_id, user_id, grade_level, action_type, minute_text, direction,
			step_number, acted_by_secretary, acted_by_assistant, assistant_type, read_at, signature_payload, ts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		m.ID, m.CorrespondenceID, m.UserID, m.GradeLevel, m.ActionType, m.Text, m.Direction,
		m.StepNumber, m.ActedBySecretary, m.ActedByAssistant, m.AssistantType, m.ReadAt,
		signaturePayload, m.Timestamp)
	if err != nil {
		if isUniqueViolation(err, "tbl_minute_correspondence_id_step_number_key") {
			return ErrStepConflict
		}
		return fmt.Errorf("failed to append minute: %w", err)
	}
	return nil
}

func (r *DatabaseRepository) MarkMinutesRead(ctx context.Context, correspondenceID, readerID uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tbl_minute SET read_at = $1
		 WHERE correspondence_id = $2 AND read_at IS NULL AND user_id <> $3`,
		at, correspondenceID, readerID)
	if err != nil {
		return fmt.Errorf("failed to mark minutes read: %w", err)
	}
	return nil
}

func (r *DatabaseRepository) CreateDelegation(ctx context.Context, d model.Delegation) error {
	permissions := make([]string, 0, len(d.Permissions))
	for _, p := range d.Permissions {
		permissions = append(permissions, string(p))
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tbl_delegation (id, correspondence_id, executive_id, assistant_id, assistant_type,
			permissions, notes, status, delegated_at, revoked_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, d.CorrespondenceID, d.ExecutiveID, d.AssistantID, d.AssistantType,
		pq.Array(permissions), d.Notes, d.Status, d.DelegatedAt, d.RevokedAt)
	if err != nil {
		if isUniqueViolation(err, "idx_delegation_one_active") {
			return ErrActiveDelegationExists
		}
		return fmt.Errorf("failed to create delegation: %w", err)
	}
	return nil
}

const delegationColumns = "id, correspondence_id, executive_id, assistant_id, assistant_type, permissions, notes, status, delegated_at, revoked_at"

func scanDelegation(row interface{ Scan(...any) error }) (model.Delegation, error) {
	var d model.Delegation
	var permissions pq.StringArray
	err := row.Scan(&d.ID, &d.CorrespondenceID, &d.ExecutiveID, &d.AssistantID, &d.AssistantType,
		&permissions, &d.Notes, &d.Status, &d.DelegatedAt, &d.RevokedAt)
	if err != nil {
		return model.Delegation{}, err
	}
	d.Permissions = make([]model.AssistantPermission, 0, len(permissions))
	for _, p := range permissions {
		d.Permissions = append(d.Permissions, model.AssistantPermission(p))
	}
	return d, nil
}

func (r *DatabaseRepository) GetDelegation(ctx context.Context, id uuid.UUID) (model.Delegation, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+delegationColumns+" FROM tbl_delegation WHERE id = $1", id)
	d, err := scanDelegation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Delegation{}, ErrDelegationNotFound
		}
		return model.Delegation{}, err
	}
	return d, nil
}

func (r *DatabaseRepository) GetActiveDelegation(ctx context.Context, correspondenceID uuid.UUID) (model.Delegation, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+delegationColumns+" FROM tbl_delegation WHERE correspondence_id = $1 AND status = 'active'",
		correspondenceID)
	d, err := scanDelegation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Delegation{}, ErrDelegationNotFound
		}
		return model.Delegation{}, err
	}
	return d, nil
}

func (r *DatabaseRepository) UpdateDelegation(ctx context.Context, d model.Delegation) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE tbl_delegation SET status = $1, revoked_at = $2 WHERE id = $3",
		d.Status, d.RevokedAt, d.ID)
	if err != nil {
		return fmt.Errorf("failed to update delegation: %w", err)
	}
	return nil
}

func (r *DatabaseRepository) AddDistribution(ctx context.Context, rec model.DistributionRecipient) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tbl_distribution (id, correspondence_id, recipient_type, target_id, purpose, added_by_id, added_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.CorrespondenceID, rec.Type, rec.TargetID, rec.Purpose, rec.AddedByID, rec.AddedAt)
	if err != nil {
		if isUniqueViolation(err, "tbl_distribution_correspondence_id_recipient_type_target_id_key") {
			return ErrDuplicateDistribution
		}
		return fmt.Errorf("failed to add distribution recipient: %w", err)
	}
	return nil
}

func (r *DatabaseRepository) ListDistribution(ctx context.Context, correspondenceID uuid.UUID) ([]model.DistributionRecipient, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, correspondence_id, recipient_type, target_id, purpose, added_by_id, added_at
		 FROM tbl_distribution WHERE correspondence_id = $1 ORDER BY added_at`, correspondenceID)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var recipients []model.DistributionRecipient
	for rows.Next() {
		var rec model.DistributionRecipient
		if err := rows.Scan(&rec.ID, &rec.CorrespondenceID, &rec.Type, &rec.TargetID,
			&rec.Purpose, &rec.AddedByID, &rec.AddedAt); err != nil {
			return nil, err
		}
		recipients = append(recipients, rec)
	}
	return recipients, rows.Err()
}

func (r *DatabaseRepository) SaveStoredSignature(ctx context.Context, s model.StoredSignature) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tbl_stored_signature (user_id, image_data, file_name, uploaded_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE SET image_data = $2, file_name = $3, uploaded_at = $4`,
		s.UserID, s.ImageData, s.FileName, s.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to save signature: %w", err)
	}
	return nil
}

func (r *DatabaseRepository) GetStoredSignature(ctx context.Context, userID uuid.UUID) (model.StoredSignature, error) {
	var s model.StoredSignature
	err := r.db.QueryRowContext(ctx,
		"SELECT user_id, image_data, file_name, uploaded_at FROM tbl_stored_signature WHERE user_id = $1", userID).
		Scan(&s.UserID, &s.ImageData, &s.FileName, &s.UploadedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.StoredSignature{}, ErrSignatureNotFound
		}
		return model.StoredSignature{}, err
	}
	return s, nil
}

func (r *DatabaseRepository) CreateSignatureTemplate(ctx context.Context, t model.SignatureTemplate) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tbl_signature_template (id, name, description, scope, template_type, format, style, default_apply, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.Name, t.Description, t.Scope, t.TemplateType, t.Format, t.Style, t.DefaultApply, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create signature template: %w", err)
	}
	return nil
}

func (r *DatabaseRepository) GetSignatureTemplate(ctx context.Context, id uuid.UUID) (model.SignatureTemplate, error) {
	var t model.SignatureTemplate
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, scope, template_type, format, style, default_apply, created_at
		 FROM tbl_signature_template WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Description, &t.Scope, &t.TemplateType, &t.Format, &t.Style, &t.DefaultApply, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.SignatureTemplate{}, ErrTemplateNotFound
		}
		return model.SignatureTemplate{}, err
	}
	return t, nil
}

func (r *DatabaseRepository) ListSignatureTemplates(ctx context.Context, templateType model.TemplateType) ([]model.SignatureTemplate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, scope, template_type, format, style, default_apply, created_at
		 FROM tbl_signature_template WHERE template_type = $1 ORDER BY created_at`, templateType)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var templates []model.SignatureTemplate
	for rows.Next() {
		var t model.SignatureTemplate
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Scope, &t.TemplateType,
			&t.Format, &t.Style, &t.DefaultApply, &t.CreatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (r *DatabaseRepository) SaveSignaturePreferences(ctx context.Context, p model.SignaturePreferences) error {
	overrides, err := json.Marshal(p.TemplateOverrides)
	if err != nil {
		return fmt.Errorf("failed to encode template overrides: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO tbl_signature_preferences (user_id, template_overrides, auto_apply_for_minutes)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET template_overrides = $2, auto_apply_for_minutes = $3`,
		p.UserID, overrides, p.AutoApplyForMinutes)
	if err != nil {
		return fmt.Errorf("failed to save signature preferences: %w", err)
	}
	return nil
}

func (r *DatabaseRepository) GetSignaturePreferences(ctx context.Context, userID uuid.UUID) (model.SignaturePreferences, error) {
	var p model.SignaturePreferences
	var overrides []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT user_id, template_overrides, auto_apply_for_minutes FROM tbl_signature_preferences WHERE user_id = $1",
		userID).Scan(&p.UserID, &overrides, &p.AutoApplyForMinutes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.SignaturePreferences{}, ErrPreferencesNotFound
		}
		return model.SignaturePreferences{}, err
	}
	if len(overrides) > 0 {
		if err := json.Unmarshal(overrides, &p.TemplateOverrides); err != nil {
			return model.SignaturePreferences{}, fmt.Errorf("failed to decode template overrides: %w", err)
		}
	}
	return p, nil
}

func (r *DatabaseRepository) CreateAuditEvent(ctx context.Context, e model.AuditEvent) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO tbl_audit_event (id, actor_id, event_type, event_data, created_at) VALUES ($1, $2, $3, $4, $5)",
		e.ID, e.ActorID, e.EventType, []byte(e.EventData), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create audit event: %w", err)
	}
	return nil
}

func (r *DatabaseRepository) HealthCheck(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		slog.Error("failed to close rows", "error", err)
	}
}
