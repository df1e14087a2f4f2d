package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"corrflow/internal/model"
)

// MemoryRepository keeps everything in process. It mirrors the uniqueness
// and version semantics of the database-backed repository so the workflow
// layer behaves the same against either.
type MemoryRepository struct {
	mu sync.RWMutex

	directorates map[uuid.UUID]model.Directorate
	divisions    map[uuid.UUID]model.Division
	departments  map[uuid.UUID]model.Department
	users        map[uuid.UUID]model.User

	correspondence map[uuid.UUID]model.Correspondence
	references     map[string]uuid.UUID
	minutes        map[uuid.UUID][]model.Minute
	delegations    map[uuid.UUID]model.Delegation
	distribution   map[uuid.UUID][]model.DistributionRecipient

	signatures  map[uuid.UUID]model.StoredSignature
	templates   map[uuid.UUID]model.SignatureTemplate
	preferences map[uuid.UUID]model.SignaturePreferences

	auditEvents []model.AuditEvent
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		directorates:   make(map[uuid.UUID]model.Directorate),
		divisions:      make(map[uuid.UUID]model.Division),
		departments:    make(map[uuid.UUID]model.Department),
		users:          make(map[uuid.UUID]model.User),
		correspondence: make(map[uuid.UUID]model.Correspondence),
		references:     make(map[string]uuid.UUID),
		minutes:        make(map[uuid.UUID][]model.Minute),
		delegations:    make(map[uuid.UUID]model.Delegation),
		distribution:   make(map[uuid.UUID][]model.DistributionRecipient),
		signatures:     make(map[uuid.UUID]model.StoredSignature),
		templates:      make(map[uuid.UUID]model.SignatureTemplate),
		preferences:    make(map[uuid.UUID]model.SignaturePreferences),
	}
}

func (r *MemoryRepository) CreateDirectorate(ctx context.Context, d model.Directorate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.directorates[d.ID] = d
	return nil
}

func (r *MemoryRepository) CreateDivision(ctx context.Context, d model.Division) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.divisions[d.ID] = d
	return nil
}

func (r *MemoryRepository) CreateDepartment(ctx context.Context, d model.Department) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.departments[d.ID] = d
	return nil
}

func (r *MemoryRepository) CreateUser(ctx context.Context, u model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
	return nil
}

func (r *MemoryRepository) GetUser(ctx context.Context, id uuid.UUID) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return model.User{}, ErrUserNotFound
	}
	return u, nil
}

func (r *MemoryRepository) ListActiveUsers(ctx context.Context) ([]model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var users []model.User
	for _, u := range r.users {
		if u.Active {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		return strings.ToLower(users[i].Name) < strings.ToLower(users[j].Name)
	})
	return users, nil
}

func (r *MemoryRepository) GetDirectorate(ctx context.Context, id uuid.UUID) (model.Directorate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.directorates[id]
	if !ok {
		return model.Directorate{}, ErrDirectorateNotFound
	}
	return d, nil
}

func (r *MemoryRepository) GetDivision(ctx context.Context, id uuid.UUID) (model.Division, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.divisions[id]
	if !ok {
		return model.Division{}, ErrDivisionNotFound
	}
	return d, nil
}

func (r *MemoryRepository) GetDepartment(ctx context.Context, id uuid.UUID) (model.Department, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.departments[id]
	if !ok {
		return model.Department{}, ErrDepartmentNotFound
	}
	return d, nil
}

func (r *MemoryRepository) CreateCorrespondence(ctx context.Context, c model.Correspondence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.references[c.ReferenceNumber]; exists {
		return ErrDuplicateReference
	}
	r.correspondence[c.ID] = c
	r.references[c.ReferenceNumber] = c.ID
	return nil
}

func (r *MemoryRepository) GetCorrespondence(ctx context.Context, id uuid.UUID) (model.Correspondence, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.correspondence[id]
	if !ok {
		return model.Correspondence{}, ErrCorrespondenceNotFound
	}
	return c, nil
}

func (r *MemoryRepository) UpdateCorrespondence(ctx context.Context, c model.Correspondence) (model.Correspondence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.correspondence[c.ID]
	if !ok {
		return model.Correspondence{}, ErrCorrespondenceNotFound
	}
	if current.Version != c.Version {
		return model.Correspondence{}, ErrVersionConflict
	}
	c.Version = current.Version + 1
	c.UpdatedAt = time.Now()
	r.correspondence[c.ID] = c
	return c, nil
}

func (r *MemoryRepository) ListCorrespondenceForApprover(ctx context.Context, approverID uuid.UUID) ([]model.Correspondence, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var items []model.Correspondence
	for _, c := range r.correspondence {
		if c.CurrentApproverID != nil && *c.CurrentApproverID == approverID &&
			(c.Status == model.StatusPending || c.Status == model.StatusInProgress) {
			items = append(items, c)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (r *MemoryRepository) ListMinutes(ctx context.Context, correspondenceID uuid.UUID) ([]model.Minute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored := r.minutes[correspondenceID]
	minutes := make([]model.Minute, len(stored))
	copy(minutes, stored)
	sort.Slice(minutes, func(i, j int) bool {
		return minutes[i].StepNumber < minutes[j].StepNumber
	})
	return minutes, nil
}

func (r *MemoryRepository) AppendMinute(ctx context.Context, m model.Minute) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.minutes[m.CorrespondenceID] {
		if existing.StepNumber == m.StepNumber {
			return ErrStepConflict
		}
	}
	r.minutes[m.CorrespondenceID] = append(r.minutes[m.CorrespondenceID], m)
	return nil
}

func (r *MemoryRepository) MarkMinutesRead(ctx context.Context, correspondenceID, readerID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.minutes[correspondenceID]
	for i := range stored {
		if stored[i].ReadAt == nil && stored[i].UserID != readerID {
			readAt := at
			stored[i].ReadAt = &readAt
		}
	}
	return nil
}

func (r *MemoryRepository) CreateDelegation(ctx context.Context, d model.Delegation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.delegations {
		if existing.CorrespondenceID == d.CorrespondenceID && existing.Status == model.DelegationStatusActive {
			return ErrActiveDelegationExists
		}
	}
	r.delegations[d.ID] = d
	return nil
}

func (r *MemoryRepository) GetDelegation(ctx context.Context, id uuid.UUID) (model.Delegation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.delegations[id]
	if !ok {
		return model.Delegation{}, ErrDelegationNotFound
	}
	return d, nil
}

func (r *MemoryRepository) GetActiveDelegation(ctx context.Context, correspondenceID uuid.UUID) (model.Delegation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.delegations {
		if d.CorrespondenceID == correspondenceID && d.Status == model.DelegationStatusActive {
			return d, nil
		}
	}
	return model.Delegation{}, ErrDelegationNotFound
}

func (r *MemoryRepository) UpdateDelegation(ctx context.Context, d model.Delegation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.delegations[d.ID]; !ok {
		return ErrDelegationNotFound
	}
	r.delegations[d.ID] = d
	return nil
}

func (r *MemoryRepository) AddDistribution(ctx context.Context, rec model.DistributionRecipient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.distribution[rec.CorrespondenceID] {
		if existing.Key() == rec.Key() {
			return ErrDuplicateDistribution
		}
	}
	r.distribution[rec.CorrespondenceID] = append(r.distribution[rec.CorrespondenceID], rec)
	return nil
}

func (r *MemoryRepository) ListDistribution(ctx context.Context, correspondenceID uuid.UUID) ([]model.DistributionRecipient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored := r.distribution[correspondenceID]
	recipients := make([]model.DistributionRecipient, len(stored))
	copy(recipients, stored)
	return recipients, nil
}

func (r *MemoryRepository) SaveStoredSignature(ctx context.Context, s model.StoredSignature) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signatures[s.UserID] = s
	return nil
}

func (r *MemoryRepository) GetStoredSignature(ctx context.Context, userID uuid.UUID) (model.StoredSignature, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.signatures[userID]
	if !ok {
		return model.StoredSignature{}, ErrSignatureNotFound
	}
	return s, nil
}

func (r *MemoryRepository) CreateSignatureTemplate(ctx context.Context, t model.SignatureTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.ID] = t
	return nil
}

func (r *MemoryRepository) GetSignatureTemplate(ctx context.Context, id uuid.UUID) (model.SignatureTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[id]
	if !ok {
		return model.SignatureTemplate{}, ErrTemplateNotFound
	}
	return t, nil
}

func (r *MemoryRepository) ListSignatureTemplates(ctx context.Context, templateType model.TemplateType) ([]model.SignatureTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var templates []model.SignatureTemplate
	for _, t := range r.templates {
		if t.TemplateType == templateType {
			templates = append(templates, t)
		}
	}
	sort.Slice(templates, func(i, j int) bool {
		return templates[i].CreatedAt.Before(templates[j].CreatedAt)
	})
	return templates, nil
}

func (r *MemoryRepository) SaveSignaturePreferences(ctx context.Context, p model.SignaturePreferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preferences[p.UserID] = p
	return nil
}

func (r *MemoryRepository) GetSignaturePreferences(ctx context.Context, userID uuid.UUID) (model.SignaturePreferences, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.preferences[userID]
	if !ok {
		return model.SignaturePreferences{}, ErrPreferencesNotFound
	}
	return p, nil
}

func (r *MemoryRepository) CreateAuditEvent(ctx context.Context, e model.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auditEvents = append(r.auditEvents, e)
	return nil
}

// AuditEvents returns a snapshot of recorded events, oldest first.
func (r *MemoryRepository) AuditEvents() []model.AuditEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	events := make([]model.AuditEvent, len(r.auditEvents))
	copy(events, r.auditEvents)
	return events
}

func (r *MemoryRepository) HealthCheck(ctx context.Context) error {
	return nil
}
