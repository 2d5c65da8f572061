// Package memory holds mutex-guarded in-process implementations of the repository
// interfaces. They back local runs without MongoDB and the service tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"alcyxob/fitness-protocols/internal/domain"
	"alcyxob/fitness-protocols/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserRepository implements repository.UserRepository.
type UserRepository struct {
	mu    sync.RWMutex
	users map[primitive.ObjectID]domain.User
}

var _ repository.UserRepository = (*UserRepository)(nil)

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[primitive.ObjectID]domain.User)}
}

func (r *UserRepository) Create(_ context.Context, user *domain.User) (primitive.ObjectID, error) {
	if user.Email == "" || user.PasswordHash == "" || user.Role == "" {
		return primitive.NilObjectID, errors.New("user email, password hash, and role are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	r.users[user.ID] = *user
	return user.ID, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *UserRepository) UpdatePlanTier(_ context.Context, id primitive.ObjectID, tier domain.PlanTier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PlanTier = tier
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return nil
}

// ProtocolRepository implements repository.ProtocolRepository. The whole
// deactivate-then-insert swap runs under one lock.
type ProtocolRepository struct {
	mu        sync.RWMutex
	protocols []domain.StoredProtocol // Insertion order
}

var _ repository.ProtocolRepository = (*ProtocolRepository)(nil)

func NewProtocolRepository() *ProtocolRepository {
	return &ProtocolRepository{}
}

func (r *ProtocolRepository) ActivateNew(_ context.Context, p *domain.StoredProtocol) (primitive.ObjectID, error) {
	if p.UserID.IsZero() || !p.Type.Valid() {
		return primitive.NilObjectID, errors.New("protocol requires userId and a valid type")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	p.Active = true

	for i := range r.protocols {
		existing := &r.protocols[i]
		if existing.UserID == p.UserID && existing.Type == p.Type && existing.Active {
			existing.Active = false
			existing.UpdatedAt = now
		}
	}
	r.protocols = append(r.protocols, *p)
	return p.ID, nil
}

func (r *ProtocolRepository) GetByID(_ context.Context, id primitive.ObjectID) (*domain.StoredProtocol, error) {
	return r.find(func(p *domain.StoredProtocol) bool { return p.ID == id })
}

func (r *ProtocolRepository) GetActive(_ context.Context, userID primitive.ObjectID, t domain.ProtocolType) (*domain.StoredProtocol, error) {
	return r.find(func(p *domain.StoredProtocol) bool {
		return p.UserID == userID && p.Type == t && p.Active
	})
}

func (r *ProtocolRepository) GetLatest(_ context.Context, userID primitive.ObjectID, t domain.ProtocolType) (*domain.StoredProtocol, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *domain.StoredProtocol
	for i := range r.protocols {
		p := &r.protocols[i]
		if p.UserID != userID || p.Type != t {
			continue
		}
		// Later inserts win ties so the newest generation is always the latest.
		if latest == nil || !p.CreatedAt.Before(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	out := *latest
	return &out, nil
}

func (r *ProtocolRepository) ListByUser(_ context.Context, userID primitive.ObjectID, t domain.ProtocolType) ([]domain.StoredProtocol, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.StoredProtocol{}
	for _, p := range r.protocols {
		if p.UserID == userID && (t == "" || p.Type == t) {
			p.Document = nil // Listings never carry documents
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *ProtocolRepository) AttachAudit(_ context.Context, id primitive.ObjectID, audit *domain.AuditResult) error {
	if audit == nil {
		return errors.New("audit result is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.protocols {
		if r.protocols[i].ID == id {
			r.protocols[i].Audit = audit
			r.protocols[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *ProtocolRepository) find(match func(*domain.StoredProtocol) bool) (*domain.StoredProtocol, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.protocols {
		if match(&r.protocols[i]) {
			out := r.protocols[i]
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

// CheckinRepository implements repository.CheckinRepository.
type CheckinRepository struct {
	mu       sync.RWMutex
	checkins []domain.CheckIn
}

var _ repository.CheckinRepository = (*CheckinRepository)(nil)

func NewCheckinRepository() *CheckinRepository {
	return &CheckinRepository{}
}

func (r *CheckinRepository) Create(_ context.Context, checkin *domain.CheckIn) (primitive.ObjectID, error) {
	if checkin.UserID.IsZero() {
		return primitive.NilObjectID, errors.New("check-in requires userId")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	checkin.ID = primitive.NewObjectID()
	if checkin.CreatedAt.IsZero() {
		checkin.CreatedAt = time.Now().UTC()
	}
	c := *checkin
	c.PhotoKeys = append([]string(nil), checkin.PhotoKeys...)
	r.checkins = append(r.checkins, c)
	return c.ID, nil
}

func (r *CheckinRepository) ListByUser(_ context.Context, userID primitive.ObjectID) ([]domain.CheckIn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.CheckIn{}
	for _, c := range r.checkins {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *CheckinRepository) HasPhotoCheckinAfter(_ context.Context, userID primitive.ObjectID, since time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.checkins {
		c := &r.checkins[i]
		if c.UserID == userID && c.HasPhoto() && c.CreatedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

// CatalogRepository implements repository.CatalogRepository, preserving insertion order.
type CatalogRepository struct {
	mu      sync.RWMutex
	entries []domain.CatalogEntry
}

var _ repository.CatalogRepository = (*CatalogRepository)(nil)

func NewCatalogRepository(seed ...domain.CatalogEntry) *CatalogRepository {
	r := &CatalogRepository{}
	for i := range seed {
		e := seed[i]
		_, _ = r.Upsert(context.Background(), &e)
	}
	return r
}

func (r *CatalogRepository) List(_ context.Context) ([]domain.CatalogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.CatalogEntry{}, r.entries...), nil
}

func (r *CatalogRepository) Upsert(_ context.Context, entry *domain.CatalogEntry) (primitive.ObjectID, error) {
	entry.CanonicalName = strings.TrimSpace(entry.CanonicalName)
	if entry.CanonicalName == "" {
		return primitive.NilObjectID, errors.New("catalog entry canonical name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.UpdatedAt = time.Now().UTC()
	for i := range r.entries {
		if r.entries[i].CanonicalName == entry.CanonicalName {
			entry.ID = r.entries[i].ID
			r.entries[i] = *entry
			return entry.ID, nil
		}
	}
	entry.ID = primitive.NewObjectID()
	r.entries = append(r.entries, *entry)
	return entry.ID, nil
}

func (r *CatalogRepository) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].ID == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}
