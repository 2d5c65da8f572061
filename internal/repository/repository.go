package repository

import (
	"context" // Standard for request-scoped deadlines, cancellation signals, etc.
	"time"

	"alcyxob/fitness-protocols/internal/domain" // Import our defined domain models

	"go.mongodb.org/mongo-driver/bson/primitive" // For using ObjectIDs
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrConflict     = RepositoryError("conflicting write")
	ErrDuplicate    = RepositoryError("already exists")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	UpdatePlanTier(ctx context.Context, id primitive.ObjectID, tier domain.PlanTier) error
}

// ProtocolRepository stores generated protocols. Implementations guarantee that at most
// one protocol per (user, type) is active, even under concurrent ActivateNew calls.
type ProtocolRepository interface {
	// ActivateNew deactivates the current active protocol for (p.UserID, p.Type), if any,
	// and inserts p as the active one. Either both writes happen or neither does.
	ActivateNew(ctx context.Context, p *domain.StoredProtocol) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.StoredProtocol, error)
	GetActive(ctx context.Context, userID primitive.ObjectID, t domain.ProtocolType) (*domain.StoredProtocol, error)
	// GetLatest returns the most recently created protocol of the type, active or not.
	GetLatest(ctx context.Context, userID primitive.ObjectID, t domain.ProtocolType) (*domain.StoredProtocol, error)
	// ListByUser returns newest first. An empty type lists every type.
	ListByUser(ctx context.Context, userID primitive.ObjectID, t domain.ProtocolType) ([]domain.StoredProtocol, error)
	AttachAudit(ctx context.Context, id primitive.ObjectID, audit *domain.AuditResult) error
}

// CheckinRepository stores progress check-ins.
type CheckinRepository interface {
	Create(ctx context.Context, checkin *domain.CheckIn) (primitive.ObjectID, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]domain.CheckIn, error)
	// HasPhotoCheckinAfter reports whether a check-in carrying a photo was created strictly after since.
	HasPhotoCheckinAfter(ctx context.Context, userID primitive.ObjectID, since time.Time) (bool, error)
}

// CatalogRepository stores the exercise media catalog.
type CatalogRepository interface {
	List(ctx context.Context) ([]domain.CatalogEntry, error)
	// Upsert matches on CanonicalName.
	Upsert(ctx context.Context, entry *domain.CatalogEntry) (primitive.ObjectID, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}
