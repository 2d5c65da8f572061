// internal/domain/catalog.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CatalogEntry maps a canonical exercise name to its illustrative media.
// The engine only reads entries; admins curate them.
type CatalogEntry struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CanonicalName string             `bson:"canonicalName" json:"canonicalName"`
	MediaKey      string             `bson:"mediaKey,omitempty" json:"-"`                  // Object key in our media bucket
	MediaURL      string             `bson:"mediaUrl,omitempty" json:"mediaUrl,omitempty"` // Resolved public URL
	MuscleGroup   string             `bson:"muscleGroup,omitempty" json:"muscleGroup,omitempty"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}
