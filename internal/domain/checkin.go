package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CheckIn is a progress record submitted by a user. Photos live in object storage;
// a check-in with at least one photo counts as progress evidence for the generation gate.
type CheckIn struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	PhotoKeys []string           `bson:"photoKeys,omitempty" json:"-"` // S3 object keys
	PhotoURLs []string           `bson:"-" json:"photoUrls,omitempty"` // Presigned GETs, filled on read
	Notes     string             `bson:"notes,omitempty" json:"notes,omitempty"`
	WeightKg  float64            `bson:"weightKg,omitempty" json:"weightKg,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// HasPhoto reports whether the check-in carries photo evidence.
func (c *CheckIn) HasPhoto() bool {
	return len(c.PhotoKeys) > 0
}
