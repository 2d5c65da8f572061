package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role type to distinguish between user roles
type Role string

// Define constants for roles
const (
	RoleAdmin  Role = "admin"  // Elevated: may generate for anyone, bypassing the gate
	RoleMember Role = "member" // Ordinary subscriber
)

// PlanTier names the subscription length used to derive protocol duration.
type PlanTier string

const (
	PlanMonthly    PlanTier = "monthly"
	PlanQuarterly  PlanTier = "quarterly"
	PlanSemiannual PlanTier = "semiannual"
	PlanAnnual     PlanTier = "annual"
)

// User represents an account (admin or member).
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`    // Should be unique
	PasswordHash string             `bson:"passwordHash" json:"-"` // Never expose this via JSON
	Role         Role               `bson:"role" json:"role"`
	PlanTier     PlanTier           `bson:"planTier,omitempty" json:"planTier,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
