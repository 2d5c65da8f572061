package domain

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProtocolType selects the validator, prompt template and audit checklist.
type ProtocolType string

const (
	ProtocolWorkout   ProtocolType = "workout"
	ProtocolNutrition ProtocolType = "nutrition"
	ProtocolMindset   ProtocolType = "mindset"
)

// AllProtocolTypes lists the supported types in display order.
var AllProtocolTypes = []ProtocolType{ProtocolWorkout, ProtocolNutrition, ProtocolMindset}

// ParseProtocolType accepts the canonical names case-insensitively.
func ParseProtocolType(s string) (ProtocolType, error) {
	t := ProtocolType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllProtocolTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown protocol type %q", s)
}

// Valid reports whether t is one of the supported types.
func (t ProtocolType) Valid() bool {
	_, err := ParseProtocolType(string(t))
	return err == nil
}

// CycleMetadata describes where a protocol sits in the user's plan.
type CycleMetadata struct {
	DurationWeeks int       `bson:"durationWeeks" json:"durationWeeks"` // Derived from the plan tier
	WeeksPerCycle int       `bson:"weeksPerCycle" json:"weeksPerCycle"` // Weeks released per generation
	CurrentCycle  int       `bson:"currentCycle" json:"currentCycle"`   // 1-based
	TotalCycles   int       `bson:"totalCycles" json:"totalCycles"`
	NextReviewAt  time.Time `bson:"nextReviewAt" json:"nextReviewAt"`
}

// Compliance records how the document left the correction loop.
type Compliance struct {
	Compliant      bool     `bson:"compliant" json:"compliant"`
	Attempts       int      `bson:"attempts" json:"attempts"`
	FailedCriteria []string `bson:"failedCriteria,omitempty" json:"failedCriteria,omitempty"`
}

// AuditClassification buckets an audit score.
type AuditClassification string

const (
	AuditExcellent       AuditClassification = "excellent"
	AuditVeryGood        AuditClassification = "very_good"
	AuditAcceptable      AuditClassification = "acceptable"
	AuditNeedsCorrection AuditClassification = "needs_correction"
)

// AuditResult is attached to a stored protocol after the fact. Its absence is normal.
type AuditResult struct {
	Criteria           map[string]bool     `bson:"criteria" json:"criteria"`
	Issues             []string            `bson:"issues,omitempty" json:"issues,omitempty"`
	CorrectionsApplied []string            `bson:"correctionsApplied,omitempty" json:"correctionsApplied,omitempty"`
	Score              int                 `bson:"score" json:"score"` // 0-100
	Classification     AuditClassification `bson:"classification" json:"classification"`
	AuditedAt          time.Time           `bson:"auditedAt" json:"auditedAt"`
	AuditType          string              `bson:"auditType" json:"auditType"`
}

// StoredProtocol is the persisted record of one generated protocol.
// At most one protocol per (UserID, Type) has Active set.
type StoredProtocol struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID  `bson:"userId" json:"userId"`
	Type        ProtocolType        `bson:"type" json:"type"`
	Title       string              `bson:"title" json:"title"`
	Document    map[string]any      `bson:"document" json:"document"`
	Compliance  Compliance          `bson:"compliance" json:"compliance"`
	Cycle       CycleMetadata       `bson:"cycle" json:"cycle"`
	Active      bool                `bson:"active" json:"active"`
	Audit       *AuditResult        `bson:"audit,omitempty" json:"audit,omitempty"`
	Adjustments string              `bson:"adjustments,omitempty" json:"adjustments,omitempty"` // Admin regeneration notes
	GeneratedBy *primitive.ObjectID `bson:"generatedBy,omitempty" json:"generatedBy,omitempty"` // Set when an admin generated on behalf of the user
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt" json:"updatedAt"`
}
