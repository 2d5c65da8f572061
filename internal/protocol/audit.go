package protocol

import (
	"context"
	"math"
	"time"

	"alcyxob/fitness-protocols/internal/domain"
	"alcyxob/fitness-protocols/internal/logger"
)

// AuditTypeAutomatic marks audits produced by the generator right after delivery.
const AuditTypeAutomatic = "automatic"

// AuditCriterion is one qualitative check the structural validator cannot make.
type AuditCriterion struct {
	Name        string
	Description string
}

var commonAuditCriteria = []AuditCriterion{
	{"intake_coherence", "content matches the goals, level and restrictions stated in the intake answers"},
	{"safety", "nothing is unsafe for the stated health conditions, injuries or experience"},
	{"instruction_clarity", "instructions are specific enough to follow without a coach present"},
}

var auditChecklists = map[domain.ProtocolType][]AuditCriterion{
	domain.ProtocolWorkout: append(append([]AuditCriterion{}, commonAuditCriteria...),
		AuditCriterion{"equipment_fit", "exercises only use equipment the user has access to"},
		AuditCriterion{"schedule_fit", "session count and length fit the user's available days and time"},
		AuditCriterion{"volume_appropriate", "weekly volume suits the user's training age"},
		AuditCriterion{"goal_alignment", "split and progression serve the primary goal"},
	),
	domain.ProtocolNutrition: append(append([]AuditCriterion{}, commonAuditCriteria...),
		AuditCriterion{"restriction_respect", "no food conflicts with allergies, intolerances or dietary choices"},
		AuditCriterion{"energy_balance", "calorie targets fit the goal (deficit, maintenance or surplus)"},
		AuditCriterion{"macro_consistency", "per-meal macros add up to the daily targets"},
		AuditCriterion{"practicality", "meals are realistic to prepare with the shopping list"},
	),
	domain.ProtocolMindset: append(append([]AuditCriterion{}, commonAuditCriteria...),
		AuditCriterion{"time_realism", "daily practices fit the time the user said they have"},
		AuditCriterion{"theme_progression", "weekly themes build on each other"},
		AuditCriterion{"goal_alignment", "practices address the challenges named in the intake"},
	),
}

// AuditChecklist returns the audit criterion names for t.
func AuditChecklist(t domain.ProtocolType) []string {
	list := auditChecklists[t]
	names := make([]string, len(list))
	for i, c := range list {
		names[i] = c.Name
	}
	return names
}

// AuditScore is round(100 * passed / total); zero when total is zero.
func AuditScore(passed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(passed) / float64(total)))
}

// Classify maps a score to its band.
func Classify(score int) domain.AuditClassification {
	switch {
	case score >= 95:
		return domain.AuditExcellent
	case score >= 85:
		return domain.AuditVeryGood
	case score >= 75:
		return domain.AuditAcceptable
	default:
		return domain.AuditNeedsCorrection
	}
}

type auditResponse struct {
	Criteria           map[string]bool `json:"criteria"`
	Issues             []string        `json:"issues"`
	CorrectionsApplied []string        `json:"correctionsApplied"`
}

// Auditor grades an already delivered document. It never returns an error:
// every failure is logged and reported as a nil result.
type Auditor struct {
	gen              Generator
	log              *logger.Logger
	maxDocumentBytes int
	now              func() time.Time
}

func NewAuditor(gen Generator, log *logger.Logger, maxDocumentBytes int) *Auditor {
	if maxDocumentBytes <= 0 {
		maxDocumentBytes = DefaultMaxDocumentBytes
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Auditor{gen: gen, log: log, maxDocumentBytes: maxDocumentBytes, now: time.Now}
}

func (a *Auditor) Audit(ctx context.Context, doc Document, uc UserContext, t domain.ProtocolType) *domain.AuditResult {
	checklist, ok := auditChecklists[t]
	if !ok {
		a.log.Warn("No audit checklist for protocol type", "type", t)
		return nil
	}
	system, user, err := auditPrompts(t, checklist, doc, uc, a.maxDocumentBytes)
	if err != nil {
		a.log.Error("Failed to build audit prompt", "type", t, "error", err)
		return nil
	}
	raw, err := a.gen.Complete(ctx, system, user)
	if err != nil {
		a.log.Warn("Audit call failed", "type", t, "error", err)
		return nil
	}
	var resp auditResponse
	if err := decodeObject(raw, &resp); err != nil {
		a.log.Warn("Audit response malformed", "type", t, "error", err)
		return nil
	}
	if len(resp.Criteria) == 0 {
		a.log.Warn("Audit response has no criteria", "type", t)
		return nil
	}

	// Only our own checklist counts: unknown names are dropped, missing ones fail.
	criteria := make(map[string]bool, len(checklist))
	passed := 0
	for _, c := range checklist {
		ok := resp.Criteria[c.Name]
		criteria[c.Name] = ok
		if ok {
			passed++
		}
	}
	score := AuditScore(passed, len(checklist))
	return &domain.AuditResult{
		Criteria:           criteria,
		Issues:             resp.Issues,
		CorrectionsApplied: resp.CorrectionsApplied,
		Score:              score,
		Classification:     Classify(score),
		AuditedAt:          a.now().UTC(),
		AuditType:          AuditTypeAutomatic,
	}
}
