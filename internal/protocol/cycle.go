package protocol

import (
	"time"

	"alcyxob/fitness-protocols/internal/domain"
)

// WeeksPerCycle is how many weeks of content one generation releases.
const WeeksPerCycle = 4

var tierWeeks = map[domain.PlanTier]int{
	domain.PlanMonthly:    4,
	domain.PlanQuarterly:  12,
	domain.PlanSemiannual: 24,
	domain.PlanAnnual:     48,
}

// DurationWeeks returns the plan length for a tier; unknown tiers get one cycle.
func DurationWeeks(tier domain.PlanTier) int {
	if w, ok := tierWeeks[tier]; ok {
		return w
	}
	return WeeksPerCycle
}

// NextCycle computes metadata for a protocol generated at now. When the previous
// protocol of the same type belongs to a plan of the same length and still had cycles
// left, the new one continues it; otherwise the count restarts at 1.
func NextCycle(tier domain.PlanTier, previous *domain.StoredProtocol, now time.Time) domain.CycleMetadata {
	duration := DurationWeeks(tier)
	total := (duration + WeeksPerCycle - 1) / WeeksPerCycle
	current := 1
	if previous != nil && previous.Cycle.DurationWeeks == duration && previous.Cycle.CurrentCycle < total {
		current = previous.Cycle.CurrentCycle + 1
	}
	return domain.CycleMetadata{
		DurationWeeks: duration,
		WeeksPerCycle: WeeksPerCycle,
		CurrentCycle:  current,
		TotalCycles:   total,
		NextReviewAt:  now.AddDate(0, 0, 7*WeeksPerCycle),
	}
}
