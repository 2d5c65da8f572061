package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"alcyxob/fitness-protocols/internal/domain"
)

func TestDurationWeeks(t *testing.T) {
	assert.Equal(t, 4, DurationWeeks(domain.PlanMonthly))
	assert.Equal(t, 12, DurationWeeks(domain.PlanQuarterly))
	assert.Equal(t, 24, DurationWeeks(domain.PlanSemiannual))
	assert.Equal(t, 48, DurationWeeks(domain.PlanAnnual))
	assert.Equal(t, 4, DurationWeeks(""))
	assert.Equal(t, 4, DurationWeeks("lifetime"))
}

func TestNextCycle(t *testing.T) {
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	first := NextCycle(domain.PlanQuarterly, nil, now)
	assert.Equal(t, domain.CycleMetadata{
		DurationWeeks: 12,
		WeeksPerCycle: 4,
		CurrentCycle:  1,
		TotalCycles:   3,
		NextReviewAt:  now.AddDate(0, 0, 28),
	}, first)

	prev := &domain.StoredProtocol{Cycle: first}
	second := NextCycle(domain.PlanQuarterly, prev, now)
	assert.Equal(t, 2, second.CurrentCycle)

	prev.Cycle.CurrentCycle = 3
	assert.Equal(t, 1, NextCycle(domain.PlanQuarterly, prev, now).CurrentCycle, "plan finished, restart")

	prev.Cycle = NextCycle(domain.PlanMonthly, nil, now)
	assert.Equal(t, 1, NextCycle(domain.PlanAnnual, prev, now).CurrentCycle, "tier changed, restart")
	assert.Equal(t, 12, NextCycle(domain.PlanAnnual, nil, now).TotalCycles)
}
