package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/fitness-protocols/internal/domain"
)

func auditReply(t *testing.T, criteria map[string]bool) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"criteria":           criteria,
		"issues":             []string{"rest intervals are vague"},
		"correctionsApplied": []string{},
	})
	require.NoError(t, err)
	return string(b)
}

func allPassing(typ domain.ProtocolType) map[string]bool {
	out := map[string]bool{}
	for _, name := range AuditChecklist(typ) {
		out[name] = true
	}
	return out
}

func TestAuditScoreAndBands(t *testing.T) {
	assert.Equal(t, 100, AuditScore(7, 7))
	assert.Equal(t, 86, AuditScore(6, 7))
	assert.Equal(t, 71, AuditScore(5, 7))
	assert.Equal(t, 0, AuditScore(0, 0))

	assert.Equal(t, domain.AuditExcellent, Classify(95))
	assert.Equal(t, domain.AuditVeryGood, Classify(94))
	assert.Equal(t, domain.AuditVeryGood, Classify(85))
	assert.Equal(t, domain.AuditAcceptable, Classify(75))
	assert.Equal(t, domain.AuditNeedsCorrection, Classify(74))
}

func TestAudit_ScoresAgainstOwnChecklist(t *testing.T) {
	criteria := allPassing(domain.ProtocolWorkout)
	criteria["safety"] = false
	criteria["made_up_criterion"] = true
	delete(criteria, "goal_alignment")

	gen := &scriptedGenerator{replies: []scriptedReply{{text: "```json\n" + auditReply(t, criteria) + "\n```"}}}
	a := NewAuditor(gen, nil, 0)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return fixed }

	res := a.Audit(context.Background(), mustParse(t, validWorkoutJSON), UserContext{"goal": "hypertrophy"}, domain.ProtocolWorkout)
	require.NotNil(t, res)

	total := len(AuditChecklist(domain.ProtocolWorkout))
	assert.Len(t, res.Criteria, total)
	assert.NotContains(t, res.Criteria, "made_up_criterion")
	assert.False(t, res.Criteria["safety"])
	assert.False(t, res.Criteria["goal_alignment"])
	assert.Equal(t, AuditScore(total-2, total), res.Score)
	assert.Equal(t, Classify(res.Score), res.Classification)
	assert.Equal(t, AuditTypeAutomatic, res.AuditType)
	assert.Equal(t, fixed, res.AuditedAt)
	assert.Equal(t, []string{"rest intervals are vague"}, res.Issues)
}

func TestAudit_AllPassIsExcellent(t *testing.T) {
	gen := &scriptedGenerator{replies: []scriptedReply{{text: auditReply(t, allPassing(domain.ProtocolMindset))}}}
	res := NewAuditor(gen, nil, 0).Audit(context.Background(), mustParse(t, validMindsetJSON), nil, domain.ProtocolMindset)
	require.NotNil(t, res)
	assert.Equal(t, 100, res.Score)
	assert.Equal(t, domain.AuditExcellent, res.Classification)
}

func TestAudit_FailuresReturnNil(t *testing.T) {
	tests := []struct {
		name  string
		reply scriptedReply
		typ   domain.ProtocolType
	}{
		{"upstream error", scriptedReply{err: errors.New("500 internal")}, domain.ProtocolWorkout},
		{"malformed", scriptedReply{text: "looks great!"}, domain.ProtocolWorkout},
		{"empty criteria", scriptedReply{text: `{"criteria": {}, "issues": []}`}, domain.ProtocolNutrition},
		{"unknown type", scriptedReply{text: `{"criteria": {"x": true}}`}, domain.ProtocolType("yoga")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &scriptedGenerator{replies: []scriptedReply{tt.reply}}
			res := NewAuditor(gen, nil, 0).Audit(context.Background(), Document{"title": "x"}, nil, tt.typ)
			assert.Nil(t, res)
		})
	}
}

func TestAuditChecklistsAreDistinctFromValidator(t *testing.T) {
	for _, typ := range domain.AllProtocolTypes {
		audit := AuditChecklist(typ)
		require.NotEmpty(t, audit)
		for _, name := range Checklist(typ) {
			assert.NotContains(t, audit, name)
		}
	}
}
