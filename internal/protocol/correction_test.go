package protocol

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/fitness-protocols/internal/domain"
)

type scriptedReply struct {
	text string
	err  error
}

// scriptedGenerator returns its replies in order and repeats the last one.
type scriptedGenerator struct {
	mu      sync.Mutex
	replies []scriptedReply
	prompts []string
}

var _ Generator = (*scriptedGenerator)(nil)

func (g *scriptedGenerator) Complete(_ context.Context, _, user string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, user)
	i := len(g.prompts) - 1
	if i >= len(g.replies) {
		i = len(g.replies) - 1
	}
	return g.replies[i].text, g.replies[i].err
}

func (g *scriptedGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func workoutWithoutTechnique(t *testing.T) string {
	doc := mustParse(t, validWorkoutJSON)
	delete(firstExercise(t, doc), "technique")
	return doc.JSON()
}

func workoutRequest() Request {
	return Request{Type: domain.ProtocolWorkout, SystemPrompt: "system", UserPrompt: "intake"}
}

func TestCorrectionLoop_ValidFirstTime(t *testing.T) {
	gen := &scriptedGenerator{replies: []scriptedReply{{text: "```json\n" + validWorkoutJSON + "\n```"}}}
	out, err := NewCorrectionLoop(gen, nil, LoopConfig{}).Run(context.Background(), workoutRequest())

	require.NoError(t, err)
	assert.Equal(t, StateDone, out.State)
	assert.True(t, out.Compliant())
	assert.Len(t, out.Attempts, 1)
	assert.Equal(t, 1, gen.calls())
}

func TestCorrectionLoop_StopsWhenSecondAttemptIsValid(t *testing.T) {
	gen := &scriptedGenerator{replies: []scriptedReply{
		{text: workoutWithoutTechnique(t)},
		{text: validWorkoutJSON},
		{text: validWorkoutJSON},
	}}
	out, err := NewCorrectionLoop(gen, nil, LoopConfig{}).Run(context.Background(), workoutRequest())

	require.NoError(t, err)
	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, 2, gen.calls())
	require.Len(t, out.Attempts, 2)
	assert.Equal(t, []string{CriterionTechniqueNotes}, out.Attempts[1].TriggeredBy)

	prompt := gen.prompts[1]
	assert.True(t, strings.HasPrefix(prompt, "intake"))
	assert.Contains(t, prompt, "- technique_notes")
	assert.Contains(t, prompt, "COMPLETE replacement")
}

func TestCorrectionLoop_NeverExceedsBudget(t *testing.T) {
	for _, budget := range []int{1, 2, 3, 5} {
		gen := &scriptedGenerator{replies: []scriptedReply{{text: workoutWithoutTechnique(t)}}}
		out, err := NewCorrectionLoop(gen, nil, LoopConfig{MaxAttempts: budget}).Run(context.Background(), workoutRequest())

		require.NoError(t, err)
		assert.Equal(t, StateExhausted, out.State)
		assert.False(t, out.Compliant())
		assert.Equal(t, budget, gen.calls())
		assert.Len(t, out.Attempts, budget)
		assert.Equal(t, []string{CriterionTechniqueNotes}, out.Compliance().FailedCriteria)
	}
}

func TestCorrectionLoop_DefaultBudgetIsThree(t *testing.T) {
	gen := &scriptedGenerator{replies: []scriptedReply{{text: "{}"}}}
	out, err := NewCorrectionLoop(gen, nil, LoopConfig{}).Run(context.Background(), workoutRequest())
	require.NoError(t, err)
	assert.Equal(t, StateExhausted, out.State)
	assert.Equal(t, DefaultMaxAttempts, gen.calls())
}

func TestCorrectionLoop_InitialParseFailureIsHard(t *testing.T) {
	gen := &scriptedGenerator{replies: []scriptedReply{{text: "Sorry, I can't help with that."}}}
	_, err := NewCorrectionLoop(gen, nil, LoopConfig{}).Run(context.Background(), workoutRequest())

	require.Error(t, err)
	assert.True(t, IsMalformed(err))
	assert.Equal(t, 1, gen.calls())
}

func TestCorrectionLoop_InitialUpstreamErrorIsReturned(t *testing.T) {
	boom := errors.New("upstream 503")
	gen := &scriptedGenerator{replies: []scriptedReply{{err: boom}}}
	_, err := NewCorrectionLoop(gen, nil, LoopConfig{}).Run(context.Background(), workoutRequest())
	assert.ErrorIs(t, err, boom)
}

func TestCorrectionLoop_UnparseableCorrectionIsDiscarded(t *testing.T) {
	broken := workoutWithoutTechnique(t)
	gen := &scriptedGenerator{replies: []scriptedReply{
		{text: broken},
		{text: "not json"},
		{text: validWorkoutJSON},
	}}
	out, err := NewCorrectionLoop(gen, nil, LoopConfig{}).Run(context.Background(), workoutRequest())

	require.NoError(t, err)
	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, 3, gen.calls())
	require.Len(t, out.Attempts, 3)
	assert.True(t, out.Attempts[1].Discarded)
	assert.Nil(t, out.Attempts[1].Document)
	// The third prompt still diagnoses the first document.
	assert.Contains(t, gen.prompts[2], "- technique_notes")
}

func TestCorrectionLoop_CorrectionUpstreamErrorKeepsLastDocument(t *testing.T) {
	broken := workoutWithoutTechnique(t)
	gen := &scriptedGenerator{replies: []scriptedReply{
		{text: broken},
		{err: errors.New("rate limited")},
	}}
	out, err := NewCorrectionLoop(gen, nil, LoopConfig{}).Run(context.Background(), workoutRequest())

	require.NoError(t, err)
	assert.Equal(t, StateExhausted, out.State)
	assert.Equal(t, 2, gen.calls())
	assert.Equal(t, mustParse(t, broken), out.Document)
	assert.Equal(t, "rate limited", out.Attempts[1].Err)
}

func TestCorrectionPrompt_TruncatesDocument(t *testing.T) {
	doc := Document{"title": strings.Repeat("á", 5000)}
	res := ValidationResult{FailedCriteria: []string{"x"}, Errors: []string{"x: broken"}}
	prompt := CorrectionPrompt("intake", doc, res, 200)
	assert.Contains(t, prompt, truncationMarker)
	assert.Less(t, len(prompt), 1000)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 100))
	assert.Equal(t, "anything", Truncate("anything", 0))

	s := strings.Repeat("é", 100) // 200 bytes
	out := Truncate(s, 51)
	assert.LessOrEqual(t, len(out), 51)
	assert.True(t, strings.HasSuffix(out, truncationMarker))
	body := strings.TrimSuffix(out, truncationMarker)
	assert.Equal(t, 0, len(body)%2, "cut in the middle of a rune")
}
