package protocol

import (
	"context"
	"errors"
	"fmt"

	"alcyxob/fitness-protocols/internal/domain"
	"alcyxob/fitness-protocols/internal/logger"
)

// DefaultMaxAttempts is the total number of generator calls per request,
// the initial one included.
const DefaultMaxAttempts = 3

// Generator produces one completion for a system and user prompt.
type Generator interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// LoopState is the correction loop's position.
type LoopState string

const (
	StateInitial    LoopState = "initial"
	StateValidating LoopState = "validating"
	StateCorrecting LoopState = "correcting"
	StateDone       LoopState = "done"
	StateExhausted  LoopState = "exhausted"
)

// CorrectionAttempt records one generator call. Index 1 is the initial generation.
type CorrectionAttempt struct {
	Index       int              `json:"index"`
	TriggeredBy []string         `json:"triggeredBy,omitempty"`
	Document    Document         `json:"-"`
	Result      ValidationResult `json:"result"`
	Discarded   bool             `json:"discarded,omitempty"`
	Err         string           `json:"error,omitempty"`
}

// Request is one run of the loop.
type Request struct {
	Type         domain.ProtocolType
	SystemPrompt string
	UserPrompt   string
	Schedule     *Schedule // Optional; enables meal timing checks
}

// Outcome is the loop's terminal result. State is Done or Exhausted.
type Outcome struct {
	Document Document
	Result   ValidationResult
	State    LoopState
	Attempts []CorrectionAttempt
}

func (o *Outcome) Compliant() bool {
	return o.State == StateDone
}

// Compliance summarises the outcome for persistence.
func (o *Outcome) Compliance() domain.Compliance {
	return domain.Compliance{
		Compliant:      o.Compliant(),
		Attempts:       len(o.Attempts),
		FailedCriteria: o.Result.FailedCriteria,
	}
}

type LoopConfig struct {
	MaxAttempts      int
	MaxDocumentBytes int
}

// CorrectionLoop re-prompts the generator with its own validation failures until
// the document passes or the attempt budget runs out.
type CorrectionLoop struct {
	gen              Generator
	log              *logger.Logger
	maxAttempts      int
	maxDocumentBytes int
}

func NewCorrectionLoop(gen Generator, log *logger.Logger, cfg LoopConfig) *CorrectionLoop {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.MaxDocumentBytes <= 0 {
		cfg.MaxDocumentBytes = DefaultMaxDocumentBytes
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &CorrectionLoop{
		gen:              gen,
		log:              log,
		maxAttempts:      cfg.MaxAttempts,
		maxDocumentBytes: cfg.MaxDocumentBytes,
	}
}

// Run drives the loop. An error is returned only when there is no document at all:
// the initial call failed or its response could not be parsed. Exhaustion is not an error.
func (l *CorrectionLoop) Run(ctx context.Context, req Request) (*Outcome, error) {
	raw, err := l.gen.Complete(ctx, req.SystemPrompt, req.UserPrompt)
	if err != nil {
		return nil, fmt.Errorf("initial generation: %w", err)
	}
	doc, err := ParseDocument(raw)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Document: doc, State: StateValidating}
	out.Result = ValidateWithSchedule(doc, req.Type, req.Schedule)
	out.Attempts = append(out.Attempts, CorrectionAttempt{Index: 1, Document: doc, Result: out.Result})

	for calls := 1; !out.Result.Valid && calls < l.maxAttempts; {
		out.State = StateCorrecting
		prompt := CorrectionPrompt(req.UserPrompt, out.Document, out.Result, l.maxDocumentBytes)
		calls++
		attempt := CorrectionAttempt{Index: calls, TriggeredBy: out.Result.FailedCriteria}

		raw, err := l.gen.Complete(ctx, req.SystemPrompt, prompt)
		if err != nil {
			attempt.Discarded, attempt.Err = true, err.Error()
			out.Attempts = append(out.Attempts, attempt)
			l.log.Warn("Correction call failed, keeping last document",
				"type", req.Type, "attempt", calls, "error", err)
			break
		}
		next, err := ParseDocument(raw)
		if err != nil {
			attempt.Discarded, attempt.Err = true, err.Error()
			out.Attempts = append(out.Attempts, attempt)
			l.log.Debug("Discarding unparseable correction", "type", req.Type, "attempt", calls)
			continue
		}

		out.State = StateValidating
		out.Document = next
		out.Result = ValidateWithSchedule(next, req.Type, req.Schedule)
		attempt.Document, attempt.Result = next, out.Result
		out.Attempts = append(out.Attempts, attempt)
	}

	if out.Result.Valid {
		out.State = StateDone
		return out, nil
	}
	out.State = StateExhausted
	l.log.Warn("Correction budget exhausted, delivering non-compliant document",
		"type", req.Type, "attempts", len(out.Attempts), "failedCriteria", out.Result.FailedCriteria)
	return out, nil
}

// IsMalformed reports whether err came from an unparseable completion.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedResponse)
}
