package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"alcyxob/fitness-protocols/internal/domain"
	"alcyxob/fitness-protocols/internal/logger"
	"alcyxob/fitness-protocols/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultGateWindow is how far back a previous protocol blocks a new one.
const DefaultGateWindow = 30 * 24 * time.Hour

// DenialReason tells the member what to do next.
type DenialReason string

const (
	// DenialCurrentPlan: the current cycle is still running.
	DenialCurrentPlan DenialReason = "current_plan"
	// DenialProgressRequired: the cycle is due for review but no progress photo arrived.
	DenialProgressRequired DenialReason = "progress_required"
)

// Denial is a business decision, never an error.
type Denial struct {
	Reason       DenialReason        `json:"reason"`
	Message      string              `json:"message"`
	ProtocolID   primitive.ObjectID  `json:"protocolId"`
	CreatedAt    time.Time           `json:"createdAt"`
	NextReviewAt time.Time           `json:"nextReviewAt,omitempty"`
	Type         domain.ProtocolType `json:"type"`
}

// GateDecision is the result of MayGenerate. Denial is set iff Allowed is false.
type GateDecision struct {
	Allowed bool
	Denial  *Denial
}

// Gate decides whether a protocol of a type may be generated for a user now.
type Gate interface {
	MayGenerate(ctx context.Context, userID primitive.ObjectID, t domain.ProtocolType, actingAsAdmin bool) (GateDecision, error)
}

type generationGate struct {
	protocolRepo repository.ProtocolRepository
	checkinRepo  repository.CheckinRepository
	window       time.Duration
	log          *logger.Logger
	now          func() time.Time
}

// NewGate creates the generation gate. A non-positive window falls back to DefaultGateWindow.
func NewGate(protocolRepo repository.ProtocolRepository, checkinRepo repository.CheckinRepository, window time.Duration, log *logger.Logger) Gate {
	if window <= 0 {
		window = DefaultGateWindow
	}
	return &generationGate{
		protocolRepo: protocolRepo,
		checkinRepo:  checkinRepo,
		window:       window,
		log:          log,
		now:          time.Now,
	}
}

func (g *generationGate) MayGenerate(ctx context.Context, userID primitive.ObjectID, t domain.ProtocolType, actingAsAdmin bool) (GateDecision, error) {
	if actingAsAdmin {
		return GateDecision{Allowed: true}, nil
	}

	latest, err := g.protocolRepo.GetLatest(ctx, userID, t)
	if errors.Is(err, repository.ErrNotFound) {
		return GateDecision{Allowed: true}, nil
	}
	if err != nil {
		return GateDecision{}, fmt.Errorf("%w: latest protocol: %w", ErrPersistence, err)
	}

	now := g.now()
	if !latest.CreatedAt.After(now.Add(-g.window)) {
		return GateDecision{Allowed: true}, nil
	}

	// The new protocol's own creation time closes the gate again,
	// so evidence only unlocks one generation.
	progressed, err := g.checkinRepo.HasPhotoCheckinAfter(ctx, userID, latest.CreatedAt)
	if err != nil {
		return GateDecision{}, fmt.Errorf("%w: check-ins: %w", ErrPersistence, err)
	}
	if progressed {
		return GateDecision{Allowed: true}, nil
	}

	denial := &Denial{
		ProtocolID:   latest.ID,
		CreatedAt:    latest.CreatedAt,
		NextReviewAt: latest.Cycle.NextReviewAt,
		Type:         t,
	}
	if !latest.Cycle.NextReviewAt.IsZero() && now.Before(latest.Cycle.NextReviewAt) {
		denial.Reason = DenialCurrentPlan
		denial.Message = fmt.Sprintf(
			"You already have a current %s plan. Follow it until %s, then send a progress check-in with photos to unlock the next one.",
			t, latest.Cycle.NextReviewAt.Format("2006-01-02"))
	} else {
		denial.Reason = DenialProgressRequired
		denial.Message = fmt.Sprintf(
			"Your %s plan is due for review. Submit a check-in with progress photos so the next plan can be generated.", t)
	}

	g.log.Info("Generation denied by gate", "userId", userID.Hex(), "type", t, "reason", denial.Reason)
	return GateDecision{Denial: denial}, nil
}
