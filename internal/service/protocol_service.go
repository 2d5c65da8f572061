package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"alcyxob/fitness-protocols/internal/domain"
	"alcyxob/fitness-protocols/internal/logger"
	"alcyxob/fitness-protocols/internal/protocol"
	"alcyxob/fitness-protocols/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrPersistence         = errors.New("failed to persist protocol")
	ErrUserNotFound        = errors.New("user not found")
	ErrProtocolNotFound    = errors.New("protocol not found")
	ErrInvalidProtocolType = errors.New("invalid protocol type")
)

// Defaults for EngineConfig.
const (
	DefaultRequestTimeout = 120 * time.Second
	DefaultAuditTimeout   = 60 * time.Second
	DefaultAuditWait      = 3 * time.Second
)

// Generation statuses returned to the caller.
const (
	StatusGenerated = "generated"
	StatusDenied    = "denied"
)

// EngineConfig tunes the generation pipeline. Zero values take the defaults.
type EngineConfig struct {
	MaxAttempts      int
	MaxDocumentBytes int
	RequestTimeout   time.Duration // Whole pipeline, audit wait included
	AuditTimeout     time.Duration // Detached audit call
	AuditWait        time.Duration // How long the response waits for the audit
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = protocol.DefaultMaxAttempts
	}
	if c.MaxDocumentBytes <= 0 {
		c.MaxDocumentBytes = protocol.DefaultMaxDocumentBytes
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.AuditTimeout <= 0 {
		c.AuditTimeout = DefaultAuditTimeout
	}
	if c.AuditWait <= 0 {
		c.AuditWait = DefaultAuditWait
	}
	return c
}

// Caller is the authenticated identity behind a request.
type Caller struct {
	UserID primitive.ObjectID
	Role   domain.Role
}

func (c Caller) IsAdmin() bool {
	return c.Role == domain.RoleAdmin
}

// GenerateInput is one generation request. TargetUserID is honored for admins only;
// the zero value means the caller.
type GenerateInput struct {
	Type         domain.ProtocolType
	UserContext  protocol.UserContext
	TargetUserID primitive.ObjectID
	Adjustments  string
	PlanTier     domain.PlanTier // Overrides the user's stored tier when set
}

// GenerateOutput carries either the new protocol or the gate's denial.
type GenerateOutput struct {
	Status     string
	Protocol   *domain.StoredProtocol
	Denial     *Denial
	Enrichment *protocol.EnrichStats
}

// ProtocolService drives generation and exposes stored protocols.
type ProtocolService interface {
	Generate(ctx context.Context, caller Caller, in GenerateInput) (*GenerateOutput, error)
	GetActive(ctx context.Context, caller Caller, target primitive.ObjectID, t domain.ProtocolType) (*domain.StoredProtocol, error)
	History(ctx context.Context, caller Caller, target primitive.ObjectID, t domain.ProtocolType) ([]domain.StoredProtocol, error)
	// ValidateDocument runs the validator over a raw document without generating or storing anything.
	ValidateDocument(t domain.ProtocolType, raw string, uc protocol.UserContext) (protocol.ValidationResult, error)
	// Wait blocks until detached audits have finished.
	Wait()
}

// protocolService implements the ProtocolService interface.
type protocolService struct {
	userRepo     repository.UserRepository
	protocolRepo repository.ProtocolRepository
	catalogRepo  repository.CatalogRepository
	gate         Gate
	prompts      protocol.PromptBuilder
	loop         *protocol.CorrectionLoop
	auditor      *protocol.Auditor
	media        protocol.MediaStore
	cfg          EngineConfig
	log          *logger.Logger
	now          func() time.Time
	audits       sync.WaitGroup
}

// NewProtocolService wires the generation pipeline. media may be nil when no
// object store is configured.
func NewProtocolService(
	userRepo repository.UserRepository,
	protocolRepo repository.ProtocolRepository,
	catalogRepo repository.CatalogRepository,
	gate Gate,
	gen protocol.Generator,
	prompts protocol.PromptBuilder,
	media protocol.MediaStore,
	cfg EngineConfig,
	log *logger.Logger,
) ProtocolService {
	cfg = cfg.withDefaults()
	if prompts == nil {
		prompts = protocol.NewTemplatePrompts()
	}
	return &protocolService{
		userRepo:     userRepo,
		protocolRepo: protocolRepo,
		catalogRepo:  catalogRepo,
		gate:         gate,
		prompts:      prompts,
		loop: protocol.NewCorrectionLoop(gen, log, protocol.LoopConfig{
			MaxAttempts:      cfg.MaxAttempts,
			MaxDocumentBytes: cfg.MaxDocumentBytes,
		}),
		auditor: protocol.NewAuditor(gen, log, cfg.MaxDocumentBytes),
		media:   media,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// resolveTarget returns the user the request acts on. Only admins may name
// another user; anyone else always acts on themselves.
func (s *protocolService) resolveTarget(caller Caller, target primitive.ObjectID) primitive.ObjectID {
	if target.IsZero() || target == caller.UserID {
		return caller.UserID
	}
	if !caller.IsAdmin() {
		s.log.Debug("Ignoring target user from non-admin caller", "callerId", caller.UserID.Hex(), "targetUserId", target.Hex())
		return caller.UserID
	}
	return target
}

// Generate runs Gate -> prompt -> correction loop -> enrich -> persist -> audit.
// Either a new active protocol is stored or nothing changes.
func (s *protocolService) Generate(ctx context.Context, caller Caller, in GenerateInput) (*GenerateOutput, error) {
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProtocolType, in.Type)
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	targetID := s.resolveTarget(caller, in.TargetUserID)
	user, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: load user: %w", ErrPersistence, err)
	}
	log := s.log.ForGeneration(targetID.Hex(), string(in.Type), caller.UserID.Hex())

	// 1. Gate
	decision, err := s.gate.MayGenerate(ctx, targetID, in.Type, caller.IsAdmin())
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return &GenerateOutput{Status: StatusDenied, Denial: decision.Denial}, nil
	}

	// 2. Prompts. Adjustment notes are an admin regeneration tool.
	adjustments := in.Adjustments
	if adjustments != "" && !caller.IsAdmin() {
		log.Debug("Ignoring adjustments from non-admin caller")
		adjustments = ""
	}
	system, userPrompt, err := s.prompts.Build(in.Type, in.UserContext, adjustments)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	// 3. Generate and correct
	outcome, err := s.loop.Run(ctx, protocol.Request{
		Type:         in.Type,
		SystemPrompt: system,
		UserPrompt:   userPrompt,
		Schedule:     protocol.ScheduleFromContext(in.UserContext),
	})
	if err != nil {
		log.Warn("Generation failed", "error", err)
		return nil, fmt.Errorf("generate %s protocol: %w", in.Type, err)
	}

	// 4. Media enrichment (workouts only, best effort)
	var stats *protocol.EnrichStats
	if in.Type == domain.ProtocolWorkout {
		stats = s.enrich(ctx, outcome.Document, log)
	}

	// 5. Cycle metadata
	tier := in.PlanTier
	if tier == "" {
		tier = user.PlanTier
	}
	previous, err := s.protocolRepo.GetLatest(ctx, targetID, in.Type)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: previous protocol: %w", ErrPersistence, err)
	}
	now := s.now().UTC()

	stored := &domain.StoredProtocol{
		UserID:      targetID,
		Type:        in.Type,
		Title:       outcome.Document.Title(),
		Document:    outcome.Document,
		Compliance:  outcome.Compliance(),
		Cycle:       protocol.NextCycle(tier, previous, now),
		Adjustments: adjustments,
	}
	if targetID != caller.UserID {
		generatedBy := caller.UserID
		stored.GeneratedBy = &generatedBy
	}

	// 6. Persist: deactivate-then-insert is atomic in the repository
	id, err := s.protocolRepo.ActivateNew(ctx, stored)
	if err != nil {
		log.Error("Failed to persist protocol", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	stored.ID = id
	log.Info("Protocol generated",
		"protocolId", id.Hex(), "compliant", stored.Compliance.Compliant, "attempts", stored.Compliance.Attempts)

	// 7. Audit, bounded wait
	stored.Audit = s.audit(ctx, id, outcome.Document, in.UserContext, in.Type, log)

	return &GenerateOutput{Status: StatusGenerated, Protocol: stored, Enrichment: stats}, nil
}

func (s *protocolService) enrich(ctx context.Context, doc protocol.Document, log *logger.Logger) *protocol.EnrichStats {
	catalog, err := s.catalogRepo.List(ctx)
	if err != nil {
		log.Warn("Catalog unavailable, skipping media enrichment", "error", err)
		return nil
	}
	var store protocol.MediaStore = protocol.URLPrefixStore(nil)
	if s.media != nil {
		store = s.media
	}
	stats := protocol.NewEnricher(protocol.NewMatcher(catalog, nil), store).Enrich(doc)
	log.Debug("Media enrichment", "exercises", stats.Exercises, "matched", stats.Matched, "unmatched", stats.Unmatched)
	return &stats
}

// audit grades the stored document in a goroutine detached from request cancellation.
// The goroutine attaches its result whenever it finishes; the caller only waits AuditWait.
func (s *protocolService) audit(ctx context.Context, id primitive.ObjectID, doc protocol.Document, uc protocol.UserContext, t domain.ProtocolType, log *logger.Logger) *domain.AuditResult {
	done := make(chan *domain.AuditResult, 1)
	s.audits.Add(1)
	go func() {
		defer s.audits.Done()
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.AuditTimeout)
		defer cancel()

		result := s.auditor.Audit(actx, doc, uc, t)
		if result != nil {
			if err := s.protocolRepo.AttachAudit(actx, id, result); err != nil {
				log.Warn("Failed to attach audit", "protocolId", id.Hex(), "error", err)
			}
		}
		done <- result
	}()

	timer := time.NewTimer(s.cfg.AuditWait)
	defer timer.Stop()
	select {
	case result := <-done:
		return result
	case <-timer.C:
		log.Debug("Audit still running, responding without it", "protocolId", id.Hex())
	case <-ctx.Done():
	}
	return nil
}

func (s *protocolService) GetActive(ctx context.Context, caller Caller, target primitive.ObjectID, t domain.ProtocolType) (*domain.StoredProtocol, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProtocolType, t)
	}
	targetID := s.resolveTarget(caller, target)
	p, err := s.protocolRepo.GetActive(ctx, targetID, t)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProtocolNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return p, nil
}

func (s *protocolService) History(ctx context.Context, caller Caller, target primitive.ObjectID, t domain.ProtocolType) ([]domain.StoredProtocol, error) {
	if t != "" && !t.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProtocolType, t)
	}
	targetID := s.resolveTarget(caller, target)
	protocols, err := s.protocolRepo.ListByUser(ctx, targetID, t)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return protocols, nil
}

func (s *protocolService) ValidateDocument(t domain.ProtocolType, raw string, uc protocol.UserContext) (protocol.ValidationResult, error) {
	if !t.Valid() {
		return protocol.ValidationResult{}, fmt.Errorf("%w: %q", ErrInvalidProtocolType, t)
	}
	doc, err := protocol.ParseDocument(raw)
	if err != nil {
		return protocol.ValidationResult{}, err
	}
	return protocol.ValidateWithSchedule(doc, t, protocol.ScheduleFromContext(uc)), nil
}

func (s *protocolService) Wait() {
	s.audits.Wait()
}
