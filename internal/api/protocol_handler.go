package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"alcyxob/fitness-protocols/internal/domain"
	"alcyxob/fitness-protocols/internal/generator"
	"alcyxob/fitness-protocols/internal/logger"
	"alcyxob/fitness-protocols/internal/protocol"
	"alcyxob/fitness-protocols/internal/service"

	"github.com/gin-gonic/gin"
)

// ProtocolHandler exposes generation and protocol history.
type ProtocolHandler struct {
	protocolService service.ProtocolService
	log             *logger.Logger
}

func NewProtocolHandler(protocolService service.ProtocolService, log *logger.Logger) *ProtocolHandler {
	return &ProtocolHandler{protocolService: protocolService, log: log}
}

// --- Request/Response Structs ---

type GenerateRequest struct {
	Type         string          `json:"type" binding:"required"`
	UserContext  map[string]any  `json:"userContext"`
	TargetUserID string          `json:"targetUserId"`
	Adjustments  string          `json:"adjustments"`
	PlanTier     domain.PlanTier `json:"planTier" binding:"omitempty,oneof=monthly quarterly semiannual annual"`
}

// GenerateResponse is returned with 201 for a new protocol and 200 for a gate denial.
type GenerateResponse struct {
	Status     string                 `json:"status"`
	Protocol   *domain.StoredProtocol `json:"protocol,omitempty"`
	Denial     *service.Denial        `json:"denial,omitempty"`
	Enrichment *protocol.EnrichStats  `json:"enrichment,omitempty"`
}

type ValidateRequest struct {
	Type        string          `json:"type" binding:"required"`
	Document    json.RawMessage `json:"document" binding:"required"`
	UserContext map[string]any  `json:"userContext"`
}

// --- Handler Methods ---

// Generate godoc
// @Summary Generate a protocol
// @Description Runs the gate, generation with self-correction, enrichment and persistence.
// @Tags Protocols
// @Accept json
// @Produce json
// @Param request body GenerateRequest true "Generation request"
// @Success 201 {object} GenerateResponse "Protocol generated"
// @Success 200 {object} GenerateResponse "Generation denied by policy"
// @Failure 429 {object} gin.H "Generator rate limited"
// @Failure 503 {object} gin.H "Generator quota exhausted"
// @Failure 502 {object} gin.H "Generator failure"
// @Router /protocols/generate [post]
func (h *ProtocolHandler) Generate(c *gin.Context) {
	caller, err := getCaller(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, err.Error())
		return
	}

	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	t, err := domain.ParseProtocolType(req.Type)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	targetID, err := optionalObjectID(req.TargetUserID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid targetUserId format")
		return
	}

	out, err := h.protocolService.Generate(c.Request.Context(), caller, service.GenerateInput{
		Type:         t,
		UserContext:  protocol.UserContext(req.UserContext),
		TargetUserID: targetID,
		Adjustments:  req.Adjustments,
		PlanTier:     req.PlanTier,
	})
	if err != nil {
		status, message := generationErrorStatus(err)
		if status >= http.StatusInternalServerError {
			h.log.Error("Protocol generation failed", "userId", caller.UserID.Hex(), "type", t, "error", err)
		}
		if wait := generator.RetryAfter(err); status == http.StatusTooManyRequests && wait > 0 {
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
		}
		abortWithError(c, status, message)
		return
	}

	resp := GenerateResponse{Status: out.Status, Protocol: out.Protocol, Denial: out.Denial, Enrichment: out.Enrichment}
	if out.Status == service.StatusDenied {
		// A denial is an answer, not a failure.
		c.JSON(http.StatusOK, resp)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// generationErrorStatus maps pipeline errors to status codes and user-facing messages.
func generationErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidProtocolType):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, generator.ErrRateLimited):
		return http.StatusTooManyRequests, "The protocol generator is busy. Please try again in a minute."
	case errors.Is(err, generator.ErrQuotaExhausted):
		return http.StatusServiceUnavailable, "Protocol generation is temporarily unavailable. Please try again later."
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Protocol generation timed out. Please try again."
	case errors.Is(err, protocol.ErrMalformedResponse),
		errors.Is(err, generator.ErrUnavailable),
		errors.Is(err, generator.ErrEmptyResponse):
		return http.StatusBadGateway, "The protocol generator failed. Please try again."
	case errors.Is(err, service.ErrPersistence):
		return http.StatusInternalServerError, "Could not save the generated protocol"
	default:
		return http.StatusInternalServerError, "An unexpected error occurred during generation"
	}
}

// GetActive godoc
// @Summary Get the active protocol of a type
// @Tags Protocols
// @Produce json
// @Param type path string true "workout | nutrition | mindset"
// @Param userId query string false "Target user (admins only)"
// @Success 200 {object} domain.StoredProtocol
// @Failure 404 {object} gin.H "No active protocol"
// @Router /protocols/active/{type} [get]
func (h *ProtocolHandler) GetActive(c *gin.Context) {
	caller, err := getCaller(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, err.Error())
		return
	}
	t, err := domain.ParseProtocolType(c.Param("type"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	targetID, err := optionalObjectID(c.Query("userId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid userId format")
		return
	}

	p, err := h.protocolService.GetActive(c.Request.Context(), caller, targetID, t)
	if err != nil {
		h.abortWithLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// History godoc
// @Summary List protocols, newest first, without documents
// @Tags Protocols
// @Produce json
// @Param type query string false "Filter by type"
// @Param userId query string false "Target user (admins only)"
// @Success 200 {array} domain.StoredProtocol
// @Router /protocols [get]
func (h *ProtocolHandler) History(c *gin.Context) {
	caller, err := getCaller(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, err.Error())
		return
	}
	var t domain.ProtocolType
	if raw := c.Query("type"); raw != "" {
		if t, err = domain.ParseProtocolType(raw); err != nil {
			abortWithError(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	targetID, err := optionalObjectID(c.Query("userId"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid userId format")
		return
	}

	protocols, err := h.protocolService.History(c.Request.Context(), caller, targetID, t)
	if err != nil {
		h.abortWithLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, protocols)
}

// Validate godoc
// @Summary Validate a document without generating or storing it
// @Tags Protocols
// @Accept json
// @Produce json
// @Param request body ValidateRequest true "Document to validate"
// @Success 200 {object} protocol.ValidationResult
// @Failure 422 {object} gin.H "Document is not a JSON object"
// @Router /protocols/validate [post]
func (h *ProtocolHandler) Validate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	t, err := domain.ParseProtocolType(req.Type)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	// The document may arrive as an object or as a JSON string holding raw generator output.
	raw := string(req.Document)
	var s string
	if json.Unmarshal(req.Document, &s) == nil {
		raw = s
	}

	res, err := h.protocolService.ValidateDocument(t, raw, protocol.UserContext(req.UserContext))
	if err != nil {
		if errors.Is(err, protocol.ErrMalformedResponse) {
			abortWithError(c, http.StatusUnprocessableEntity, err.Error())
			return
		}
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ProtocolHandler) abortWithLookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProtocolNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidProtocolType):
		abortWithError(c, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("Protocol lookup failed", "error", err)
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve protocols")
	}
}
