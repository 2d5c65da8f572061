package api

import (
	"errors"
	"fmt"
	"net/http"

	"alcyxob/fitness-protocols/internal/domain"
	"alcyxob/fitness-protocols/internal/logger"
	"alcyxob/fitness-protocols/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CatalogHandler lets admins curate exercise media.
type CatalogHandler struct {
	catalogService service.CatalogService
	log            *logger.Logger
}

func NewCatalogHandler(catalogService service.CatalogService, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService, log: log}
}

type UpsertCatalogRequest struct {
	CanonicalName string `json:"canonicalName" binding:"required"`
	MediaKey      string `json:"mediaKey"`
	MediaURL      string `json:"mediaUrl" binding:"omitempty,url"`
	MuscleGroup   string `json:"muscleGroup"`
}

// CatalogEntryResponse includes the media key, which the public entity hides.
type CatalogEntryResponse struct {
	domain.CatalogEntry
	MediaKey string `json:"mediaKey,omitempty"`
}

func (h *CatalogHandler) List(c *gin.Context) {
	entries, err := h.catalogService.List(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to list catalog", "error", err)
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve catalog")
		return
	}
	resp := make([]CatalogEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, CatalogEntryResponse{CatalogEntry: e, MediaKey: e.MediaKey})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CatalogHandler) Upsert(c *gin.Context) {
	var req UpsertCatalogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	entry, err := h.catalogService.Upsert(c.Request.Context(), domain.CatalogEntry{
		CanonicalName: req.CanonicalName,
		MediaKey:      req.MediaKey,
		MediaURL:      req.MediaURL,
		MuscleGroup:   req.MuscleGroup,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			abortWithError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrStorageUnavailable):
			abortWithError(c, http.StatusServiceUnavailable, err.Error())
		default:
			h.log.Error("Failed to save catalog entry", "error", err)
			abortWithError(c, http.StatusInternalServerError, "Failed to save catalog entry")
		}
		return
	}
	c.JSON(http.StatusOK, CatalogEntryResponse{CatalogEntry: *entry, MediaKey: entry.MediaKey})
}

func (h *CatalogHandler) Delete(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid catalog entry ID format")
		return
	}
	if err := h.catalogService.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrCatalogEntryNotFound) {
			abortWithError(c, http.StatusNotFound, err.Error())
			return
		}
		h.log.Error("Failed to delete catalog entry", "error", err)
		abortWithError(c, http.StatusInternalServerError, "Failed to delete catalog entry")
		return
	}
	c.Status(http.StatusNoContent)
}

// Match shows which media an exercise name would receive during enrichment.
func (h *CatalogHandler) Match(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		abortWithError(c, http.StatusBadRequest, "name query parameter is required")
		return
	}
	url, ok, err := h.catalogService.Resolve(c.Request.Context(), name)
	if err != nil {
		h.log.Error("Failed to match exercise", "error", err)
		abortWithError(c, http.StatusInternalServerError, "Failed to match exercise")
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "matched": ok, "mediaUrl": url})
}
