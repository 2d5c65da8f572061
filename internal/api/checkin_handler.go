package api

import (
	"errors"
	"fmt"
	"net/http"

	"alcyxob/fitness-protocols/internal/logger"
	"alcyxob/fitness-protocols/internal/service"

	"github.com/gin-gonic/gin"
)

// CheckinHandler handles progress check-ins and photo uploads.
type CheckinHandler struct {
	checkinService service.CheckinService
	log            *logger.Logger
}

func NewCheckinHandler(checkinService service.CheckinService, log *logger.Logger) *CheckinHandler {
	return &CheckinHandler{checkinService: checkinService, log: log}
}

type PhotoURLRequest struct {
	ContentType string `json:"contentType" binding:"required"`
}

type CreateCheckinRequest struct {
	PhotoKeys []string `json:"photoKeys"`
	Notes     string   `json:"notes"`
	WeightKg  float64  `json:"weightKg" binding:"gte=0"`
}

// RequestPhotoURL godoc
// @Summary Get a presigned URL to upload one progress photo
// @Tags Checkins
// @Accept json
// @Produce json
// @Param request body PhotoURLRequest true "Photo content type"
// @Success 200 {object} service.PhotoUpload
// @Router /checkins/photo-url [post]
func (h *CheckinHandler) RequestPhotoURL(c *gin.Context) {
	caller, err := getCaller(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, err.Error())
		return
	}
	var req PhotoURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	upload, err := h.checkinService.RequestPhotoUpload(c.Request.Context(), caller.UserID, req.ContentType)
	if err != nil {
		h.abortWithCheckinError(c, err)
		return
	}
	c.JSON(http.StatusOK, upload)
}

// Create godoc
// @Summary Record a progress check-in
// @Description A check-in with at least one photo lets the member request the next protocol.
// @Tags Checkins
// @Accept json
// @Produce json
// @Param request body CreateCheckinRequest true "Check-in"
// @Success 201 {object} domain.CheckIn
// @Router /checkins [post]
func (h *CheckinHandler) Create(c *gin.Context) {
	caller, err := getCaller(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, err.Error())
		return
	}
	var req CreateCheckinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}

	checkin, err := h.checkinService.Create(c.Request.Context(), caller.UserID, req.PhotoKeys, req.Notes, req.WeightKg)
	if err != nil {
		h.abortWithCheckinError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":        checkin.ID.Hex(),
		"photos":    len(checkin.PhotoKeys),
		"notes":     checkin.Notes,
		"weightKg":  checkin.WeightKg,
		"createdAt": checkin.CreatedAt,
	})
}

// List godoc
// @Summary List the caller's check-ins, newest first
// @Tags Checkins
// @Produce json
// @Success 200 {array} domain.CheckIn
// @Router /checkins [get]
func (h *CheckinHandler) List(c *gin.Context) {
	caller, err := getCaller(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, err.Error())
		return
	}
	checkins, err := h.checkinService.List(c.Request.Context(), caller.UserID)
	if err != nil {
		h.abortWithCheckinError(c, err)
		return
	}
	c.JSON(http.StatusOK, checkins)
}

func (h *CheckinHandler) abortWithCheckinError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrTooManyPhotos):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrStorageUnavailable):
		abortWithError(c, http.StatusServiceUnavailable, err.Error())
	default:
		h.log.Error("Check-in request failed", "error", err)
		abortWithError(c, http.StatusInternalServerError, "Failed to process check-in")
	}
}
