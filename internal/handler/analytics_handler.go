package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/kb-api/internal/models"
	"github.com/noah-isme/kb-api/internal/service"
	appErrors "github.com/noah-isme/kb-api/pkg/errors"
	"github.com/noah-isme/kb-api/pkg/response"
)

type analyticsService interface {
	Stats(ctx context.Context) (*models.Stats, bool, error)
	Analytics(ctx context.Context) (*models.Analytics, bool, error)
	Export(ctx context.Context, format string) (*service.ExportFile, error)
	SystemMetrics() models.SystemMetrics
}

// AnalyticsHandler exposes dashboard-ready analytics endpoints.
type AnalyticsHandler struct {
	analytics analyticsService
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics analyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Stats godoc
// @Summary Knowledge base totals
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/stats [get]
func (h *AnalyticsHandler) Stats(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	stats, cacheHit, err := h.analytics.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil, withCacheMeta(c, cacheHit))
}

// Overview godoc
// @Summary Totals with trending and most viewed questions
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics [get]
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	overview, cacheHit, err := h.analytics.Analytics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil, withCacheMeta(c, cacheHit))
}

// Export godoc
// @Summary Export analytics
// @Tags Analytics
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /analytics/export [get]
func (h *AnalyticsHandler) Export(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	file, err := h.analytics.Export(c.Request.Context(), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.ContentType, file.Filename, file.Data)
}

// System godoc
// @Summary Process metrics snapshot
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/system [get]
func (h *AnalyticsHandler) System(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	response.JSON(c, http.StatusOK, h.analytics.SystemMetrics(), nil)
}
