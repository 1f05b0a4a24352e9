package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/kb-api/internal/models"
	"github.com/noah-isme/kb-api/pkg/response"
)

type activityService interface {
	GetActivity(ctx context.Context, actor models.Actor, userID string) ([]models.ActivityItem, error)
	Log(ctx context.Context, actor models.Actor, userID string, limit, offset int) ([]models.ActivityLog, error)
}

// ActivityHandler exposes per-user activity feeds.
type ActivityHandler struct {
	service activityService
}

// NewActivityHandler constructs the handler.
func NewActivityHandler(svc activityService) *ActivityHandler {
	return &ActivityHandler{service: svc}
}

// Get godoc
// @Summary Authored questions and answers of a user
// @Tags Activity
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users/{id}/activity [get]
func (h *ActivityHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	items, err := h.service.GetActivity(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if items == nil {
		items = []models.ActivityItem{}
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Log godoc
// @Summary Raw activity log of a user
// @Tags Activity
// @Produce json
// @Param id path string true "User ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users/{id}/activity-log [get]
func (h *ActivityHandler) Log(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		response.Error(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	entries, err := h.service.Log(c.Request.Context(), actor, c.Param("id"), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	if entries == nil {
		entries = []models.ActivityLog{}
	}
	response.JSON(c, http.StatusOK, entries, &models.Pagination{Limit: limit, Offset: offset, TotalCount: len(entries)})
}
