package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/kb-api/internal/dto"
	"github.com/noah-isme/kb-api/pkg/response"
)

// AnswerHandler exposes answer endpoints.
type AnswerHandler struct {
	moderation moderationService
}

// NewAnswerHandler constructs the handler.
func NewAnswerHandler(moderation moderationService) *AnswerHandler {
	return &AnswerHandler{moderation: moderation}
}

// List godoc
// @Summary List answers of a question
// @Tags Answers
// @Produce json
// @Param id path string true "Question ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /questions/{id}/answers [get]
func (h *AnswerHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	answers, err := h.moderation.ListAnswers(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, answers, nil)
}

// Submit godoc
// @Summary Answer a question
// @Description Admins and supervisors only; final questions are locked
// @Tags Answers
// @Accept json
// @Produce json
// @Param id path string true "Question ID"
// @Param payload body dto.CreateAnswerRequest true "Answer"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /questions/{id}/answers [post]
func (h *AnswerHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateAnswerRequest
	if !bindPayload(c, &req) {
		return
	}
	answer, err := h.moderation.SubmitAnswer(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, answer)
}

// UpdateStatus godoc
// @Summary Change answer status
// @Tags Answers
// @Accept json
// @Produce json
// @Param id path string true "Answer ID"
// @Param payload body dto.UpdateStatusRequest true "New status"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /answers/{id}/status [patch]
func (h *AnswerHandler) UpdateStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateStatusRequest
	if !bindPayload(c, &req) {
		return
	}
	answer, err := h.moderation.SetAnswerStatus(c.Request.Context(), actor, c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, answer, nil)
}
