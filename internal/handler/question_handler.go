package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/kb-api/internal/dto"
	"github.com/noah-isme/kb-api/internal/models"
	appErrors "github.com/noah-isme/kb-api/pkg/errors"
	"github.com/noah-isme/kb-api/pkg/response"
)

type moderationService interface {
	SubmitQuestion(ctx context.Context, actor models.Actor, req dto.CreateQuestionRequest) (*models.Question, error)
	PostFinalQuestion(ctx context.Context, actor models.Actor, req dto.PostFinalRequest) (*models.Question, *models.Answer, error)
	SetQuestionStatus(ctx context.Context, actor models.Actor, id, status string) (*models.Question, error)
	ViewQuestion(ctx context.Context, id string) (int64, error)
	GetQuestion(ctx context.Context, actor models.Actor, id string) (*models.QuestionDetail, error)
	DeleteQuestion(ctx context.Context, actor models.Actor, id string) error
	SubmitAnswer(ctx context.Context, actor models.Actor, questionID string, req dto.CreateAnswerRequest) (*models.Answer, error)
	SetAnswerStatus(ctx context.Context, actor models.Actor, id, status string) (*models.Answer, error)
	ListQuestions(ctx context.Context, actor models.Actor, query dto.ListQuestionsQuery) ([]models.QuestionDetail, *models.Pagination, error)
	ListAnswers(ctx context.Context, actor models.Actor, questionID string) ([]models.AnswerDetail, error)
	PendingQueue(ctx context.Context, actor models.Actor) (*models.ModerationQueue, error)
}

type trendingService interface {
	Trending(ctx context.Context, category *models.Category, limit int) ([]models.RankedQuestion, error)
}

// QuestionHandler exposes question moderation endpoints.
type QuestionHandler struct {
	moderation moderationService
	ranking    trendingService
}

// NewQuestionHandler constructs the handler.
func NewQuestionHandler(moderation moderationService, ranking trendingService) *QuestionHandler {
	return &QuestionHandler{moderation: moderation, ranking: ranking}
}

func bindPayload(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

// List godoc
// @Summary List questions
// @Description Non-moderators only see approved questions, or their own when authorId is their ID
// @Tags Questions
// @Produce json
// @Param category query string false "ibml, softtrac or omniscan"
// @Param status query string false "pending, approved or rejected"
// @Param search query string false "Matches title or description"
// @Param sortBy query string false "recent, views, answers or trending"
// @Param authorId query string false "Author filter"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /questions [get]
func (h *QuestionHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.ListQuestionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}

	items, pagination, err := h.moderation.ListQuestions(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get question
// @Description Fetching a question counts as one view
// @Tags Questions
// @Produce json
// @Param id path string true "Question ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /questions/{id} [get]
func (h *QuestionHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	question, err := h.moderation.GetQuestion(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, question, nil)
}

// View godoc
// @Summary Record a view
// @Tags Questions
// @Produce json
// @Param id path string true "Question ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /questions/{id}/views [post]
func (h *QuestionHandler) View(c *gin.Context) {
	views, err := h.moderation.ViewQuestion(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"id": c.Param("id"), "views": views}, nil)
}

// Submit godoc
// @Summary Submit question
// @Description Admin questions are approved immediately; supervisors may hold one pending question at a time
// @Tags Questions
// @Accept json
// @Produce json
// @Param payload body dto.CreateQuestionRequest true "Question"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /questions [post]
func (h *QuestionHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateQuestionRequest
	if !bindPayload(c, &req) {
		return
	}
	question, err := h.moderation.SubmitQuestion(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, question)
}

// PostFinal godoc
// @Summary Post a final question and answer
// @Tags Questions
// @Accept json
// @Produce json
// @Param payload body dto.PostFinalRequest true "Question with answer"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /questions/final [post]
func (h *QuestionHandler) PostFinal(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.PostFinalRequest
	if !bindPayload(c, &req) {
		return
	}
	question, answer, err := h.moderation.PostFinalQuestion(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.PostFinalResponse{Question: question, Answer: answer})
}

// UpdateStatus godoc
// @Summary Change question status
// @Tags Questions
// @Accept json
// @Produce json
// @Param id path string true "Question ID"
// @Param payload body dto.UpdateStatusRequest true "New status"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /questions/{id}/status [patch]
func (h *QuestionHandler) UpdateStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateStatusRequest
	if !bindPayload(c, &req) {
		return
	}
	question, err := h.moderation.SetQuestionStatus(c.Request.Context(), actor, c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, question, nil)
}

// Delete godoc
// @Summary Delete a rejected question
// @Tags Questions
// @Param id path string true "Question ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /questions/{id} [delete]
func (h *QuestionHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.moderation.DeleteQuestion(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Trending godoc
// @Summary Trending questions
// @Tags Questions
// @Produce json
// @Param category query string false "Category filter"
// @Param limit query int false "Result size"
// @Success 200 {object} response.Envelope
// @Router /questions/trending [get]
func (h *QuestionHandler) Trending(c *gin.Context) {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	var category *models.Category
	if raw := c.Query("category"); raw != "" {
		parsed, err := models.ParseCategory(raw)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unknown category"))
			return
		}
		category = &parsed
	}
	ranked, err := h.ranking.Trending(c.Request.Context(), category, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ranked, nil)
}

// PendingQueue godoc
// @Summary Review queue
// @Tags Moderation
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /moderation/pending [get]
func (h *QuestionHandler) PendingQueue(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	queue, err := h.moderation.PendingQueue(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, queue, nil)
}
