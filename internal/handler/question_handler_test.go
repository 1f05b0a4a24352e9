package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kb-api/internal/dto"
	"github.com/noah-isme/kb-api/internal/middleware"
	"github.com/noah-isme/kb-api/internal/models"
	appErrors "github.com/noah-isme/kb-api/pkg/errors"
)

type moderationServiceMock struct {
	err error

	lastActor  models.Actor
	lastID     string
	lastStatus string
	lastQuery  dto.ListQuestionsQuery
	lastCreate dto.CreateQuestionRequest
	lastFinal  dto.PostFinalRequest
	lastAnswer dto.CreateAnswerRequest
	deleted    bool
}

func (m *moderationServiceMock) SubmitQuestion(_ context.Context, actor models.Actor, req dto.CreateQuestionRequest) (*models.Question, error) {
	m.lastActor, m.lastCreate = actor, req
	if m.err != nil {
		return nil, m.err
	}
	return &models.Question{ID: "q1", Title: req.Title, Status: models.StatusPending, CreatedBy: actor.ID}, nil
}

func (m *moderationServiceMock) PostFinalQuestion(_ context.Context, actor models.Actor, req dto.PostFinalRequest) (*models.Question, *models.Answer, error) {
	m.lastActor, m.lastFinal = actor, req
	if m.err != nil {
		return nil, nil, m.err
	}
	return &models.Question{ID: "q1", IsFinal: true, Status: models.StatusApproved}, &models.Answer{ID: "a1", QuestionID: "q1", Status: models.StatusApproved}, nil
}

func (m *moderationServiceMock) SetQuestionStatus(_ context.Context, actor models.Actor, id, status string) (*models.Question, error) {
	m.lastActor, m.lastID, m.lastStatus = actor, id, status
	if m.err != nil {
		return nil, m.err
	}
	return &models.Question{ID: id, Status: models.ContentStatus(status)}, nil
}

func (m *moderationServiceMock) ViewQuestion(_ context.Context, id string) (int64, error) {
	m.lastID = id
	if m.err != nil {
		return 0, m.err
	}
	return 7, nil
}

func (m *moderationServiceMock) GetQuestion(_ context.Context, actor models.Actor, id string) (*models.QuestionDetail, error) {
	m.lastActor, m.lastID = actor, id
	if m.err != nil {
		return nil, m.err
	}
	return &models.QuestionDetail{Question: models.Question{ID: id, Views: 1}}, nil
}

func (m *moderationServiceMock) DeleteQuestion(_ context.Context, actor models.Actor, id string) error {
	m.lastActor, m.lastID = actor, id
	if m.err != nil {
		return m.err
	}
	m.deleted = true
	return nil
}

func (m *moderationServiceMock) SubmitAnswer(_ context.Context, actor models.Actor, questionID string, req dto.CreateAnswerRequest) (*models.Answer, error) {
	m.lastActor, m.lastID, m.lastAnswer = actor, questionID, req
	if m.err != nil {
		return nil, m.err
	}
	return &models.Answer{ID: "a1", QuestionID: questionID, AnswerText: req.AnswerText}, nil
}

func (m *moderationServiceMock) SetAnswerStatus(_ context.Context, actor models.Actor, id, status string) (*models.Answer, error) {
	m.lastActor, m.lastID, m.lastStatus = actor, id, status
	if m.err != nil {
		return nil, m.err
	}
	return &models.Answer{ID: id, Status: models.ContentStatus(status)}, nil
}

func (m *moderationServiceMock) ListQuestions(_ context.Context, actor models.Actor, query dto.ListQuestionsQuery) ([]models.QuestionDetail, *models.Pagination, error) {
	m.lastActor, m.lastQuery = actor, query
	if m.err != nil {
		return nil, nil, m.err
	}
	return []models.QuestionDetail{{Question: models.Question{ID: "q1"}}}, &models.Pagination{Limit: 20, TotalCount: 1}, nil
}

func (m *moderationServiceMock) ListAnswers(_ context.Context, actor models.Actor, questionID string) ([]models.AnswerDetail, error) {
	m.lastActor, m.lastID = actor, questionID
	if m.err != nil {
		return nil, m.err
	}
	return []models.AnswerDetail{{Answer: models.Answer{ID: "a1"}}}, nil
}

func (m *moderationServiceMock) PendingQueue(_ context.Context, actor models.Actor) (*models.ModerationQueue, error) {
	m.lastActor = actor
	if m.err != nil {
		return nil, m.err
	}
	return &models.ModerationQueue{Questions: []models.QuestionDetail{}, Answers: []models.AnswerDetail{}}, nil
}

type trendingServiceMock struct {
	category *models.Category
	limit    int
}

func (m *trendingServiceMock) Trending(_ context.Context, category *models.Category, limit int) ([]models.RankedQuestion, error) {
	m.category, m.limit = category, limit
	return []models.RankedQuestion{{Score: 3}}, nil
}

var supervisorClaims = &models.JWTClaims{UserID: "sup-1", Role: models.RoleSupervisor}

func newTestContext(method, target string, body string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req, _ := http.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestQuestionHandlerListBindsQuery(t *testing.T) {
	mockSvc := &moderationServiceMock{}
	handler := NewQuestionHandler(mockSvc, &trendingServiceMock{})

	c, w := newTestContext(http.MethodGet, "/questions?category=ibml&status=pending&search=jam&sortBy=views&authorId=u1&limit=5&offset=10", "", supervisorClaims)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ListQuestionsQuery{Category: "ibml", Status: "pending", Search: "jam", SortBy: "views", AuthorID: "u1", Limit: 5, Offset: 10}, mockSvc.lastQuery)
	assert.Equal(t, models.Actor{ID: "sup-1", Role: models.RoleSupervisor}, mockSvc.lastActor)

	var body struct {
		Data       []models.QuestionDetail `json:"data"`
		Pagination models.Pagination       `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data, 1)
	assert.Equal(t, 1, body.Pagination.TotalCount)
}

func TestQuestionHandlerRequiresClaims(t *testing.T) {
	handler := NewQuestionHandler(&moderationServiceMock{}, &trendingServiceMock{})

	c, w := newTestContext(http.MethodGet, "/questions", "", nil)
	handler.List(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, w))
}

func TestQuestionHandlerSubmit(t *testing.T) {
	mockSvc := &moderationServiceMock{}
	handler := NewQuestionHandler(mockSvc, &trendingServiceMock{})

	c, w := newTestContext(http.MethodPost, "/questions", `{"title":"Jam on feed tray","description":"Tray 2","category":"softtrac"}`, supervisorClaims)
	handler.Submit(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "softtrac", mockSvc.lastCreate.Category)

	c, w = newTestContext(http.MethodPost, "/questions", `{"title":`, supervisorClaims)
	handler.Submit(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQuestionHandlerMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{appErrors.Clone(appErrors.ErrThrottled, "pending exists"), http.StatusTooManyRequests, "THROTTLE_VIOLATION"},
		{appErrors.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{appErrors.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{appErrors.ErrInvalidState, http.StatusConflict, "INVALID_STATE"},
		{appErrors.ErrLocked, http.StatusConflict, "LOCKED"},
		{appErrors.ErrInvalidStatus, http.StatusBadRequest, "INVALID_STATUS"},
	}
	for _, tc := range cases {
		handler := NewQuestionHandler(&moderationServiceMock{err: tc.err}, &trendingServiceMock{})
		c, w := newTestContext(http.MethodPost, "/questions", `{"title":"t","description":"d","category":"ibml"}`, supervisorClaims)
		handler.Submit(c)
		assert.Equal(t, tc.status, w.Code, tc.code)
		assert.Equal(t, tc.code, decodeError(t, w))
	}
}

func TestQuestionHandlerPostFinal(t *testing.T) {
	mockSvc := &moderationServiceMock{}
	handler := NewQuestionHandler(mockSvc, &trendingServiceMock{})

	c, w := newTestContext(http.MethodPost, "/questions/final", `{"title":"Scanner jam error 42","description":"d","category":"ibml","answer_text":"Recalibrate"}`, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	handler.PostFinal(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Scanner jam error 42", mockSvc.lastFinal.Title)
	assert.Equal(t, "Recalibrate", mockSvc.lastFinal.AnswerText)

	var body struct {
		Data dto.PostFinalResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Data.Question.IsFinal)
	assert.Equal(t, "q1", body.Data.Answer.QuestionID)
}

func TestQuestionHandlerStatusAndDelete(t *testing.T) {
	mockSvc := &moderationServiceMock{}
	handler := NewQuestionHandler(mockSvc, &trendingServiceMock{})

	c, w := newTestContext(http.MethodPatch, "/questions/q9/status", `{"status":"rejected"}`, supervisorClaims)
	c.Params = gin.Params{{Key: "id", Value: "q9"}}
	handler.UpdateStatus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "q9", mockSvc.lastID)
	assert.Equal(t, "rejected", mockSvc.lastStatus)

	c, w = newTestContext(http.MethodDelete, "/questions/q9", "", &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	c.Params = gin.Params{{Key: "id", Value: "q9"}}
	handler.Delete(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, mockSvc.deleted)
}

func TestQuestionHandlerGetAndView(t *testing.T) {
	mockSvc := &moderationServiceMock{}
	handler := NewQuestionHandler(mockSvc, &trendingServiceMock{})

	c, w := newTestContext(http.MethodGet, "/questions/q1", "", supervisorClaims)
	c.Params = gin.Params{{Key: "id", Value: "q1"}}
	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newTestContext(http.MethodPost, "/questions/q1/views", "", nil)
	c.Params = gin.Params{{Key: "id", Value: "q1"}}
	handler.View(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"views":7`)
}

func TestQuestionHandlerTrending(t *testing.T) {
	ranking := &trendingServiceMock{}
	handler := NewQuestionHandler(&moderationServiceMock{}, ranking)

	c, w := newTestContext(http.MethodGet, "/questions/trending?category=omniscan&limit=3", "", supervisorClaims)
	handler.Trending(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, ranking.category)
	assert.Equal(t, models.CategoryOmniscan, *ranking.category)
	assert.Equal(t, 3, ranking.limit)

	c, w = newTestContext(http.MethodGet, "/questions/trending?limit=abc", "", supervisorClaims)
	handler.Trending(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext(http.MethodGet, "/questions/trending?category=fax", "", supervisorClaims)
	handler.Trending(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQuestionHandlerPendingQueue(t *testing.T) {
	handler := NewQuestionHandler(&moderationServiceMock{}, &trendingServiceMock{})
	c, w := newTestContext(http.MethodGet, "/moderation/pending", "", supervisorClaims)
	handler.PendingQueue(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"questions":[]`)
}

func TestAnswerHandler(t *testing.T) {
	mockSvc := &moderationServiceMock{}
	handler := NewAnswerHandler(mockSvc)

	c, w := newTestContext(http.MethodPost, "/questions/q1/answers", `{"answer_text":"Clean the roller"}`, supervisorClaims)
	c.Params = gin.Params{{Key: "id", Value: "q1"}}
	handler.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Clean the roller", mockSvc.lastAnswer.AnswerText)

	c, w = newTestContext(http.MethodGet, "/questions/q1/answers", "", supervisorClaims)
	c.Params = gin.Params{{Key: "id", Value: "q1"}}
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newTestContext(http.MethodPatch, "/answers/a1/status", `{"status":"approved"}`, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	handler.UpdateStatus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "approved", mockSvc.lastStatus)

	locked := NewAnswerHandler(&moderationServiceMock{err: appErrors.ErrLocked})
	c, w = newTestContext(http.MethodPost, "/questions/q1/answers", `{"answer_text":"late"}`, supervisorClaims)
	c.Params = gin.Params{{Key: "id", Value: "q1"}}
	locked.Submit(c)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "LOCKED", decodeError(t, w))
}
