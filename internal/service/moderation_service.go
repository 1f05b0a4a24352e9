package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/kb-api/internal/dto"
	"github.com/noah-isme/kb-api/internal/models"
	"github.com/noah-isme/kb-api/internal/repository"
	appErrors "github.com/noah-isme/kb-api/pkg/errors"
)

const defaultListLimit = 20

type questionStore interface {
	Create(ctx context.Context, q *models.Question) error
	CreateThrottled(ctx context.Context, q *models.Question) error
	CreateWithAnswer(ctx context.Context, q *models.Question, a *models.Answer) error
	FindByID(ctx context.Context, id string) (*models.QuestionDetail, error)
	List(ctx context.Context, filter models.QuestionFilter) ([]models.QuestionDetail, int, error)
	ListAll(ctx context.Context, filter models.QuestionFilter) ([]models.QuestionDetail, error)
	UpdateStatus(ctx context.Context, id string, status models.ContentStatus) (*models.Question, error)
	IncrementViews(ctx context.Context, id string) (int64, error)
	DeleteRejected(ctx context.Context, id string) (int64, error)
}

type answerStore interface {
	CreateUnlocked(ctx context.Context, a *models.Answer) error
	FindByID(ctx context.Context, id string) (*models.Answer, error)
	List(ctx context.Context, filter models.AnswerFilter) ([]models.AnswerDetail, error)
	ListByStatus(ctx context.Context, status models.ContentStatus, limit int) ([]models.AnswerDetail, error)
	UpdateStatus(ctx context.Context, id string, status models.ContentStatus) (*models.Answer, error)
}

type activityRecorder interface {
	Record(ctx context.Context, userID, action, detail string)
}

type moderationNotifier interface {
	NotifyNewQuestion(q models.Question, authorID string)
	NotifyPendingAnswer(q models.Question, a models.Answer, authorID string)
}

type statsInvalidator interface {
	Invalidate(ctx context.Context)
}

// ModerationService enforces the content state machine and its role rules. Every call takes the
// acting user explicitly; nothing is read from ambient session state.
type ModerationService struct {
	questions questionStore
	answers   answerStore
	activity  activityRecorder
	notifier  moderationNotifier
	ranking   *RankingService
	stats     statsInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewModerationService wires the engine. notifier and stats may be nil.
func NewModerationService(
	questions questionStore,
	answers answerStore,
	activity activityRecorder,
	notifier moderationNotifier,
	ranking *RankingService,
	stats statsInvalidator,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *ModerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if ranking == nil {
		ranking = NewRankingService(questions, 0)
	}
	return &ModerationService{
		questions: questions,
		answers:   answers,
		activity:  activity,
		notifier:  notifier,
		ranking:   ranking,
		stats:     stats,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

func internalError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

func requireRole(actor models.Actor) error {
	if actor.ID == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "missing actor")
	}
	if !actor.Role.Valid() {
		return appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}
	return nil
}

func initialStatus(role models.UserRole) models.ContentStatus {
	if role == models.RoleAdmin {
		return models.StatusApproved
	}
	return models.StatusPending
}

// committed runs the side effects that follow a successful write.
func (s *ModerationService) committed(ctx context.Context, actor models.Actor, action, detail string) {
	if s.activity != nil {
		s.activity.Record(ctx, actor.ID, action, detail)
	}
	if s.stats != nil {
		s.stats.Invalidate(ctx)
	}
}

func (s *ModerationService) buildQuestion(actor models.Actor, req dto.CreateQuestionRequest) (*models.Question, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Category = strings.ToLower(strings.TrimSpace(req.Category))
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid question payload")
	}
	category, err := models.ParseCategory(req.Category)
	if err != nil {
		return nil, validationError(err, "unknown category")
	}
	return &models.Question{
		Title:       req.Title,
		Description: req.Description,
		Category:    category,
		Status:      initialStatus(actor.Role),
		CreatedBy:   actor.ID,
		CreatedAt:   s.now().UTC(),
		Attachment:  normalizeRef(req.Attachment),
	}, nil
}

func normalizeRef(ref *string) *string {
	if ref == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*ref)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// SubmitQuestion creates a question. Admin questions are approved immediately, all others start
// pending. A supervisor may hold at most one pending question at a time.
func (s *ModerationService) SubmitQuestion(ctx context.Context, actor models.Actor, req dto.CreateQuestionRequest) (q *models.Question, err error) {
	defer func() { s.metrics.RecordModeration("submit_question", err) }()

	if err := requireRole(actor); err != nil {
		return nil, err
	}
	q, err = s.buildQuestion(actor, req)
	if err != nil {
		return nil, err
	}

	if actor.Role == models.RoleSupervisor {
		if err := s.questions.CreateThrottled(ctx, q); err != nil {
			if errors.Is(err, repository.ErrPendingQuestionExists) {
				return nil, appErrors.Clone(appErrors.ErrThrottled, "you already have a question awaiting review")
			}
			return nil, internalError(err, "failed to create question")
		}
	} else if err := s.questions.Create(ctx, q); err != nil {
		return nil, internalError(err, "failed to create question")
	}

	s.committed(ctx, actor, models.ActionQuestionSubmit, q.ID)
	if actor.Role == models.RoleUser && s.notifier != nil {
		s.notifier.NotifyNewQuestion(*q, actor.ID)
	}
	return q, nil
}

// PostFinalQuestion creates an approved, final question together with its approved answer.
// Either both rows exist afterwards or neither does.
func (s *ModerationService) PostFinalQuestion(ctx context.Context, actor models.Actor, req dto.PostFinalRequest) (q *models.Question, a *models.Answer, err error) {
	defer func() { s.metrics.RecordModeration("post_final", err) }()

	if err := requireRole(actor); err != nil {
		return nil, nil, err
	}
	if actor.Role != models.RoleAdmin {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can post final answers")
	}
	q, err = s.buildQuestion(actor, req.CreateQuestionRequest)
	if err != nil {
		return nil, nil, err
	}
	answerText := strings.TrimSpace(req.AnswerText)
	if answerText == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "answer_text is required")
	}
	q.Status = models.StatusApproved
	q.IsFinal = true
	a = &models.Answer{
		AnswerText: answerText,
		Status:     models.StatusApproved,
		CreatedBy:  actor.ID,
		CreatedAt:  q.CreatedAt,
		Attachment: normalizeRef(req.AnswerAttachment),
	}

	if err := s.questions.CreateWithAnswer(ctx, q, a); err != nil {
		return nil, nil, internalError(err, "failed to create final question")
	}

	s.committed(ctx, actor, models.ActionQuestionFinalSubmit, q.ID)
	return q, a, nil
}

// SetQuestionStatus moves a question to any status. Admins and supervisors only.
func (s *ModerationService) SetQuestionStatus(ctx context.Context, actor models.Actor, id, rawStatus string) (q *models.Question, err error) {
	defer func() { s.metrics.RecordModeration("set_question_status", err) }()

	if err := requireRole(actor); err != nil {
		return nil, err
	}
	if !actor.Role.IsModerator() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only moderators can change question status")
	}
	status, err := models.ParseStatus(rawStatus)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidStatus.Code, appErrors.ErrInvalidStatus.Status, appErrors.ErrInvalidStatus.Message)
	}

	q, err = s.questions.UpdateStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "question not found")
		}
		return nil, internalError(err, "failed to update question status")
	}

	s.committed(ctx, actor, models.ActionQuestionStatus, fmt.Sprintf("%s:%s", q.ID, status))
	return q, nil
}

// ViewQuestion adds exactly one view and returns the new count.
func (s *ModerationService) ViewQuestion(ctx context.Context, id string) (int64, error) {
	views, err := s.questions.IncrementViews(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "question not found")
		}
		return 0, internalError(err, "failed to record view")
	}
	s.metrics.RecordView()
	return views, nil
}

func visibleTo(actor models.Actor, q *models.Question) bool {
	return q.Status == models.StatusApproved || actor.Role.IsModerator() || q.CreatedBy == actor.ID
}

func (s *ModerationService) findVisible(ctx context.Context, actor models.Actor, id string) (*models.QuestionDetail, error) {
	q, err := s.questions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "question not found")
		}
		return nil, internalError(err, "failed to load question")
	}
	if !visibleTo(actor, &q.Question) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "question not found")
	}
	return q, nil
}

// GetQuestion returns a question and counts the fetch as a view. Unapproved questions are only
// visible to moderators and their author.
func (s *ModerationService) GetQuestion(ctx context.Context, actor models.Actor, id string) (*models.QuestionDetail, error) {
	if err := requireRole(actor); err != nil {
		return nil, err
	}
	q, err := s.findVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	views, err := s.ViewQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	q.Views = views
	return q, nil
}

// DeleteQuestion hard-deletes a rejected question and its answers. Admins only.
func (s *ModerationService) DeleteQuestion(ctx context.Context, actor models.Actor, id string) (err error) {
	defer func() { s.metrics.RecordModeration("delete_question", err) }()

	if err := requireRole(actor); err != nil {
		return err
	}
	if actor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins can delete questions")
	}
	removed, err := s.questions.DeleteRejected(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, "question not found")
		case errors.Is(err, repository.ErrQuestionNotRejected):
			return appErrors.Clone(appErrors.ErrInvalidState, "only rejected questions can be deleted")
		}
		return internalError(err, "failed to delete question")
	}

	s.committed(ctx, actor, models.ActionQuestionDelete, fmt.Sprintf("%s:answers=%d", id, removed))
	return nil
}

// SubmitAnswer answers a non-final question. Plain users may never answer.
func (s *ModerationService) SubmitAnswer(ctx context.Context, actor models.Actor, questionID string, req dto.CreateAnswerRequest) (a *models.Answer, err error) {
	defer func() { s.metrics.RecordModeration("submit_answer", err) }()

	if err := requireRole(actor); err != nil {
		return nil, err
	}
	if !actor.Role.IsModerator() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "users cannot answer questions")
	}
	req.AnswerText = strings.TrimSpace(req.AnswerText)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid answer payload")
	}

	q, err := s.questions.FindByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "question not found")
		}
		return nil, internalError(err, "failed to load question")
	}
	if q.IsFinal {
		return nil, appErrors.Clone(appErrors.ErrLocked, appErrors.ErrLocked.Message)
	}

	a = &models.Answer{
		QuestionID: questionID,
		AnswerText: req.AnswerText,
		Status:     initialStatus(actor.Role),
		CreatedBy:  actor.ID,
		CreatedAt:  s.now().UTC(),
		Attachment: normalizeRef(req.Attachment),
	}
	if err := s.answers.CreateUnlocked(ctx, a); err != nil {
		if errors.Is(err, repository.ErrQuestionLocked) {
			if _, findErr := s.questions.FindByID(ctx, questionID); errors.Is(findErr, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "question not found")
			}
			return nil, appErrors.Clone(appErrors.ErrLocked, appErrors.ErrLocked.Message)
		}
		return nil, internalError(err, "failed to create answer")
	}

	s.committed(ctx, actor, models.ActionAnswerSubmit, fmt.Sprintf("%s:%s", questionID, a.ID))
	if actor.Role == models.RoleSupervisor && s.notifier != nil {
		s.notifier.NotifyPendingAnswer(q.Question, *a, actor.ID)
	}
	return a, nil
}

// SetAnswerStatus moves an answer to any status. Admins only.
func (s *ModerationService) SetAnswerStatus(ctx context.Context, actor models.Actor, id, rawStatus string) (a *models.Answer, err error) {
	defer func() { s.metrics.RecordModeration("set_answer_status", err) }()

	if err := requireRole(actor); err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can change answer status")
	}
	status, err := models.ParseStatus(rawStatus)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidStatus.Code, appErrors.ErrInvalidStatus.Status, appErrors.ErrInvalidStatus.Message)
	}

	a, err = s.answers.UpdateStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "answer not found")
		}
		return nil, internalError(err, "failed to update answer status")
	}

	s.committed(ctx, actor, models.ActionAnswerStatus, fmt.Sprintf("%s:%s", a.ID, status))
	return a, nil
}

func (s *ModerationService) buildFilter(actor models.Actor, query dto.ListQuestionsQuery) (models.QuestionFilter, error) {
	filter := models.QuestionFilter{
		AuthorID: strings.TrimSpace(query.AuthorID),
		Search:   strings.TrimSpace(query.Search),
		Limit:    query.Limit,
		Offset:   query.Offset,
	}
	if query.Category != "" {
		category, err := models.ParseCategory(query.Category)
		if err != nil {
			return filter, validationError(err, "unknown category")
		}
		filter.Category = &category
	}
	if query.Status != "" {
		status, err := models.ParseStatus(query.Status)
		if err != nil {
			return filter, appErrors.Wrap(err, appErrors.ErrInvalidStatus.Code, appErrors.ErrInvalidStatus.Status, appErrors.ErrInvalidStatus.Message)
		}
		filter.Status = &status
	}

	ownOnly := filter.AuthorID != "" && filter.AuthorID == actor.ID
	if !actor.Role.IsModerator() && !ownOnly {
		if filter.Status != nil && *filter.Status != models.StatusApproved {
			return filter, appErrors.Clone(appErrors.ErrForbidden, "only moderators can list unapproved questions")
		}
		approved := models.StatusApproved
		filter.Status = &approved
	}

	switch sortBy := models.QuestionSort(strings.ToLower(query.SortBy)); sortBy {
	case "":
		filter.SortBy = models.SortRecent
	case models.SortRecent, models.SortViews, models.SortAnswers, models.SortTrending:
		filter.SortBy = sortBy
	default:
		return filter, appErrors.Clone(appErrors.ErrValidation, "sortBy must be one of recent, views, answers, trending")
	}

	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return filter, nil
}

// ListQuestions returns one page of questions. Non-moderators see approved questions, plus
// their own in any status when filtering by their own author ID.
func (s *ModerationService) ListQuestions(ctx context.Context, actor models.Actor, query dto.ListQuestionsQuery) ([]models.QuestionDetail, *models.Pagination, error) {
	if err := requireRole(actor); err != nil {
		return nil, nil, err
	}
	filter, err := s.buildFilter(actor, query)
	if err != nil {
		return nil, nil, err
	}

	var (
		items []models.QuestionDetail
		total int
	)
	if filter.SortBy == models.SortTrending {
		all, err := s.questions.ListAll(ctx, filter)
		if err != nil {
			return nil, nil, internalError(err, "failed to list questions")
		}
		s.ranking.Order(all, models.SortTrending)
		total = len(all)
		items = paginate(all, filter.Offset, filter.Limit)
	} else {
		items, total, err = s.questions.List(ctx, filter)
		if err != nil {
			return nil, nil, internalError(err, "failed to list questions")
		}
	}
	if items == nil {
		items = []models.QuestionDetail{}
	}
	return items, &models.Pagination{Limit: filter.Limit, Offset: filter.Offset, TotalCount: total}, nil
}

func paginate(items []models.QuestionDetail, offset, limit int) []models.QuestionDetail {
	if offset >= len(items) {
		return []models.QuestionDetail{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// ListAnswers returns the answers of a visible question. Moderators see every answer; others see
// approved answers and their own.
func (s *ModerationService) ListAnswers(ctx context.Context, actor models.Actor, questionID string) ([]models.AnswerDetail, error) {
	if err := requireRole(actor); err != nil {
		return nil, err
	}
	if _, err := s.findVisible(ctx, actor, questionID); err != nil {
		return nil, err
	}

	filter := models.AnswerFilter{QuestionID: questionID}
	if !actor.Role.IsModerator() {
		approved := models.StatusApproved
		filter.Status = &approved
		filter.OrAuthorID = actor.ID
	}
	items, err := s.answers.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list answers")
	}
	if items == nil {
		items = []models.AnswerDetail{}
	}
	return items, nil
}

// PendingQueue returns questions and answers waiting for review.
func (s *ModerationService) PendingQueue(ctx context.Context, actor models.Actor) (*models.ModerationQueue, error) {
	if err := requireRole(actor); err != nil {
		return nil, err
	}
	if !actor.Role.IsModerator() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only moderators can view the review queue")
	}
	pending := models.StatusPending
	questions, _, err := s.questions.List(ctx, models.QuestionFilter{Status: &pending, SortBy: models.SortRecent, Limit: maxListLimit})
	if err != nil {
		return nil, internalError(err, "failed to list pending questions")
	}
	answers, err := s.answers.ListByStatus(ctx, models.StatusPending, maxListLimit)
	if err != nil {
		return nil, internalError(err, "failed to list pending answers")
	}
	if questions == nil {
		questions = []models.QuestionDetail{}
	}
	if answers == nil {
		answers = []models.AnswerDetail{}
	}
	return &models.ModerationQueue{Questions: questions, Answers: answers}, nil
}
