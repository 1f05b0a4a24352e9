package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/kb-api/internal/models"
	"github.com/noah-isme/kb-api/pkg/jobs"
)

const notificationJobType = "notification"

type recipientDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
}

// Dispatcher delivers a notification event to reviewers.
type Dispatcher interface {
	Dispatch(ctx context.Context, event models.NotificationEvent) error
}

type eventPublisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

// KafkaDispatcher publishes events as JSON keyed by question ID.
type KafkaDispatcher struct {
	publisher eventPublisher
}

// NewKafkaDispatcher wraps a broker publisher.
func NewKafkaDispatcher(publisher eventPublisher) *KafkaDispatcher {
	return &KafkaDispatcher{publisher: publisher}
}

// Dispatch implements Dispatcher.
func (d *KafkaDispatcher) Dispatch(ctx context.Context, event models.NotificationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return d.publisher.Publish(ctx, []byte(event.Question.ID), payload)
}

// LogDispatcher writes events to the logger. Used when no broker is configured.
type LogDispatcher struct {
	logger *zap.Logger
}

// NewLogDispatcher constructs a LogDispatcher.
func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogDispatcher{logger: logger}
}

// Dispatch implements Dispatcher.
func (d *LogDispatcher) Dispatch(_ context.Context, event models.NotificationEvent) error {
	recipients := make([]string, len(event.Recipients))
	for i, r := range event.Recipients {
		recipients[i] = r.Username
	}
	d.logger.Info("notification",
		zap.String("type", string(event.Type)),
		zap.String("question_id", event.Question.ID),
		zap.String("author_id", event.Author.ID),
		zap.Strings("recipients", recipients),
	)
	return nil
}

type notificationRequest struct {
	Type     models.NotificationType
	Question models.Question
	Answer   *models.Answer
	AuthorID string
}

// NotificationService hands moderation events to a background queue so dispatch never
// runs inside, or blocks, a content transaction.
type NotificationService struct {
	users      recipientDirectory
	dispatcher Dispatcher
	queue      *jobs.Queue
	metrics    *MetricsService
	logger     *zap.Logger
	timeout    time.Duration
}

// NewNotificationService builds the service and its queue. Call Start before notifying.
func NewNotificationService(users recipientDirectory, dispatcher Dispatcher, metrics *MetricsService, logger *zap.Logger, cfg jobs.QueueConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	s := &NotificationService{
		users:      users,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
		timeout:    10 * time.Second,
	}
	s.queue = jobs.NewQueue("notifications", s.handle, cfg)
	return s
}

// Start launches the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop cancels the workers and waits for them to exit.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Failures reports notifications that exhausted their retries.
func (s *NotificationService) Failures() <-chan jobs.Failure {
	return s.queue.Failures()
}

// NotifyNewQuestion alerts reviewers about a question submitted by a plain user.
func (s *NotificationService) NotifyNewQuestion(q models.Question, authorID string) {
	s.enqueue(notificationRequest{Type: models.NotificationNewQuestion, Question: q, AuthorID: authorID})
}

// NotifyPendingAnswer alerts reviewers about an answer awaiting approval.
func (s *NotificationService) NotifyPendingAnswer(q models.Question, a models.Answer, authorID string) {
	s.enqueue(notificationRequest{Type: models.NotificationPendingAnswer, Question: q, Answer: &a, AuthorID: authorID})
}

func (s *NotificationService) enqueue(req notificationRequest) {
	if s == nil {
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: notificationJobType, Payload: req}
	if err := s.queue.TryEnqueue(job); err != nil {
		s.metrics.RecordNotification(req.Type, err)
		s.logger.Warn("notification dropped",
			zap.String("type", string(req.Type)),
			zap.String("question_id", req.Question.ID),
			zap.Error(err),
		)
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(notificationRequest)
	if !ok {
		return fmt.Errorf("unexpected notification payload %T", job.Payload)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	admins, err := s.users.ListByRole(ctx, models.RoleAdmin)
	if err != nil {
		return fmt.Errorf("load notification recipients: %w", err)
	}
	if len(admins) == 0 {
		s.logger.Debug("no notification recipients", zap.String("type", string(req.Type)))
		return nil
	}
	recipients := make([]models.UserInfo, len(admins))
	for i := range admins {
		recipients[i] = models.UserInfoFromUser(&admins[i])
	}

	author := models.UserInfo{ID: req.AuthorID}
	if u, err := s.users.FindByID(ctx, req.AuthorID); err == nil {
		author = models.UserInfoFromUser(u)
	}

	event := models.NotificationEvent{
		Type:       req.Type,
		Recipients: recipients,
		Question:   req.Question,
		Answer:     req.Answer,
		Author:     author,
		OccurredAt: job.Enqueued,
	}
	err = s.dispatcher.Dispatch(ctx, event)
	s.metrics.RecordNotification(req.Type, err)
	return err
}
