package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/kb-api/internal/models"
	appErrors "github.com/noah-isme/kb-api/pkg/errors"
)

type activityStore interface {
	Append(ctx context.Context, entry *models.ActivityLog) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.ActivityLog, error)
	ListAuthored(ctx context.Context, userID string) ([]models.ActivityItem, error)
}

// ActivityService is the activity recorder: an append-only log plus per-user authored content feeds.
type ActivityService struct {
	store  activityStore
	logger *zap.Logger
	now    func() time.Time
}

// NewActivityService constructs the recorder.
func NewActivityService(store activityStore, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{store: store, logger: logger, now: time.Now}
}

// Record appends a log entry. Persistence failures are logged and never returned.
func (s *ActivityService) Record(ctx context.Context, userID, action, detail string) {
	entry := &models.ActivityLog{UserID: userID, Action: action, Detail: detail, CreatedAt: s.now().UTC()}
	if err := s.store.Append(ctx, entry); err != nil {
		s.logger.Warn("failed to record activity",
			zap.String("user_id", userID),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

func canReadActivity(actor models.Actor, userID string) bool {
	return actor.ID == userID || actor.Role == models.RoleAdmin
}

// GetActivity returns the questions and answers authored by userID, newest first.
// Only the owner and admins may read it.
func (s *ActivityService) GetActivity(ctx context.Context, actor models.Actor, userID string) ([]models.ActivityItem, error) {
	if !canReadActivity(actor, userID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot view another user's activity")
	}
	items, err := s.store.ListAuthored(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

// Log returns raw log entries for userID under the same access rule as GetActivity.
func (s *ActivityService) Log(ctx context.Context, actor models.Actor, userID string, limit, offset int) ([]models.ActivityLog, error) {
	if !canReadActivity(actor, userID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot view another user's activity")
	}
	entries, err := s.store.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity log")
	}
	return entries, nil
}
