package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kb-api/internal/models"
	appErrors "github.com/noah-isme/kb-api/pkg/errors"
)

type memoryActivityStore struct {
	mu        sync.Mutex
	entries   []models.ActivityLog
	authored  map[string][]models.ActivityItem
	appendErr error
}

func (m *memoryActivityStore) Append(_ context.Context, entry *models.ActivityLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memoryActivityStore) ListByUser(_ context.Context, userID string, _, _ int) ([]models.ActivityLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ActivityLog
	for _, e := range m.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryActivityStore) ListAuthored(_ context.Context, userID string) ([]models.ActivityItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ActivityItem(nil), m.authored[userID]...), nil
}

func TestActivityRecordSwallowsStoreErrors(t *testing.T) {
	store := &memoryActivityStore{}
	svc := NewActivityService(store, nil)

	svc.Record(context.Background(), "u1", models.ActionLogin, "")
	require.Len(t, store.entries, 1)
	assert.Equal(t, models.ActionLogin, store.entries[0].Action)
	assert.False(t, store.entries[0].CreatedAt.IsZero())

	store.appendErr = errors.New("disk full")
	assert.NotPanics(t, func() { svc.Record(context.Background(), "u1", models.ActionLogin, "") })
	assert.Len(t, store.entries, 1)
}

func TestGetActivityAccess(t *testing.T) {
	now := time.Now()
	store := &memoryActivityStore{authored: map[string][]models.ActivityItem{
		"u1": {
			{Type: models.ActivityQuestion, ID: "q1", Text: "Older", CreatedAt: now.Add(-time.Hour)},
			{Type: models.ActivityQuestion, ID: "q2", Text: "Newer", CreatedAt: now},
		},
	}}
	svc := NewActivityService(store, nil)
	ctx := context.Background()

	_, err := svc.GetActivity(ctx, models.Actor{ID: "u2", Role: models.RoleUser}, "u1")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
	_, err = svc.GetActivity(ctx, models.Actor{ID: "s1", Role: models.RoleSupervisor}, "u1")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	items, err := svc.GetActivity(ctx, models.Actor{ID: "u1", Role: models.RoleUser}, "u1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "q2", items[0].ID)

	items, err = svc.GetActivity(ctx, models.Actor{ID: "admin", Role: models.RoleAdmin}, "u1")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestActivityLogAccess(t *testing.T) {
	store := &memoryActivityStore{}
	svc := NewActivityService(store, nil)
	ctx := context.Background()
	svc.Record(ctx, "u1", models.ActionQuestionSubmit, "q1")
	svc.Record(ctx, "u2", models.ActionQuestionSubmit, "q2")

	entries, err := svc.Log(ctx, models.Actor{ID: "u1", Role: models.RoleUser}, "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "q1", entries[0].Detail)

	_, err = svc.Log(ctx, models.Actor{ID: "u1", Role: models.RoleUser}, "u2", 10, 0)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}
