package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/kb-api/internal/models"
)

// ActivityRepository stores the append-only activity log and reads authored content per user.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs the repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Append writes a new log entry. Entries are never updated.
func (r *ActivityRepository) Append(ctx context.Context, entry *models.ActivityLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO activity_logs (id, user_id, action, detail, created_at) VALUES (:id, :user_id, :action, :detail, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("append activity log: %w", err)
	}
	return nil
}

// ListByUser returns log entries for a user, newest first.
func (r *ActivityRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.ActivityLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT id, user_id, action, detail, created_at FROM activity_logs WHERE user_id = $1 ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)
	var entries []models.ActivityLog
	if err := r.db.SelectContext(ctx, &entries, query, userID); err != nil {
		return nil, fmt.Errorf("list activity logs: %w", err)
	}
	return entries, nil
}

// ListAuthored returns the questions and answers written by a user, newest first.
func (r *ActivityRepository) ListAuthored(ctx context.Context, userID string) ([]models.ActivityItem, error) {
	const query = `SELECT 'question' AS type, id, id AS question_id, title AS text, status, created_at FROM questions WHERE created_by = $1
UNION ALL
SELECT 'answer' AS type, id, question_id, answer_text AS text, status, created_at FROM answers WHERE created_by = $1
ORDER BY created_at DESC`
	var items []models.ActivityItem
	if err := r.db.SelectContext(ctx, &items, query, userID); err != nil {
		return nil, fmt.Errorf("list authored content: %w", err)
	}
	return items, nil
}
