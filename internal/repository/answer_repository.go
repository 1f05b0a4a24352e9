package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/kb-api/internal/models"
)

// ErrQuestionLocked is returned when an answer targets a final question.
var ErrQuestionLocked = errors.New("question accepts no further answers")

const answerColumns = `id, question_id, answer_text, status, created_by, created_at, updated_at, attachment`

const answerDetailSelect = `SELECT a.id, a.question_id, a.answer_text, a.status, a.created_by, a.created_at, a.updated_at, a.attachment,
	COALESCE(u.display_name, '') AS author_name
FROM answers a
LEFT JOIN users u ON u.id = a.created_by`

const insertAnswer = `INSERT INTO answers (id, question_id, answer_text, status, created_by, created_at, updated_at, attachment)
VALUES (:id, :question_id, :answer_text, :status, :created_by, :created_at, :updated_at, :attachment)`

// AnswerRepository persists answers for the content store.
type AnswerRepository struct {
	db *sqlx.DB
}

// NewAnswerRepository constructs the repository.
func NewAnswerRepository(db *sqlx.DB) *AnswerRepository {
	return &AnswerRepository{db: db}
}

func prepareAnswer(a *models.Answer) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.UpdatedAt = a.CreatedAt
}

// CreateUnlocked inserts the answer only while its question is not final. The guard is part of
// the INSERT so no separate read can race with it.
func (r *AnswerRepository) CreateUnlocked(ctx context.Context, a *models.Answer) error {
	prepareAnswer(a)
	const query = `INSERT INTO answers (` + answerColumns + `)
SELECT $1, $2, $3, $4, $5, $6, $7, $8
WHERE EXISTS (SELECT 1 FROM questions WHERE id = $2 AND is_final = FALSE)`

	res, err := r.db.ExecContext(ctx, query, a.ID, a.QuestionID, a.AnswerText, a.Status, a.CreatedBy, a.CreatedAt, a.UpdatedAt, a.Attachment)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create answer rows: %w", err)
	}
	if n == 0 {
		return ErrQuestionLocked
	}
	return nil
}

// FindByID returns an answer by identifier.
func (r *AnswerRepository) FindByID(ctx context.Context, id string) (*models.Answer, error) {
	const query = `SELECT ` + answerColumns + ` FROM answers WHERE id = $1`
	var a models.Answer
	if err := r.db.GetContext(ctx, &a, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find answer: %w", err)
	}
	return &a, nil
}

// List returns the answers of a question, oldest first.
func (r *AnswerRepository) List(ctx context.Context, filter models.AnswerFilter) ([]models.AnswerDetail, error) {
	var builder strings.Builder
	builder.WriteString(answerDetailSelect)
	args := []interface{}{filter.QuestionID}
	builder.WriteString(" WHERE a.question_id = $1")

	if filter.Status != nil {
		args = append(args, *filter.Status)
		if filter.OrAuthorID != "" {
			args = append(args, filter.OrAuthorID)
			fmt.Fprintf(&builder, " AND (a.status = $%d OR a.created_by = $%d)", len(args)-1, len(args))
		} else {
			fmt.Fprintf(&builder, " AND a.status = $%d", len(args))
		}
	}
	builder.WriteString(" ORDER BY a.created_at ASC")

	var items []models.AnswerDetail
	if err := r.db.SelectContext(ctx, &items, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return items, nil
}

// ListByStatus returns answers across all questions in the given status, oldest first.
func (r *AnswerRepository) ListByStatus(ctx context.Context, status models.ContentStatus, limit int) ([]models.AnswerDetail, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf("%s WHERE a.status = $1 ORDER BY a.created_at ASC LIMIT %d", answerDetailSelect, limit)
	var items []models.AnswerDetail
	if err := r.db.SelectContext(ctx, &items, query, status); err != nil {
		return nil, fmt.Errorf("list answers by status: %w", err)
	}
	return items, nil
}

// UpdateStatus sets the moderation status and returns the updated row.
func (r *AnswerRepository) UpdateStatus(ctx context.Context, id string, status models.ContentStatus) (*models.Answer, error) {
	const query = `UPDATE answers SET status = $2, updated_at = $3 WHERE id = $1 RETURNING ` + answerColumns
	var a models.Answer
	if err := r.db.GetContext(ctx, &a, query, id, status, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("update answer status: %w", err)
	}
	return &a, nil
}
