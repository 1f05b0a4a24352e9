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

var (
	// ErrPendingQuestionExists is returned by CreateThrottled when the author already has a pending question.
	ErrPendingQuestionExists = errors.New("author already has a pending question")
	// ErrQuestionNotRejected is returned by DeleteRejected for questions in any other status.
	ErrQuestionNotRejected = errors.New("question is not rejected")
)

const questionColumns = `id, title, description, category, status, created_by, created_at, updated_at, views, is_final, attachment`

const questionDetailSelect = `SELECT q.id, q.title, q.description, q.category, q.status, q.created_by, q.created_at, q.updated_at, q.views, q.is_final, q.attachment,
	COALESCE(u.display_name, '') AS author_name,
	(SELECT COUNT(*) FROM answers a WHERE a.question_id = q.id AND a.status = 'approved') AS approved_answers
FROM questions q
LEFT JOIN users u ON u.id = q.created_by`

const insertQuestion = `INSERT INTO questions (id, title, description, category, status, created_by, created_at, updated_at, views, is_final, attachment)
VALUES (:id, :title, :description, :category, :status, :created_by, :created_at, :updated_at, :views, :is_final, :attachment)`

// QuestionRepository persists questions for the content store.
type QuestionRepository struct {
	db *sqlx.DB
}

// NewQuestionRepository constructs the repository.
func NewQuestionRepository(db *sqlx.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

func prepareQuestion(q *models.Question) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now
	}
	q.UpdatedAt = q.CreatedAt
}

// Create inserts a question.
func (r *QuestionRepository) Create(ctx context.Context, q *models.Question) error {
	prepareQuestion(q)
	if _, err := r.db.NamedExecContext(ctx, insertQuestion, q); err != nil {
		return fmt.Errorf("create question: %w", err)
	}
	return nil
}

// CreateThrottled inserts a question only if its author has no pending question. The check and
// the insert run under a per-author advisory lock so concurrent submissions serialize.
func (r *QuestionRepository) CreateThrottled(ctx context.Context, q *models.Question) error {
	prepareQuestion(q)
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin throttled question tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, q.CreatedBy); err != nil {
		return fmt.Errorf("lock author %s: %w", q.CreatedBy, err)
	}
	var pending int
	if err := tx.GetContext(ctx, &pending, `SELECT COUNT(*) FROM questions WHERE created_by = $1 AND status = 'pending'`, q.CreatedBy); err != nil {
		return fmt.Errorf("count pending questions: %w", err)
	}
	if pending > 0 {
		return ErrPendingQuestionExists
	}
	if _, err := tx.NamedExecContext(ctx, insertQuestion, q); err != nil {
		return fmt.Errorf("create question: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit throttled question tx: %w", err)
	}
	return nil
}

// CreateWithAnswer inserts a question and its answer in one transaction.
func (r *QuestionRepository) CreateWithAnswer(ctx context.Context, q *models.Question, a *models.Answer) error {
	prepareQuestion(q)
	a.QuestionID = q.ID
	prepareAnswer(a)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin final question tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.NamedExecContext(ctx, insertQuestion, q); err != nil {
		return fmt.Errorf("create final question: %w", err)
	}
	if _, err := tx.NamedExecContext(ctx, insertAnswer, a); err != nil {
		return fmt.Errorf("create final answer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit final question tx: %w", err)
	}
	return nil
}

// FindByID returns a question with its author name and approved answer count.
func (r *QuestionRepository) FindByID(ctx context.Context, id string) (*models.QuestionDetail, error) {
	query := questionDetailSelect + ` WHERE q.id = $1`
	var q models.QuestionDetail
	if err := r.db.GetContext(ctx, &q, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find question: %w", err)
	}
	return &q, nil
}

func questionWhere(filter models.QuestionFilter) (string, []interface{}) {
	var builder strings.Builder
	builder.WriteString(" WHERE 1=1")
	var args []interface{}

	if filter.Category != nil {
		args = append(args, *filter.Category)
		fmt.Fprintf(&builder, " AND q.category = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		fmt.Fprintf(&builder, " AND q.status = $%d", len(args))
	}
	if filter.AuthorID != "" {
		args = append(args, filter.AuthorID)
		fmt.Fprintf(&builder, " AND q.created_by = $%d", len(args))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		fmt.Fprintf(&builder, " AND (LOWER(q.title) LIKE $%d OR LOWER(q.description) LIKE $%d)", len(args), len(args))
	}
	return builder.String(), args
}

func questionOrder(sortBy models.QuestionSort) string {
	switch sortBy {
	case models.SortViews:
		return " ORDER BY q.views DESC, q.created_at DESC"
	case models.SortAnswers:
		return " ORDER BY approved_answers DESC, q.created_at DESC"
	default:
		return " ORDER BY q.created_at DESC"
	}
}

// List returns one page of questions matching the filter with the total count. Trending order
// is not computed here; callers rank the output of ListAll instead.
func (r *QuestionRepository) List(ctx context.Context, filter models.QuestionFilter) ([]models.QuestionDetail, int, error) {
	where, args := questionWhere(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf("%s%s%s LIMIT %d OFFSET %d", questionDetailSelect, where, questionOrder(filter.SortBy), limit, offset)

	var items []models.QuestionDetail
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list questions: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM questions q"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count questions: %w", err)
	}
	return items, total, nil
}

// ListAll returns every question matching the filter, ignoring pagination.
func (r *QuestionRepository) ListAll(ctx context.Context, filter models.QuestionFilter) ([]models.QuestionDetail, error) {
	where, args := questionWhere(filter)
	query := questionDetailSelect + where + questionOrder(models.SortRecent)

	var items []models.QuestionDetail
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list all questions: %w", err)
	}
	return items, nil
}

// UpdateStatus sets the moderation status and returns the updated row.
func (r *QuestionRepository) UpdateStatus(ctx context.Context, id string, status models.ContentStatus) (*models.Question, error) {
	const query = `UPDATE questions SET status = $2, updated_at = $3 WHERE id = $1 RETURNING ` + questionColumns
	var q models.Question
	if err := r.db.GetContext(ctx, &q, query, id, status, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("update question status: %w", err)
	}
	return &q, nil
}

// IncrementViews adds one view in place and returns the new count.
func (r *QuestionRepository) IncrementViews(ctx context.Context, id string) (int64, error) {
	const query = `UPDATE questions SET views = views + 1 WHERE id = $1 RETURNING views`
	var views int64
	if err := r.db.GetContext(ctx, &views, query, id); err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("increment question views: %w", err)
	}
	return views, nil
}

// DeleteRejected removes a rejected question and all of its answers in one transaction.
// It returns the number of answers removed.
func (r *QuestionRepository) DeleteRejected(ctx context.Context, id string) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin delete question tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var status models.ContentStatus
	if err := tx.GetContext(ctx, &status, `SELECT status FROM questions WHERE id = $1 FOR UPDATE`, id); err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("lock question: %w", err)
	}
	if status != models.StatusRejected {
		return 0, ErrQuestionNotRejected
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE question_id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete answers: %w", err)
	}
	removed, _ := res.RowsAffected()
	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE id = $1`, id); err != nil {
		return 0, fmt.Errorf("delete question: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit delete question tx: %w", err)
	}
	return removed, nil
}
