package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kb-api/internal/models"
)

var answerDetailColumns = []string{"id", "question_id", "answer_text", "status", "created_by", "created_at", "updated_at", "attachment", "author_name"}

func TestCreateUnlockedInserts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnswerRepository(db)

	mock.ExpectExec("INSERT INTO answers .* WHERE EXISTS \\(SELECT 1 FROM questions WHERE id = \\$2 AND is_final = FALSE\\)").
		WillReturnResult(sqlmock.NewResult(1, 1))

	a := &models.Answer{QuestionID: "q1", AnswerText: "Reseat the roller", Status: models.StatusPending, CreatedBy: "s1"}
	require.NoError(t, repo.CreateUnlocked(context.Background(), a))
	assert.NotEmpty(t, a.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUnlockedOnFinalQuestion(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnswerRepository(db)

	mock.ExpectExec("INSERT INTO answers").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.CreateUnlocked(context.Background(), &models.Answer{QuestionID: "q1", AnswerText: "x", Status: models.StatusApproved, CreatedBy: "a1"})
	assert.ErrorIs(t, err, ErrQuestionLocked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAnswersIncludesOwnPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnswerRepository(db)

	now := time.Now()
	approved := models.StatusApproved
	mock.ExpectQuery("WHERE a.question_id = \\$1 AND \\(a.status = \\$2 OR a.created_by = \\$3\\) ORDER BY a.created_at ASC").
		WithArgs("q1", approved, "s1").
		WillReturnRows(sqlmock.NewRows(answerDetailColumns).
			AddRow("a1", "q1", "ok", "approved", "a9", now, now, nil, "Admin").
			AddRow("a2", "q1", "mine", "pending", "s1", now, now, nil, "Sup"))

	items, err := repo.List(context.Background(), models.AnswerFilter{QuestionID: "q1", Status: &approved, OrAuthorID: "s1"})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAnswersUnfiltered(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnswerRepository(db)

	mock.ExpectQuery("WHERE a.question_id = \\$1 ORDER BY a.created_at ASC").
		WithArgs("q1").
		WillReturnRows(sqlmock.NewRows(answerDetailColumns))

	items, err := repo.List(context.Background(), models.AnswerFilter{QuestionID: "q1"})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAnswerStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnswerRepository(db)

	now := time.Now()
	mock.ExpectQuery("UPDATE answers SET status = \\$2, updated_at = \\$3 WHERE id = \\$1 RETURNING").
		WithArgs("a1", models.StatusApproved, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "question_id", "answer_text", "status", "created_by", "created_at", "updated_at", "attachment"}).
			AddRow("a1", "q1", "ok", "approved", "s1", now, now, nil))

	a, err := repo.UpdateStatus(context.Background(), "a1", models.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, a.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
