package models

import "time"

// Activity actions recorded in the append-only log.
const (
	ActionQuestionSubmit      = "QUESTION_SUBMIT"
	ActionQuestionFinalSubmit = "QUESTION_FINAL_SUBMIT"
	ActionQuestionStatus      = "QUESTION_STATUS"
	ActionQuestionDelete      = "QUESTION_DELETE"
	ActionAnswerSubmit        = "ANSWER_SUBMIT"
	ActionAnswerStatus        = "ANSWER_STATUS"
	ActionUserCreate          = "USER_CREATE"
	ActionUserUpdate          = "USER_UPDATE"
	ActionLogin               = "LOGIN"
)

// ActivityLog is a write-once audit record.
type ActivityLog struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Action    string    `db:"action" json:"action"`
	Detail    string    `db:"detail" json:"detail"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ActivityItemType tags entries of a user's authored content feed.
type ActivityItemType string

const (
	ActivityQuestion ActivityItemType = "question"
	ActivityAnswer   ActivityItemType = "answer"
)

// ActivityItem is one authored question or answer in a user's activity feed.
type ActivityItem struct {
	Type       ActivityItemType `db:"type" json:"type"`
	ID         string           `db:"id" json:"id"`
	QuestionID string           `db:"question_id" json:"question_id"`
	Text       string           `db:"text" json:"text"`
	Status     ContentStatus    `db:"status" json:"status"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
}
