package models

import (
	"fmt"
	"strings"
	"time"
)

// ContentStatus is the moderation state shared by questions and answers.
type ContentStatus string

const (
	StatusPending  ContentStatus = "pending"
	StatusApproved ContentStatus = "approved"
	StatusRejected ContentStatus = "rejected"
)

// ParseStatus converts raw input into a ContentStatus. Values are case-insensitive.
func ParseStatus(raw string) (ContentStatus, error) {
	switch s := ContentStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusPending, StatusApproved, StatusRejected:
		return s, nil
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

// Category is the product line a question belongs to.
type Category string

const (
	CategoryIBML     Category = "ibml"
	CategorySofttrac Category = "softtrac"
	CategoryOmniscan Category = "omniscan"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryIBML, CategorySofttrac, CategoryOmniscan}

// ParseCategory converts raw input into a Category.
func ParseCategory(raw string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(raw))); c {
	case CategoryIBML, CategorySofttrac, CategoryOmniscan:
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q", raw)
}

// Question is a knowledge base question. Views only grow and IsFinal never reverts.
type Question struct {
	ID          string        `db:"id" json:"id"`
	Title       string        `db:"title" json:"title"`
	Description string        `db:"description" json:"description"`
	Category    Category      `db:"category" json:"category"`
	Status      ContentStatus `db:"status" json:"status"`
	CreatedBy   string        `db:"created_by" json:"created_by"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
	Views       int64         `db:"views" json:"views"`
	IsFinal     bool          `db:"is_final" json:"is_final"`
	Attachment  *string       `db:"attachment" json:"attachment,omitempty"`
}

// QuestionDetail joins a question with its author and approved answer count.
type QuestionDetail struct {
	Question
	AuthorName      string `db:"author_name" json:"author_name"`
	ApprovedAnswers int    `db:"approved_answers" json:"approved_answers"`
}

// Answer belongs to exactly one question.
type Answer struct {
	ID         string        `db:"id" json:"id"`
	QuestionID string        `db:"question_id" json:"question_id"`
	AnswerText string        `db:"answer_text" json:"answer_text"`
	Status     ContentStatus `db:"status" json:"status"`
	CreatedBy  string        `db:"created_by" json:"created_by"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updated_at"`
	Attachment *string       `db:"attachment" json:"attachment,omitempty"`
}

// AnswerDetail joins an answer with its author name.
type AnswerDetail struct {
	Answer
	AuthorName string `db:"author_name" json:"author_name"`
}

// QuestionSort names the supported orderings for question listings.
type QuestionSort string

const (
	SortRecent   QuestionSort = "recent"
	SortViews    QuestionSort = "views"
	SortAnswers  QuestionSort = "answers"
	SortTrending QuestionSort = "trending"
)

// QuestionFilter captures filtering criteria for listing questions.
type QuestionFilter struct {
	Category *Category
	Status   *ContentStatus
	AuthorID string
	Search   string
	SortBy   QuestionSort
	Limit    int
	Offset   int
}

// ModerationQueue holds everything waiting on a moderator.
type ModerationQueue struct {
	Questions []QuestionDetail `json:"questions"`
	Answers   []AnswerDetail   `json:"answers"`
}

// AnswerFilter selects answers of a question. When OrAuthorID is set, rows authored by that
// user are included regardless of Status.
type AnswerFilter struct {
	QuestionID string
	Status     *ContentStatus
	OrAuthorID string
}
