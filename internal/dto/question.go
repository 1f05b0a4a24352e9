package dto

import "github.com/noah-isme/kb-api/internal/models"

// CreateQuestionRequest is the payload for submitting a question.
type CreateQuestionRequest struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description string  `json:"description" validate:"required"`
	Category    string  `json:"category" validate:"required,oneof=ibml softtrac omniscan"`
	Attachment  *string `json:"attachment" validate:"omitempty,max=255"`
}

// CreateAnswerRequest is the payload for answering a question.
type CreateAnswerRequest struct {
	AnswerText string  `json:"answer_text" validate:"required"`
	Attachment *string `json:"attachment" validate:"omitempty,max=255"`
}

// PostFinalRequest creates an approved question together with its authoritative answer.
type PostFinalRequest struct {
	CreateQuestionRequest
	AnswerText       string  `json:"answer_text" validate:"required"`
	AnswerAttachment *string `json:"answer_attachment" validate:"omitempty,max=255"`
}

// UpdateStatusRequest moves a question or answer to another moderation state.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// ListQuestionsQuery captures query parameters for question listings.
type ListQuestionsQuery struct {
	Category string `form:"category"`
	Status   string `form:"status"`
	Search   string `form:"search"`
	SortBy   string `form:"sortBy"`
	AuthorID string `form:"authorId"`
	Limit    int    `form:"limit"`
	Offset   int    `form:"offset"`
}

// PostFinalResponse returns both records created by the combined path.
type PostFinalResponse struct {
	Question *models.Question `json:"question"`
	Answer   *models.Answer   `json:"answer"`
}
