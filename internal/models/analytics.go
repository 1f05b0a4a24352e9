package models

import "time"

// CountBucket is one row of a grouped count.
type CountBucket struct {
	Key   string `db:"key" json:"key"`
	Count int    `db:"count" json:"count"`
}

// Stats aggregates knowledge base counts.
type Stats struct {
	TotalQuestions      int            `json:"total_questions"`
	TotalAnswers        int            `json:"total_answers"`
	TotalUsers          int            `json:"total_users"`
	TotalViews          int64          `json:"total_views"`
	QuestionsByCategory map[string]int `json:"questions_by_category"`
	QuestionsByStatus   map[string]int `json:"questions_by_status"`
	AnswersByStatus     map[string]int `json:"answers_by_status"`
	UsersByRole         map[string]int `json:"users_by_role"`
	GeneratedAt         time.Time      `json:"generated_at"`
}

// RankedQuestion pairs a question with its trending score.
type RankedQuestion struct {
	QuestionDetail
	Score float64 `json:"score"`
}

// Analytics extends Stats with ranked highlights.
type Analytics struct {
	Stats
	Trending   []RankedQuestion `json:"trending"`
	MostViewed []QuestionDetail `json:"most_viewed"`
}

// SystemMetrics exposes a lightweight snapshot of process instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"avg_request_duration_ms"`
	ModerationActions        uint64    `json:"moderation_actions"`
	NotificationsFailed      uint64    `json:"notifications_failed"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
