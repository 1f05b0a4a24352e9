package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/kb-api/internal/models"
)

// AnalyticsRepository exposes read-only aggregate queries over the content store.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

type totalsRow struct {
	Questions int   `db:"questions"`
	Answers   int   `db:"answers"`
	Users     int   `db:"users"`
	Views     int64 `db:"views"`
}

// Stats computes totals and grouped counts.
func (r *AnalyticsRepository) Stats(ctx context.Context) (*models.Stats, error) {
	const totalsQuery = `SELECT
	(SELECT COUNT(*) FROM questions) AS questions,
	(SELECT COUNT(*) FROM answers) AS answers,
	(SELECT COUNT(*) FROM users) AS users,
	(SELECT COALESCE(SUM(views), 0) FROM questions) AS views`

	var totals totalsRow
	if err := r.db.GetContext(ctx, &totals, totalsQuery); err != nil {
		return nil, fmt.Errorf("query totals: %w", err)
	}

	stats := &models.Stats{
		TotalQuestions: totals.Questions,
		TotalAnswers:   totals.Answers,
		TotalUsers:     totals.Users,
		TotalViews:     totals.Views,
		GeneratedAt:    time.Now().UTC(),
	}

	groups := []struct {
		query string
		dest  *map[string]int
	}{
		{`SELECT category AS key, COUNT(*) AS count FROM questions GROUP BY category ORDER BY category`, &stats.QuestionsByCategory},
		{`SELECT status AS key, COUNT(*) AS count FROM questions GROUP BY status ORDER BY status`, &stats.QuestionsByStatus},
		{`SELECT status AS key, COUNT(*) AS count FROM answers GROUP BY status ORDER BY status`, &stats.AnswersByStatus},
		{`SELECT role AS key, COUNT(*) AS count FROM users GROUP BY role ORDER BY role`, &stats.UsersByRole},
	}
	for _, g := range groups {
		var buckets []models.CountBucket
		if err := r.db.SelectContext(ctx, &buckets, g.query); err != nil {
			return nil, fmt.Errorf("query grouped counts: %w", err)
		}
		m := make(map[string]int, len(buckets))
		for _, b := range buckets {
			m[b.Key] = b.Count
		}
		*g.dest = m
	}
	return stats, nil
}
