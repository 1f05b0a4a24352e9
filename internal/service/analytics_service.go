package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/kb-api/internal/models"
	appErrors "github.com/noah-isme/kb-api/pkg/errors"
	"github.com/noah-isme/kb-api/pkg/export"
)

const (
	statsCacheKey     = "analytics:stats"
	analyticsCacheKey = "analytics:overview"
	highlightLimit    = 5
)

// AnalyticsRepository describes the persistence layer required by AnalyticsService.
type AnalyticsRepository interface {
	Stats(ctx context.Context) (*models.Stats, error)
}

// ExportFile is a rendered analytics export.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// AnalyticsService serves aggregate counts and ranked highlights with cache integration.
type AnalyticsService struct {
	repo    AnalyticsRepository
	ranking *RankingService
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(repo AnalyticsRepository, ranking *RankingService, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{repo: repo, ranking: ranking, cache: cache, metrics: metrics, logger: logger, now: time.Now}
}

// Stats returns totals and grouped counts. The boolean indicates whether data originated from cache.
func (s *AnalyticsService) Stats(ctx context.Context) (*models.Stats, bool, error) {
	var cached models.Stats
	if s.cache.Get(ctx, statsCacheKey, &cached) {
		return &cached, true, nil
	}

	start := time.Now()
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, false, internalError(err, "failed to compute stats")
	}
	s.metrics.ObserveDBQuery("analytics_stats", time.Since(start))
	fillBuckets(stats)

	s.cache.Set(ctx, statsCacheKey, stats, 0)
	return stats, false, nil
}

// Analytics extends Stats with the top trending and most viewed questions.
func (s *AnalyticsService) Analytics(ctx context.Context) (*models.Analytics, bool, error) {
	var cached models.Analytics
	if s.cache.Get(ctx, analyticsCacheKey, &cached) {
		return &cached, true, nil
	}

	stats, _, err := s.Stats(ctx)
	if err != nil {
		return nil, false, err
	}
	trending, err := s.ranking.Trending(ctx, nil, highlightLimit)
	if err != nil {
		return nil, false, err
	}
	mostViewed, err := s.ranking.MostViewed(ctx, highlightLimit)
	if err != nil {
		return nil, false, err
	}

	result := &models.Analytics{Stats: *stats, Trending: trending, MostViewed: mostViewed}
	s.cache.Set(ctx, analyticsCacheKey, result, 0)
	return result, false, nil
}

// Invalidate drops cached aggregates after a content change.
func (s *AnalyticsService) Invalidate(ctx context.Context) {
	s.cache.Invalidate(ctx, statsCacheKey, analyticsCacheKey)
}

// SystemMetrics returns system instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics() models.SystemMetrics {
	return s.metrics.Snapshot()
}

// Export renders the analytics overview as CSV or PDF.
func (s *AnalyticsService) Export(ctx context.Context, rawFormat string) (*ExportFile, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, validationError(err, "format must be csv or pdf")
	}
	overview, _, err := s.Analytics(ctx)
	if err != nil {
		return nil, err
	}

	data, err := export.For(format).Render(buildAnalyticsDataset(overview))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("kb-analytics-%s.%s", s.now().UTC().Format("20060102-150405"), format),
		ContentType: format.ContentType(),
		Data:        data,
	}, nil
}

// fillBuckets makes every known category, status and role present, zero when absent.
func fillBuckets(stats *models.Stats) {
	ensure := func(m *map[string]int, keys ...string) {
		if *m == nil {
			*m = make(map[string]int, len(keys))
		}
		for _, k := range keys {
			if _, ok := (*m)[k]; !ok {
				(*m)[k] = 0
			}
		}
	}
	categories := make([]string, len(models.Categories))
	for i, c := range models.Categories {
		categories[i] = string(c)
	}
	statuses := []string{string(models.StatusPending), string(models.StatusApproved), string(models.StatusRejected)}

	ensure(&stats.QuestionsByCategory, categories...)
	ensure(&stats.QuestionsByStatus, statuses...)
	ensure(&stats.AnswersByStatus, statuses...)
	ensure(&stats.UsersByRole, string(models.RoleAdmin), string(models.RoleSupervisor), string(models.RoleUser))
}

func buildAnalyticsDataset(a *models.Analytics) export.Dataset {
	rows := [][]string{
		{"totals", "questions", strconv.Itoa(a.TotalQuestions)},
		{"totals", "answers", strconv.Itoa(a.TotalAnswers)},
		{"totals", "users", strconv.Itoa(a.TotalUsers)},
		{"totals", "views", strconv.FormatInt(a.TotalViews, 10)},
	}
	appendGroup := func(section string, m map[string]int) {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			rows = append(rows, []string{section, k, strconv.Itoa(m[k])})
		}
	}
	appendGroup("questions_by_category", a.QuestionsByCategory)
	appendGroup("questions_by_status", a.QuestionsByStatus)
	appendGroup("answers_by_status", a.AnswersByStatus)
	appendGroup("users_by_role", a.UsersByRole)
	for _, q := range a.Trending {
		rows = append(rows, []string{"trending", q.Title, strconv.FormatFloat(q.Score, 'f', 3, 64)})
	}
	for _, q := range a.MostViewed {
		rows = append(rows, []string{"most_viewed", q.Title, strconv.FormatInt(q.Views, 10)})
	}
	return export.Dataset{
		Title:   "Knowledge Base Analytics",
		Headers: []string{"Section", "Key", "Value"},
		Rows:    rows,
	}
}
