package service

import (
	"context"
	"sort"
	"time"

	"github.com/noah-isme/kb-api/internal/models"
	appErrors "github.com/noah-isme/kb-api/pkg/errors"
)

const maxListLimit = 100

type rankingSource interface {
	ListAll(ctx context.Context, filter models.QuestionFilter) ([]models.QuestionDetail, error)
}

// TrendingScore computes (views + 2*approvedAnswers) / (hoursSinceCreated + 1).
// Negative ages, which only occur with clock skew, count as zero.
func TrendingScore(views int64, approvedAnswers int, age time.Duration) float64 {
	hours := age.Hours()
	if hours < 0 {
		hours = 0
	}
	return (float64(views) + 2*float64(approvedAnswers)) / (hours + 1)
}

// RankingService derives orderings over approved questions. Nothing it computes is stored.
type RankingService struct {
	source       rankingSource
	defaultLimit int
	now          func() time.Time
}

// NewRankingService builds a ranking service. defaultLimit applies when callers pass no limit.
func NewRankingService(source rankingSource, defaultLimit int) *RankingService {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &RankingService{source: source, defaultLimit: defaultLimit, now: time.Now}
}

// Rank scores items and orders them by score, newest first on ties.
func (s *RankingService) Rank(items []models.QuestionDetail) []models.RankedQuestion {
	now := s.now()
	ranked := make([]models.RankedQuestion, len(items))
	for i, item := range items {
		ranked[i] = models.RankedQuestion{
			QuestionDetail: item,
			Score:          TrendingScore(item.Views, item.ApprovedAnswers, now.Sub(item.CreatedAt)),
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].CreatedAt.After(ranked[j].CreatedAt)
	})
	return ranked
}

// Order sorts items in place by one of the simple comparators. Trending falls through to Rank.
func (s *RankingService) Order(items []models.QuestionDetail, by models.QuestionSort) {
	switch by {
	case models.SortTrending:
		ranked := s.Rank(items)
		for i := range ranked {
			items[i] = ranked[i].QuestionDetail
		}
	case models.SortViews:
		sort.SliceStable(items, func(i, j int) bool {
			if items[i].Views != items[j].Views {
				return items[i].Views > items[j].Views
			}
			return items[i].CreatedAt.After(items[j].CreatedAt)
		})
	case models.SortAnswers:
		sort.SliceStable(items, func(i, j int) bool {
			if items[i].ApprovedAnswers != items[j].ApprovedAnswers {
				return items[i].ApprovedAnswers > items[j].ApprovedAnswers
			}
			return items[i].CreatedAt.After(items[j].CreatedAt)
		})
	default:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		})
	}
}

// Trending returns the top approved questions by trending score, optionally within a category.
func (s *RankingService) Trending(ctx context.Context, category *models.Category, limit int) ([]models.RankedQuestion, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	approved := models.StatusApproved
	items, err := s.source.ListAll(ctx, models.QuestionFilter{Category: category, Status: &approved})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions for ranking")
	}
	ranked := s.Rank(items)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// MostViewed returns the top approved questions by views.
func (s *RankingService) MostViewed(ctx context.Context, limit int) ([]models.QuestionDetail, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	approved := models.StatusApproved
	items, err := s.source.ListAll(ctx, models.QuestionFilter{Status: &approved})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions for ranking")
	}
	s.Order(items, models.SortViews)
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
