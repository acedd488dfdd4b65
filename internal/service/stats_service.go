package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/seventic/ops-api/internal/models"
	appErrors "github.com/seventic/ops-api/pkg/errors"
)

type campaignStatsFetcher interface {
	CampaignStats(ctx context.Context, campaignUID string) (*models.CampaignStats, error)
}

// StatsService serves campaign statistics, memoized through the in-memory
// stats cache so repeated dashboard loads within the TTL reuse one upstream
// fetch.
type StatsService struct {
	fetcher campaignStatsFetcher
	cache   *StatsCache
	metrics *MetricsService
	logger  *zap.Logger
}

// NewStatsService constructs a StatsService.
func NewStatsService(fetcher campaignStatsFetcher, cache *StatsCache, metrics *MetricsService, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = NewStatsCache(StatsCacheOptions{})
	}
	return &StatsService{fetcher: fetcher, cache: cache, metrics: metrics, logger: logger}
}

// CampaignStats returns the stats for a campaign, from cache when fresh.
// forceRefresh bypasses the cached copy and re-fetches from upstream.
func (s *StatsService) CampaignStats(ctx context.Context, campaignUID string, forceRefresh bool) (*models.CampaignStats, error) {
	if campaignUID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "campaign uid is required")
	}

	if !forceRefresh {
		if cached, ok := s.cache.Get(campaignUID); ok {
			s.metrics.RecordStatsFetch("hit")
			return &cached, nil
		}
	}

	stats, err := s.fetcher.CampaignStats(ctx, campaignUID)
	if err != nil {
		s.metrics.RecordStatsFetch("error")
		return nil, err
	}

	s.cache.Put(campaignUID, *stats)
	s.metrics.RecordStatsFetch("fetch")
	return stats, nil
}

// Invalidate drops the cached snapshot for a campaign.
func (s *StatsService) Invalidate(campaignUID string) {
	s.cache.Invalidate(campaignUID)
}

// CacheSize reports the number of cached snapshots, fresh or expired.
func (s *StatsService) CacheSize() int {
	return s.cache.Len()
}
