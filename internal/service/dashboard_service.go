package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seventic/ops-api/internal/models"
	appErrors "github.com/seventic/ops-api/pkg/errors"
)

type dashboardRequestRepository interface {
	List(ctx context.Context, filter models.RequestFilter) ([]models.RequestRecord, error)
}

type displayNameResolver interface {
	DisplayNames(ctx context.Context, ids []string) (map[string]string, error)
}

// DashboardResult is the computed dashboard state for one viewer and view.
type DashboardResult struct {
	View        View             `json:"view"`
	Requests    []models.Request `json:"requests"`
	Counters    RequestCounters  `json:"counters"`
	GeneratedAt time.Time        `json:"generated_at"`
	CacheHit    bool             `json:"-"`
}

// DashboardService assembles the role-aware request dashboard. The heavy
// lifting is delegated to the normalizer and the filter engine; this layer
// adds persistence, display names and optional Redis caching.
type DashboardService struct {
	requests   dashboardRequestRepository
	users      displayNameResolver
	normalizer *Normalizer
	engine     *FilterEngine
	cache      *CacheService
	cacheTTL   time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(requests dashboardRequestRepository, users displayNameResolver, normalizer *Normalizer, engine *FilterEngine, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine == nil {
		engine = NewFilterEngine()
	}
	if cacheTTL <= 0 {
		cacheTTL = 2 * time.Minute
	}
	return &DashboardService{
		requests:   requests,
		users:      users,
		normalizer: normalizer,
		engine:     engine,
		cache:      cache,
		cacheTTL:   cacheTTL,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Load returns the dashboard for one viewer. When refresh is false the cached
// copy is served if present; any write to the request population invalidates
// the dashboard keyspace.
func (s *DashboardService) Load(ctx context.Context, viewer Viewer, view View, filter models.RequestFilter, special SpecialFilters, refresh bool) (*DashboardResult, error) {
	if !viewer.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}

	key := s.cacheKey(viewer, view, filter, special)
	if !refresh && s.cache.Enabled() {
		var cached DashboardResult
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			cached.CacheHit = true
			return &cached, nil
		}
	}

	recs, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requests")
	}

	normalized := s.normalizer.NormalizeAll(ctx, recs)
	if viewer.Role != models.RoleAdmin {
		for i := range normalized {
			normalized[i].DetailsCorrupted = false
		}
	}

	visible, counters := s.engine.Filter(normalized, viewer, special, view)
	s.attachDisplayNames(ctx, visible)

	result := &DashboardResult{
		View:        view,
		Requests:    visible,
		Counters:    counters,
		GeneratedAt: s.now(),
	}

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, key, result, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache dashboard", zap.String("key", key), zap.Error(err))
		}
	}

	return result, nil
}

// attachDisplayNames resolves creator and assignee names in one batch lookup.
// A lookup failure degrades to IDs only; the dashboard still renders.
func (s *DashboardService) attachDisplayNames(ctx context.Context, requests []models.Request) {
	if s.users == nil || len(requests) == 0 {
		return
	}

	seen := map[string]struct{}{}
	var ids []string
	for i := range requests {
		for _, id := range []string{requests[i].CreatedBy, requests[i].AssignedTo} {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return
	}

	names, err := s.users.DisplayNames(ctx, ids)
	if err != nil {
		s.logger.Warn("failed to resolve display names", zap.Error(err))
		return
	}

	for i := range requests {
		requests[i].CreatedByName = names[requests[i].CreatedBy]
		if requests[i].AssignedTo != "" {
			requests[i].AssignedToName = names[requests[i].AssignedTo]
		}
	}
}

func (s *DashboardService) cacheKey(viewer Viewer, view View, filter models.RequestFilter, special SpecialFilters) string {
	var types []string
	for _, t := range filter.Types {
		types = append(types, string(t))
	}
	since := ""
	if filter.Since != nil {
		since = filter.Since.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("dashboard:%s:%s:%s:t=%s:m=%s:cb=%s:at=%s:sc=%s:sa=%s:u=%t:since=%s",
		viewer.Role, viewer.ID, view,
		strings.Join(types, ","), filter.MissionID, filter.CreatedBy, filter.AssignedTo,
		special.CreatedBy, special.AssignedTo, special.UnassignedOnly, since)
}
