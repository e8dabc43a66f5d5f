// Package view exposes per-collection read models to the UI layer.
//
// A Store answers the one question a list view asks ({items, pagination,
// loading, error}) and hides how the answer was produced: straight
// server-paginated fetches (cached) below the search threshold, exhaustive
// sweep plus client-side search above it, and strategy-chain mutations with
// synchronous cache invalidation.
package view

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/fiscaliza/backoffice-client/pkg/aggregate"
	"github.com/fiscaliza/backoffice-client/pkg/api"
	"github.com/fiscaliza/backoffice-client/pkg/budget"
	"github.com/fiscaliza/backoffice-client/pkg/cache"
	"github.com/fiscaliza/backoffice-client/pkg/debounce"
	"github.com/fiscaliza/backoffice-client/pkg/mutation"
	"github.com/fiscaliza/backoffice-client/pkg/pagination"
	"github.com/fiscaliza/backoffice-client/pkg/search"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrSweepBlocked is returned when the upstream failure budget is critical
// and no new exhaustive sweep may start.
var ErrSweepBlocked = errors.New("sweep blocked: upstream failure budget critical")

// Snapshot is the read model a list view renders.
type Snapshot struct {
	Items      []api.Record        `json:"items"`
	Pagination pagination.PageInfo `json:"pagination"`
	Loading    bool                `json:"loading"`
	Error      string              `json:"error,omitempty"`

	// Truncated is set when the last sweep hit the page ceiling: the
	// view should warn that results may be partial.
	Truncated bool `json:"truncated,omitempty"`
}

// Config holds store configuration for one collection.
type Config struct {
	// Collection is the upstream collection name.
	Collection string

	// ListOptions narrow plain listings (type filter, items key).
	ListOptions api.ListOptions

	// PageSize used for artificial pagination of filtered sets.
	PageSize int

	// WindowDays for the stats aggregation.
	WindowDays int

	// Sweep bounds the exhaustive collector.
	Sweep pagination.Config

	// Debounce configures the incremental search controller.
	Debounce debounce.Config

	// AllowSimulated enables the terminal no-op mutation strategy.
	// Keep false in production.
	AllowSimulated bool
}

// DefaultConfig returns a safe default configuration for a collection.
func DefaultConfig(collection string) Config {
	return Config{
		Collection: collection,
		PageSize:   search.DefaultPageSize,
		WindowDays: aggregate.DefaultWindowDays,
		Sweep:      pagination.DefaultConfig(),
		Debounce:   debounce.DefaultConfig(),
	}
}

// Store is the per-collection read model.
type Store struct {
	client    *api.Client
	cache     *cache.Manager
	budget    *budget.Tracker
	collector *pagination.Collector[api.Record]
	engine    *search.Engine
	executor  *mutation.Executor
	debouncer *debounce.Controller
	config    Config
	logger    zerolog.Logger

	mu       sync.Mutex
	snapshot Snapshot
	query    string
}

// NewStore creates a read model for one collection. cacheManager and tracker
// may be nil, disabling caching and sweep gating respectively.
func NewStore(client *api.Client, cacheManager *cache.Manager, tracker *budget.Tracker, cfg Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("api client is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("collection is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = search.DefaultPageSize
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = aggregate.DefaultWindowDays
	}

	s := &Store{
		client: client,
		cache:  cacheManager,
		budget: tracker,
		collector: pagination.NewCollector[api.Record](cfg.Sweep, func(r api.Record) string {
			return r.ID
		}),
		engine:   search.NewEngine(cfg.Debounce.MinQueryLength, nil),
		executor: mutation.NewExecutor(),
		config:   cfg,
		logger: log.With().
			Str("component", "view-store").
			Str("collection", cfg.Collection).
			Logger(),
	}

	s.debouncer = debounce.NewController(cfg.Debounce, debounce.Callbacks{
		Search: s.searchFired,
		ResetToDefault: func(ctx context.Context) {
			if _, err := s.Load(ctx, 1); err != nil {
				s.logger.Warn().Err(err).Msg("Default page reload after query clear failed")
			}
		},
	})

	return s, nil
}

// Snapshot returns a copy of the current read model.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Load fetches one server-paginated page of the collection, consulting the
// query cache first. This is the ordinary path below the search threshold.
func (s *Store) Load(ctx context.Context, page int) (Snapshot, error) {
	if page < 1 {
		page = 1
	}

	s.setLoading(true)
	defer s.setLoading(false)

	key := cache.QueryKey{
		Collection: s.config.Collection,
		Page:       page,
		Filters:    s.filters(),
	}

	if s.cache != nil {
		if entry, err := s.cache.Get(ctx, key); err == nil {
			var cached api.Page
			if err := json.Unmarshal(entry.Data, &cached); err == nil {
				return s.apply(cached.Items, cached.Info, false), nil
			}
		} else if err != cache.ErrCacheMiss {
			s.logger.Warn().Err(err).Msg("Cache get error")
		}
	}

	fetched, err := s.client.ListPage(ctx, s.config.Collection, page, s.config.ListOptions)
	if err != nil {
		s.recordUpstream(ctx, err)
		return s.fail(err), err
	}
	s.recordUpstream(ctx, nil)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, fetched); err != nil {
			s.logger.Warn().Err(err).Msg("Cache set error")
		}
	}

	return s.apply(fetched.Items, fetched.Info, false), nil
}

// SetQuery feeds a keystroke's accumulated query into the debounced search
// controller. The snapshot updates asynchronously when the search settles.
func (s *Store) SetQuery(query string) {
	s.mu.Lock()
	s.query = query
	s.mu.Unlock()
	s.debouncer.Input(query)
}

// SearchNow performs the sweep-and-filter search synchronously, bypassing
// the debounce timer. Used by the proxy facade where the query arrives as a
// single request rather than keystrokes.
func (s *Store) SearchNow(ctx context.Context, query string, page int) (Snapshot, error) {
	if !s.engine.ShouldSearch(query) {
		return s.Load(ctx, page)
	}

	s.setLoading(true)
	defer s.setLoading(false)

	result, err := s.runSearch(ctx, query, page)
	if err != nil {
		return s.fail(err), err
	}

	return s.apply(result.Items, result.Info, result.Truncated), nil
}

// searchResult is the cached form of one artificial page of a filtered set.
type searchResult struct {
	Items     []api.Record        `json:"items"`
	Info      pagination.PageInfo `json:"pagination"`
	Truncated bool                `json:"truncated"`
}

// runSearch produces one artificial page of the filtered collection. The
// per-query cache is consulted first; a fresh sweep's page is written back
// under the (collection, page, search term, filters) key so repeated
// identical queries within the TTL never re-sweep. Collection invalidation
// after a mutation covers these keys too.
func (s *Store) runSearch(ctx context.Context, query string, page int) (searchResult, error) {
	if page < 1 {
		page = 1
	}

	key := cache.QueryKey{
		Collection: s.config.Collection,
		Page:       page,
		Search:     strings.TrimSpace(query),
		Filters:    s.filters(),
	}

	if s.cache != nil {
		if entry, err := s.cache.Get(ctx, key); err == nil {
			var cached searchResult
			if err := json.Unmarshal(entry.Data, &cached); err == nil {
				return cached, nil
			}
		} else if err != cache.ErrCacheMiss {
			s.logger.Warn().Err(err).Msg("Cache get error")
		}
	}

	records, truncated, err := s.sweep(ctx)
	if err != nil {
		return searchResult{}, err
	}

	filtered := s.engine.Search(records, query, s.config.PageSize, page)
	result := searchResult{
		Items:     filtered.Items,
		Info:      filtered.Info,
		Truncated: truncated,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, result); err != nil {
			s.logger.Warn().Err(err).Msg("Cache set error")
		}
	}

	return result, nil
}

// Stats aggregates the full collection into the trailing daily window.
func (s *Store) Stats(ctx context.Context, now time.Time) ([]aggregate.TimeBucket, error) {
	key := cache.QueryKey{
		Collection: s.config.Collection,
		Filters:    url.Values{"agg": []string{fmt.Sprintf("%dd", s.config.WindowDays)}},
	}

	if s.cache != nil {
		if entry, err := s.cache.Get(ctx, key); err == nil {
			var buckets []aggregate.TimeBucket
			if err := json.Unmarshal(entry.Data, &buckets); err == nil {
				return buckets, nil
			}
		} else if err != cache.ErrCacheMiss {
			s.logger.Warn().Err(err).Msg("Cache get error")
		}
	}

	records, _, err := s.sweep(ctx)
	if err != nil {
		return nil, err
	}

	buckets := aggregate.Buckets(records, s.config.WindowDays, now)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, buckets); err != nil {
			s.logger.Warn().Err(err).Msg("Cache set error")
		}
	}

	return buckets, nil
}

// Mutate removes (or deactivates, depending on what the backend supports)
// one record via the strategy chain, then invalidates the collection's cache
// entries synchronously.
func (s *Store) Mutate(ctx context.Context, id string) (*mutation.Result, error) {
	strategies := mutation.DeleteStrategies(s.client, s.config.Collection, id, s.config.AllowSimulated)

	result, err := s.executor.Run(ctx, "delete "+s.config.Collection, strategies)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && !result.Simulated {
		if err := s.cache.InvalidateCollection(ctx, s.config.Collection); err != nil {
			s.logger.Warn().Err(err).Msg("Cache invalidation after mutation failed")
		}
	}

	return result, nil
}

// Create adds a record via the body-shape adaptation chain.
func (s *Store) Create(ctx context.Context, payload any) (*mutation.Result, error) {
	strategies := mutation.CreateStrategies(s.client, s.config.Collection, payload, s.config.AllowSimulated)

	result, err := s.executor.Run(ctx, "create "+s.config.Collection, strategies)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && !result.Simulated {
		if err := s.cache.InvalidateCollection(ctx, s.config.Collection); err != nil {
			s.logger.Warn().Err(err).Msg("Cache invalidation after mutation failed")
		}
	}

	return result, nil
}

// Close tears down the debounce controller.
func (s *Store) Close() {
	s.debouncer.Close()
}

// searchFired is the debounce controller's callback: it runs the cached
// search and commits the result only if no newer request superseded it.
func (s *Store) searchFired(ctx context.Context, query string, generation uint64) {
	result, err := s.runSearch(ctx, query, 1)
	if err != nil {
		s.debouncer.Commit(generation, func() {
			s.fail(err)
		})
		return
	}

	s.debouncer.Commit(generation, func() {
		s.apply(result.Items, result.Info, result.Truncated)
	})
}

// sweep collects the full collection, gated by the failure budget.
func (s *Store) sweep(ctx context.Context) ([]api.Record, bool, error) {
	sweepID := uuid.NewString()

	if s.budget != nil {
		allowed, err := s.budget.ShouldAllowSweep(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Failure budget check failed, allowing sweep")
		} else if !allowed {
			return nil, false, ErrSweepBlocked
		}
	}

	s.logger.Debug().Str("sweep_id", sweepID).Msg("Starting exhaustive sweep")

	records, err := s.collector.CollectAll(ctx, s.client.PageFetcher(s.config.Collection, s.config.ListOptions))
	if err != nil {
		if errors.Is(err, pagination.ErrTruncated) {
			s.logger.Warn().
				Str("sweep_id", sweepID).
				Int("records", len(records)).
				Msg("Sweep truncated, using partial set with warning")
			s.recordUpstream(ctx, nil)
			return records, true, nil
		}
		s.recordUpstream(ctx, err)
		return nil, false, err
	}

	s.recordUpstream(ctx, nil)
	return records, false, nil
}

// recordUpstream feeds the shared failure budget.
func (s *Store) recordUpstream(ctx context.Context, err error) {
	if s.budget == nil {
		return
	}
	if err != nil {
		if budgetErr := s.budget.RecordFailure(ctx); budgetErr != nil {
			s.logger.Warn().Err(budgetErr).Msg("Failure budget update failed")
		}
		return
	}
	if budgetErr := s.budget.RecordSuccess(ctx); budgetErr != nil {
		s.logger.Warn().Err(budgetErr).Msg("Failure budget reset failed")
	}
}

func (s *Store) filters() url.Values {
	filters := url.Values{}
	if s.config.ListOptions.Type != "" {
		filters.Set("type", s.config.ListOptions.Type)
	}
	return filters
}

func (s *Store) setLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Loading = loading
}

func (s *Store) apply(items []api.Record, info pagination.PageInfo, truncated bool) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if items == nil {
		items = []api.Record{}
	}
	s.snapshot = Snapshot{
		Items:      items,
		Pagination: info,
		Loading:    s.snapshot.Loading,
		Truncated:  truncated,
	}
	return s.snapshot
}

func (s *Store) fail(err error) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Error = err.Error()
	return s.snapshot
}
