package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for exhaustive sweeps.
var (
	sweepPagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backoffice_sweep_pages_total",
		Help: "Total pages fetched by exhaustive sweeps",
	})

	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "backoffice_sweep_duration_seconds",
		Help:    "Duration of exhaustive sweeps in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	sweepTruncatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backoffice_sweep_truncated_total",
		Help: "Total sweeps stopped by the page ceiling with more data pending",
	})
)

// ErrTruncated is returned by CollectAll together with the collected set when
// the page ceiling was hit while the upstream still signalled more data.
// Callers decide whether to show a partial-result warning or discard the set.
var ErrTruncated = errors.New("sweep truncated at page ceiling")

// FetchFunc fetches one page of a collection. Implementations are provided
// by the api client; the collector only drives the page walk.
type FetchFunc[T any] func(ctx context.Context, page int) ([]T, PageInfo, error)

// Config holds collector configuration.
type Config struct {
	// MaxPages is the hard ceiling on sweep iterations. It guards against
	// inconsistent or absent upstream pagination metadata looping forever.
	MaxPages int
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		MaxPages: 150,
	}
}

// Collector materializes a full paginated collection in memory.
type Collector[T any] struct {
	config Config

	// key extracts a stable identity used for duplicate suppression.
	key func(T) string
}

// NewCollector creates a collector. key may be nil, in which case no
// duplicate suppression is performed.
func NewCollector[T any](cfg Config, key func(T) string) *Collector[T] {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 150
	}
	return &Collector[T]{config: cfg, key: key}
}

// CollectAll fetches every page of a collection strictly sequentially and
// returns the concatenation of all pages' items.
//
// Any page failure fails the whole sweep: downstream search and aggregation
// assume a complete set, so partial results are never returned silently.
// The one exception is the page ceiling, where the collected set is returned
// alongside ErrTruncated.
func (c *Collector[T]) CollectAll(ctx context.Context, fetch FetchFunc[T]) ([]T, error) {
	start := time.Now()
	defer func() {
		sweepDuration.Observe(time.Since(start).Seconds())
	}()

	var all []T
	seen := make(map[string]struct{})
	page := 1

	for iteration := 1; ; iteration++ {
		if iteration > c.config.MaxPages {
			sweepTruncatedTotal.Inc()
			log.Warn().
				Int("max_pages", c.config.MaxPages).
				Int("collected", len(all)).
				Msg("Sweep hit page ceiling with more data pending")
			return all, fmt.Errorf("%w after %d pages", ErrTruncated, c.config.MaxPages)
		}

		items, info, err := fetch(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}
		sweepPagesTotal.Inc()

		for _, item := range items {
			if c.key != nil {
				k := c.key(item)
				if _, dup := seen[k]; dup {
					continue
				}
				seen[k] = struct{}{}
			}
			all = append(all, item)
		}

		log.Debug().
			Int("page", page).
			Int("items", len(items)).
			Int("collected", len(all)).
			Bool("has_next", info.HasNext).
			Msg("Sweep page collected")

		if !info.HasNext {
			break
		}
		page = info.NextPage(page)
	}

	log.Info().
		Int("pages", page).
		Int("records", len(all)).
		Dur("duration", time.Since(start)).
		Msg("Sweep complete")

	return all, nil
}
