// Package debounce gates search-as-you-type requests so keystroke bursts do
// not turn into request storms.
//
// The controller is a small state machine (Idle, Debouncing, Searching,
// Settled). Keystrokes restart the debounce timer; only after the interval
// passes uninterrupted does a search fire. An explicit request-generation
// counter makes the latest request the only one whose result may be applied:
// out-of-order network replies are discarded on arrival, never cancelled at
// the transport level.
package debounce

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for debounced search.
var (
	searchesFiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backoffice_debounced_searches_total",
		Help: "Total debounced searches that actually fired",
	})

	staleResultsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backoffice_stale_results_discarded_total",
		Help: "Total search results discarded because a newer request superseded them",
	})
)

// State of the controller.
type State string

const (
	// StateIdle means no search is pending or displayed.
	StateIdle State = "idle"

	// StateDebouncing means a keystroke arrived and the timer is running.
	StateDebouncing State = "debouncing"

	// StateSearching means the timer elapsed and a request is in flight.
	StateSearching State = "searching"

	// StateSettled means the latest request's result has been applied.
	StateSettled State = "settled"
)

// DefaultInterval is the debounce window.
const DefaultInterval = 450 * time.Millisecond

// Config holds controller configuration.
type Config struct {
	// MinQueryLength below which the search path is never taken.
	MinQueryLength int

	// Interval the input must stay quiet before a search fires.
	Interval time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		MinQueryLength: 2,
		Interval:       DefaultInterval,
	}
}

// Callbacks connect the controller to the data layer.
type Callbacks struct {
	// Search is invoked (in its own goroutine) when the debounce timer
	// elapses. Implementations must pass generation back to Commit when
	// applying the result.
	Search func(ctx context.Context, query string, generation uint64)

	// ResetToDefault is invoked when the query is cleared below the
	// minimum length: the view must immediately show the unfiltered,
	// server-paginated first page again.
	ResetToDefault func(ctx context.Context)
}

// Controller debounces incremental search input.
type Controller struct {
	mu         sync.Mutex
	config     Config
	callbacks  Callbacks
	state      State
	query      string
	timer      *time.Timer
	generation uint64
	closed     bool

	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger
}

// NewController creates a controller. Close must be called on teardown to
// cancel any pending timer.
func NewController(cfg Config, callbacks Callbacks) *Controller {
	if cfg.MinQueryLength <= 0 {
		cfg.MinQueryLength = 2
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		config:    cfg,
		callbacks: callbacks,
		state:     StateIdle,
		ctx:       ctx,
		cancel:    cancel,
		logger:    log.With().Str("component", "debounce-controller").Logger(),
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Generation returns the current request generation.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Input feeds the accumulated query after a keystroke.
//
// At or above the minimum length the controller (re)starts the debounce
// timer; a shorter query cancels any pending search and immediately requests
// the default first page.
func (c *Controller) Input(query string) {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return
	}

	c.query = query

	if len(query) < c.config.MinQueryLength {
		c.stopTimerLocked()
		// Superseding generation: anything still in flight is stale now.
		c.generation++
		wasActive := c.state != StateIdle
		c.state = StateIdle
		c.mu.Unlock()

		if wasActive && c.callbacks.ResetToDefault != nil {
			c.callbacks.ResetToDefault(c.ctx)
		}
		return
	}

	c.stopTimerLocked()
	c.state = StateDebouncing
	c.timer = time.AfterFunc(c.config.Interval, c.fire)
	c.mu.Unlock()
}

// fire runs when the debounce interval elapsed uninterrupted.
func (c *Controller) fire() {
	c.mu.Lock()
	if c.closed || c.state != StateDebouncing {
		c.mu.Unlock()
		return
	}

	c.generation++
	generation := c.generation
	query := c.query
	c.state = StateSearching
	c.mu.Unlock()

	searchesFiredTotal.Inc()
	c.logger.Debug().
		Str("query", query).
		Uint64("generation", generation).
		Msg("Debounce elapsed, firing search")

	if c.callbacks.Search != nil {
		go c.callbacks.Search(c.ctx, query, generation)
	}
}

// Commit applies a search result if and only if it belongs to the most
// recently issued request. Stale results are discarded (last-request-wins).
// It reports whether apply ran.
func (c *Controller) Commit(generation uint64, apply func()) bool {
	c.mu.Lock()
	if c.closed || generation != c.generation {
		c.mu.Unlock()
		staleResultsTotal.Inc()
		c.logger.Debug().
			Uint64("generation", generation).
			Msg("Discarding stale search result")
		return false
	}
	// A newer keystroke may already be debouncing; its timer must still
	// fire, so only a Searching controller settles here.
	if c.state == StateSearching {
		c.state = StateSettled
	}
	c.mu.Unlock()

	if apply != nil {
		apply()
	}
	return true
}

// Close cancels any pending timer and invalidates in-flight requests.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.stopTimerLocked()
	c.generation++
	c.cancel()
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
