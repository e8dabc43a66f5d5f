package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for failure budget tracking.
var (
	consecutiveFailures = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "backoffice_upstream_consecutive_failures",
		Help: "Consecutive upstream failures since the last success",
	})

	sweepBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backoffice_sweep_blocks_total",
		Help: "Total number of sweeps blocked due to critical failure budget",
	})

	sweepThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backoffice_sweep_throttles_total",
		Help: "Total number of sweeps throttled due to failure budget warning",
	})
)

// Tracker monitors upstream failures and gates exhaustive sweeps.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewTracker creates a new failure budget tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
	}
}

// GetState retrieves the current failure budget state from Redis.
// Returns a default healthy state if no data exists.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	failures, err := t.redis.Get(ctx, RedisKeyFailures).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get consecutive failures: %w", err)
	}
	if err == redis.Nil {
		t.logger.Debug().Msg("No failure budget state in Redis, returning default healthy state")
		return &State{IsHealthy: true}, nil
	}

	lastFailureUnix, err := t.redis.Get(ctx, RedisKeyLastFailure).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get last failure: %w", err)
	}

	state := &State{
		ConsecutiveFailures: failures,
	}
	if lastFailureUnix > 0 {
		state.LastFailure = time.Unix(lastFailureUnix, 0)
	}
	state.UpdateHealth()

	return state, nil
}

// RecordFailure increments the consecutive failure counter.
func (t *Tracker) RecordFailure(ctx context.Context) error {
	pipe := t.redis.Pipeline()
	incr := pipe.Incr(ctx, RedisKeyFailures)
	pipe.Set(ctx, RedisKeyLastFailure, time.Now().Unix(), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record failure: %w", err)
	}

	failures := int(incr.Val())
	consecutiveFailures.Set(float64(failures))

	logEvent := t.logger.Warn().Int("consecutive_failures", failures)
	if failures >= FailureThresholdCritical {
		logEvent = t.logger.Error().Int("consecutive_failures", failures)
		logEvent.Msg("Upstream failure budget CRITICAL - sweeps will be blocked")
	} else if failures >= FailureThresholdWarning {
		logEvent.Msg("Upstream failure budget WARNING - sweeps will be throttled")
	} else {
		logEvent.Msg("Upstream failure recorded")
	}

	return nil
}

// RecordSuccess resets the failure counter.
func (t *Tracker) RecordSuccess(ctx context.Context) error {
	pipe := t.redis.Pipeline()
	pipe.Del(ctx, RedisKeyFailures)
	pipe.Del(ctx, RedisKeyLastFailure)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record success: %w", err)
	}

	consecutiveFailures.Set(0)
	return nil
}

// ShouldAllowSweep checks if an exhaustive sweep may start.
// Returns false when the failure budget is critical. In the warning band it
// returns true after a short throttle sleep. Single-page fetches are never
// gated; only the sweep path goes through here.
func (t *Tracker) ShouldAllowSweep(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)
	if err != nil {
		return false, fmt.Errorf("get failure budget state: %w", err)
	}

	if state.NeedsCriticalBlock() {
		t.logger.Error().
			Int("consecutive_failures", state.ConsecutiveFailures).
			Time("last_failure", state.LastFailure).
			Msg("Upstream failure budget critical - blocking sweep")

		sweepBlocksTotal.Inc()
		return false, nil
	}

	if state.NeedsThrottling() {
		t.logger.Warn().
			Int("consecutive_failures", state.ConsecutiveFailures).
			Msg("Upstream failure budget warning - throttling sweep")

		sweepThrottlesTotal.Inc()
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}

	return true, nil
}
