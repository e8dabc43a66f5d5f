// Package mutation executes a logical mutation against an API whose exact
// supported verb and route are not guaranteed.
//
// The back office exposes different mutation routes per deployment
// (PUT .../deactivate, DELETE by path, DELETE by query, POST .../delete) and
// none is discoverable except by attempting it. The executor runs an ordered
// strategy chain, classifies each failure, and falls back until one strategy
// succeeds or the chain is exhausted.
package mutation

import (
	"context"
	"fmt"

	"github.com/fiscaliza/backoffice-client/pkg/api"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for mutation chains.
var (
	mutationAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backoffice_mutation_attempts_total",
		Help: "Total mutation strategy attempts by outcome",
	}, []string{"outcome"})

	mutationFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backoffice_mutation_fallbacks_total",
		Help: "Total times a mutation advanced to a fallback strategy",
	})

	mutationSimulatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backoffice_mutation_simulated_total",
		Help: "Total mutations resolved by the simulated terminal strategy",
	})
)

// Outcome classifies one strategy attempt.
type Outcome string

const (
	// OutcomeSuccess means the strategy completed the mutation.
	OutcomeSuccess Outcome = "success"

	// OutcomeRetryableFailure means the route or verb does not exist
	// (404/405/501); the chain advances silently.
	OutcomeRetryableFailure Outcome = "retryable_failure"

	// OutcomeFatalFailure means a real error (validation, server fault).
	// It is recorded for reporting, but the chain still advances: one
	// endpoint's unrelated failure must not block an alternate route.
	OutcomeFatalFailure Outcome = "fatal_failure"
)

// Strategy is one candidate operation for a logical mutation.
type Strategy struct {
	// Name identifies the strategy for UX messaging ("deactivated",
	// "deleted", "simulated").
	Name string

	// Do performs the attempt.
	Do func(ctx context.Context) error

	// Simulated marks a terminal no-op strategy that succeeds without
	// contacting the server. Non-production only.
	Simulated bool
}

// Attempt records one executed strategy for the duration of a run.
type Attempt struct {
	StrategyIndex int
	Name          string
	Outcome       Outcome
	Err           error
}

// Result reports which strategy completed the mutation.
type Result struct {
	// StrategyIndex and StrategyName identify the succeeding strategy.
	StrategyIndex int
	StrategyName  string

	// Simulated is true when the terminal no-op strategy resolved the
	// chain. The UI must present this distinctly from a genuine mutation.
	Simulated bool

	// Attempts lists every strategy executed, in order.
	Attempts []Attempt

	// RealErrors collects the fatal (non-route) failures encountered on
	// the way, for diagnostics even when a later strategy succeeded.
	RealErrors []error
}

// Executor runs mutation strategy chains.
type Executor struct {
	logger zerolog.Logger
}

// NewExecutor creates a mutation executor.
func NewExecutor() *Executor {
	return &Executor{
		logger: log.With().Str("component", "mutation-executor").Logger(),
	}
}

// Run executes the chain in order until a strategy succeeds.
//
// Endpoint-unsupported failures (404/405/501) advance the chain silently.
// Any other failure is collected as a real error and the chain still
// advances. If every strategy fails, the last error is surfaced.
func (e *Executor) Run(ctx context.Context, operation string, strategies []Strategy) (*Result, error) {
	if len(strategies) == 0 {
		return nil, fmt.Errorf("no strategies for operation %q", operation)
	}

	runID := uuid.NewString()
	logger := e.logger.With().
		Str("operation", operation).
		Str("run_id", runID).
		Logger()

	result := &Result{}
	var lastErr error

	for i, strategy := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", api.ErrContextCancelled, err)
		}

		err := strategy.Do(ctx)
		if err == nil {
			mutationAttemptsTotal.WithLabelValues(string(OutcomeSuccess)).Inc()
			result.Attempts = append(result.Attempts, Attempt{
				StrategyIndex: i,
				Name:          strategy.Name,
				Outcome:       OutcomeSuccess,
			})
			result.StrategyIndex = i
			result.StrategyName = strategy.Name
			result.Simulated = strategy.Simulated

			if strategy.Simulated {
				mutationSimulatedTotal.Inc()
				logger.Warn().
					Bool("simulated", true).
					Int("strategy_index", i).
					Msg("Mutation resolved by SIMULATED strategy - no server change happened")
			} else {
				logger.Info().
					Int("strategy_index", i).
					Str("strategy", strategy.Name).
					Msg("Mutation succeeded")
			}
			return result, nil
		}

		outcome := OutcomeFatalFailure
		if api.IsEndpointUnsupported(err) {
			outcome = OutcomeRetryableFailure
			logger.Debug().
				Int("strategy_index", i).
				Str("strategy", strategy.Name).
				Msg("Endpoint unsupported, trying next strategy")
		} else {
			result.RealErrors = append(result.RealErrors, err)
			logger.Warn().
				Err(err).
				Int("strategy_index", i).
				Str("strategy", strategy.Name).
				Msg("Strategy failed, trying next")
		}

		mutationAttemptsTotal.WithLabelValues(string(outcome)).Inc()
		result.Attempts = append(result.Attempts, Attempt{
			StrategyIndex: i,
			Name:          strategy.Name,
			Outcome:       outcome,
			Err:           err,
		})
		lastErr = err

		if i < len(strategies)-1 {
			mutationFallbacksTotal.Inc()
		}
	}

	logger.Error().
		Err(lastErr).
		Int("strategies", len(strategies)).
		Msg("All mutation strategies exhausted")

	return nil, fmt.Errorf("operation %q: all %d strategies failed: %w", operation, len(strategies), lastErr)
}
