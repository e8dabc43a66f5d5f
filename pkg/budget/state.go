// Package budget implements upstream failure tracking and sweep gating.
// Exhaustive sweeps multiply one user action into dozens of page requests;
// when the back office is already failing, launching more sweeps only makes
// things worse. The tracker counts consecutive upstream failures in Redis
// (shared across client instances) and blocks or throttles new sweeps while
// the upstream is unhealthy.
package budget

import (
	"time"
)

// Redis keys for failure budget state storage.
const (
	RedisKeyFailures    = "backoffice:budget:consecutive_failures"
	RedisKeyLastFailure = "backoffice:budget:last_failure"
)

// Thresholds for sweep gating decisions.
const (
	// FailureThresholdCritical blocks new sweeps when consecutive
	// failures reach this value.
	FailureThresholdCritical = 6

	// FailureThresholdWarning throttles sweeps when consecutive failures
	// reach this value.
	FailureThresholdWarning = 3
)

// DecayWindow is how long after the last failure the budget resets to
// healthy on its own. Single-page fetches keep probing the upstream in the
// meantime, so a recovered backend clears quickly via RecordSuccess anyway.
const DecayWindow = 60 * time.Second

// State represents the current upstream failure budget.
// Shared across all client instances via Redis.
type State struct {
	// ConsecutiveFailures is the number of upstream failures since the
	// last success.
	ConsecutiveFailures int `json:"consecutive_failures"`

	// LastFailure is when the most recent failure was recorded.
	LastFailure time.Time `json:"last_failure"`

	// IsHealthy indicates no gating applies.
	IsHealthy bool `json:"is_healthy"`
}

// Decayed returns true if the last failure is old enough that the budget
// should be treated as healthy again.
func (s *State) Decayed() bool {
	return !s.LastFailure.IsZero() && time.Since(s.LastFailure) > DecayWindow
}

// NeedsCriticalBlock returns true if new sweeps should be blocked.
func (s *State) NeedsCriticalBlock() bool {
	return s.ConsecutiveFailures >= FailureThresholdCritical && !s.Decayed()
}

// NeedsThrottling returns true if sweeps should be slowed down.
func (s *State) NeedsThrottling() bool {
	return s.ConsecutiveFailures >= FailureThresholdWarning && !s.NeedsCriticalBlock() && !s.Decayed()
}

// UpdateHealth updates the IsHealthy field from the current counters.
func (s *State) UpdateHealth() {
	s.IsHealthy = s.Decayed() || s.ConsecutiveFailures < FailureThresholdWarning
}
