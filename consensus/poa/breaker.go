// Package poa implements the proof-of-authority consensus-adjacent helpers
// of spec.md §4.3: the circuit breaker that guards block production against
// repeated storage failures. Packaged separately from miner so it is
// unit-testable in isolation, the way the teacher isolates small
// consensus helpers under consensus/misc.
package poa

import (
	"sync"
	"time"

	"github.com/aitbc-network/chain-node/metrics"
)

// BreakerState is one of the three circuit-breaker states of spec.md §4.3.
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half-open"
)

var (
	metricBreakerState = metrics.NewRegisteredGauge("circuit_breaker_state", "0=closed, 1=open")
	metricBreakerTrips = metrics.NewRegisteredCounter("circuit_breaker_trips_total", "times the breaker has opened")
)

// CircuitBreaker is a mutex-guarded three-state machine: closed (healthy),
// open (failing, requests rejected), half-open (probationary retry after
// Timeout has elapsed). Exactly mirrors the original proposer's
// CircuitBreaker — see consensus/poa §4.3 "Circuit breaker" invariants.
type CircuitBreaker struct {
	mu sync.Mutex

	threshold int
	timeout   time.Duration

	failureCount    int
	lastFailureTime time.Time
	state           BreakerState
}

// NewCircuitBreaker constructs a closed breaker that opens after threshold
// consecutive failures and offers a half-open retry after timeout elapses.
func NewCircuitBreaker(threshold int, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		timeout:   timeout,
		state:     StateClosed,
	}
}

// State returns the breaker's current state, lazily transitioning
// open -> half-open once timeout has elapsed since the last failure.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *CircuitBreaker) stateLocked() BreakerState {
	if b.state == StateOpen && time.Since(b.lastFailureTime) >= b.timeout {
		b.state = StateHalfOpen
	}
	return b.state
}

// RecordSuccess resets the breaker to closed.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = 0
	b.state = StateClosed
	metricBreakerState.Set(0)
}

// RecordFailure counts a failure, opening the breaker once threshold
// consecutive failures have accumulated.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount++
	b.lastFailureTime = time.Now()
	if b.failureCount >= b.threshold {
		b.state = StateOpen
		metricBreakerState.Set(1)
		metricBreakerTrips.Inc()
	}
}

// AllowRequest reports whether a caller may proceed: true in closed or
// half-open, false in open.
func (b *CircuitBreaker) AllowRequest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked() != StateOpen
}
