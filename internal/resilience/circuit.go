// Package resilience provides fault tolerance patterns for disk store I/O.
package resilience

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LavishGent/pixcache/internal/config"
)

type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker stops calling a store that keeps failing and probes it
// again after OpenDuration.
type CircuitBreaker struct {
	name string

	failureThreshold    int
	successThreshold    int
	openDuration        time.Duration
	halfOpenMaxRequests int

	state atomic.Int32

	mu               sync.Mutex
	consecutiveFails int
	consecutiveSuccs int
	halfOpenRequests int
	openedAt         time.Time
	lastFailure      error
	trips            int64
	onStateChange    func(from, to State)
}

// transition is reported to onStateChange after mu is released.
type transition struct {
	from, to State
	notify   func(from, to State)
}

func (t *transition) fire() {
	if t != nil && t.notify != nil {
		t.notify(t.from, t.to)
	}
}

// NewCircuitBreaker creates a circuit breaker guarding the named store.
func NewCircuitBreaker(name string, cfg config.CircuitBreakerConfig) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:                name,
		failureThreshold:    cfg.FailureThreshold,
		successThreshold:    cfg.SuccessThreshold,
		openDuration:        cfg.OpenDuration,
		halfOpenMaxRequests: cfg.HalfOpenMaxRequests,
	}

	if cb.failureThreshold <= 0 {
		cb.failureThreshold = 5
	}
	if cb.successThreshold <= 0 {
		cb.successThreshold = 2
	}
	if cb.openDuration <= 0 {
		cb.openDuration = 30 * time.Second
	}
	if cb.halfOpenMaxRequests <= 0 {
		cb.halfOpenMaxRequests = 3
	}

	cb.state.Store(int32(StateClosed))
	return cb
}

// Name returns the name of the guarded store.
func (cb *CircuitBreaker) Name() string { return cb.name }

// Execute runs fn if the circuit allows it and records the outcome.
// Errors that are normal store answers (not found, busy key) count as
// successes. A rejected call gets an error wrapping ErrCircuitOpen that names
// the store and the failure that tripped it.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.Allow() {
		return cb.openError()
	}

	err := fn()
	if tripsCircuit(err) {
		cb.recordFailure(err)
	} else {
		cb.RecordSuccess()
	}
	return err
}

func (cb *CircuitBreaker) openError() error {
	cb.mu.Lock()
	cause, retryIn := cb.lastFailure, cb.openDuration-time.Since(cb.openedAt)
	cb.mu.Unlock()
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, cb.name)
	}
	return fmt.Errorf("%w: %s (probe in %v, last failure: %v)", ErrCircuitOpen, cb.name, retryIn.Round(time.Millisecond), cause)
}

// Allow checks if a request should be allowed through.
func (cb *CircuitBreaker) Allow() bool {
	if State(cb.state.Load()) == StateClosed {
		return true
	}

	cb.mu.Lock()
	var t *transition
	allowed := false
	switch State(cb.state.Load()) {
	case StateClosed:
		allowed = true
	case StateOpen:
		if time.Since(cb.openedAt) >= cb.openDuration {
			t = cb.moveLocked(StateHalfOpen)
			cb.halfOpenRequests = 1
			allowed = true
		}
	case StateHalfOpen:
		if cb.halfOpenRequests < cb.halfOpenMaxRequests {
			cb.halfOpenRequests++
			allowed = true
		}
	}
	cb.mu.Unlock()

	t.fire()
	return allowed
}

// RecordSuccess records a successful operation.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	var t *transition
	switch State(cb.state.Load()) {
	case StateClosed:
		cb.consecutiveFails = 0
	case StateHalfOpen:
		cb.consecutiveSuccs++
		if cb.consecutiveSuccs >= cb.successThreshold {
			t = cb.moveLocked(StateClosed)
		}
	}
	cb.mu.Unlock()

	t.fire()
}

// RecordFailure records a failed operation.
func (cb *CircuitBreaker) RecordFailure() { cb.recordFailure(nil) }

func (cb *CircuitBreaker) recordFailure(err error) {
	cb.mu.Lock()
	if err != nil {
		cb.lastFailure = err
	}
	var t *transition
	switch State(cb.state.Load()) {
	case StateClosed:
		cb.consecutiveFails++
		if cb.consecutiveFails >= cb.failureThreshold {
			t = cb.moveLocked(StateOpen)
		}
	case StateHalfOpen:
		t = cb.moveLocked(StateOpen)
	}
	cb.mu.Unlock()

	t.fire()
}

// moveLocked switches state and resets counters. The returned transition must
// be fired after mu is released so callbacks may read breaker state.
func (cb *CircuitBreaker) moveLocked(to State) *transition {
	from := State(cb.state.Load())
	if from == to {
		return nil
	}

	cb.consecutiveSuccs = 0
	switch to {
	case StateClosed:
		cb.consecutiveFails = 0
		cb.halfOpenRequests = 0
	case StateOpen:
		cb.openedAt = time.Now()
		cb.trips++
	case StateHalfOpen:
		cb.halfOpenRequests = 0
	}
	cb.state.Store(int32(to))

	if cb.onStateChange == nil {
		return nil
	}
	return &transition{from: from, to: to, notify: cb.onStateChange}
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() State {
	return State(cb.state.Load())
}

// IsOpen returns true if the circuit is open.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == StateOpen
}

// SetOnStateChange sets a callback for state changes. It runs synchronously
// on the goroutine that caused the change.
func (cb *CircuitBreaker) SetOnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// Reset resets the circuit breaker to closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails = 0
	cb.consecutiveSuccs = 0
	cb.halfOpenRequests = 0
	cb.lastFailure = nil
	cb.state.Store(int32(StateClosed))
}

// Stats returns circuit breaker statistics.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerStats{
		State:            cb.State(),
		ConsecutiveFails: cb.consecutiveFails,
		ConsecutiveSuccs: cb.consecutiveSuccs,
		HalfOpenRequests: cb.halfOpenRequests,
		Trips:            cb.trips,
		OpenedAt:         cb.openedAt,
		LastFailure:      cb.lastFailure,
	}
}

// CircuitBreakerStats contains circuit breaker statistics.
type CircuitBreakerStats struct {
	State            State
	ConsecutiveFails int
	ConsecutiveSuccs int
	HalfOpenRequests int
	// Trips counts transitions into the open state.
	Trips       int64
	OpenedAt    time.Time
	LastFailure error
}

// DisabledCircuitBreaker never opens.
type DisabledCircuitBreaker struct{}

func NewDisabledCircuitBreaker() *DisabledCircuitBreaker {
	return &DisabledCircuitBreaker{}
}

func (cb *DisabledCircuitBreaker) Execute(fn func() error) error            { return fn() }
func (cb *DisabledCircuitBreaker) State() State                             { return StateClosed }
func (cb *DisabledCircuitBreaker) IsOpen() bool                             { return false }
func (cb *DisabledCircuitBreaker) SetOnStateChange(fn func(from, to State)) {}
