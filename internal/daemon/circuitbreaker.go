package daemon

import (
	"sync"
	"time"
)

const (
	// DefaultCircuitBreakerThreshold is the number of consecutive Drive
	// failures before the daemon stops calling Drive.
	DefaultCircuitBreakerThreshold = 3
	// DefaultCircuitBreakerCooldown is how long the circuit stays open
	// before one trial call is let through.
	DefaultCircuitBreakerCooldown = 5 * time.Minute
)

// CircuitState is the breaker state
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker guards the daemon's Drive calls. After threshold
// consecutive failures it rejects calls until cooldown has passed, then
// admits trial calls until one succeeds or fails.
type CircuitBreaker struct {
	mu           sync.Mutex
	threshold    int
	cooldown     time.Duration
	failureCount int
	state        CircuitState
	openedAt     time.Time
	holdFor      time.Duration // replaces cooldown for a throttled opening
	now          func() time.Time
}

// NewCircuitBreaker creates a closed breaker
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold < 1 {
		threshold = 1
	}
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Allow reports whether a Drive call may proceed
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stateLocked() != CircuitOpen
}

// RecordSuccess closes the circuit
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failureCount = 0
	cb.state = CircuitClosed
	cb.holdFor = 0
}

// RecordFailure counts a failure. A failed half-open trial reopens at once.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	if cb.state == CircuitHalfOpen || cb.failureCount >= cb.threshold {
		cb.state = CircuitOpen
		cb.openedAt = cb.now()
		cb.holdFor = 0
	}
}

// RecordThrottled counts a failure and opens the circuit at once for the
// server's Retry-After wait instead of the usual cooldown.
func (cb *CircuitBreaker) RecordThrottled(retryAfter time.Duration) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.state = CircuitOpen
	cb.openedAt = cb.now()
	cb.holdFor = retryAfter
}

// State returns the current state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stateLocked()
}

// FailureCount returns the consecutive failure count
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount
}

func (cb *CircuitBreaker) stateLocked() CircuitState {
	wait := cb.cooldown
	if cb.holdFor > 0 {
		wait = cb.holdFor
	}
	if cb.state == CircuitOpen && cb.now().Sub(cb.openedAt) >= wait {
		cb.state = CircuitHalfOpen
	}
	return cb.state
}
