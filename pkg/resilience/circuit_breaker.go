package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState represents the state of a circuit breaker
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

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening
	FailureThreshold int
	// Cooldown is how long the circuit stays open before a trial call is let through
	Cooldown time.Duration
	// OnStateChange, if set, is called after every transition with the lock released.
	OnStateChange func(name string, from, to CircuitState)
}

// DefaultCircuitBreakerConfig suits a CLI publishing a handful of artifacts:
// a few failures in a row mean the endpoint is down for the rest of the process.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 3,
		Cooldown:         time.Minute,
	}
}

// CircuitBreaker stops calls to a dependency after repeated failures.
type CircuitBreaker struct {
	name     string
	config   CircuitBreakerConfig
	now      func() time.Time
	mu       sync.Mutex
	state    CircuitState
	failures int
	openedAt time.Time
	trial    bool // a half-open trial call is in flight
}

// NewCircuitBreaker creates a new circuit breaker with the given name and config
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 1
	}
	return &CircuitBreaker{
		name:   name,
		config: config,
		now:    time.Now,
		state:  CircuitClosed,
	}
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState()
}

// currentState must be called with the lock held.
func (cb *CircuitBreaker) currentState() CircuitState {
	if cb.state == CircuitOpen && cb.now().Sub(cb.openedAt) >= cb.config.Cooldown {
		return CircuitHalfOpen
	}
	return cb.state
}

// Execute runs fn unless the circuit is open. Context cancellation is not
// counted as a dependency failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := fn(ctx)

	if err != nil && ctx.Err() != nil {
		cb.release()
		return err
	}
	cb.afterRequest(err)
	return err
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentState() {
	case CircuitOpen:
		return ErrCircuitOpen
	case CircuitHalfOpen:
		if cb.trial {
			return ErrCircuitOpen
		}
		cb.trial = true
	}
	return nil
}

func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	cb.trial = false
	cb.mu.Unlock()
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	from := cb.currentState()
	cb.trial = false
	if err != nil {
		cb.failures++
		if from == CircuitHalfOpen || cb.failures >= cb.config.FailureThreshold {
			cb.state = CircuitOpen
			cb.openedAt = cb.now()
		}
	} else {
		cb.failures = 0
		cb.state = CircuitClosed
	}
	to := cb.currentState()
	notify := cb.config.OnStateChange
	cb.mu.Unlock()

	if notify != nil && from != to {
		notify(cb.name, from, to)
	}
}

// Reset closes the circuit and forgets past failures.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CircuitClosed
	cb.failures = 0
	cb.trial = false
}
