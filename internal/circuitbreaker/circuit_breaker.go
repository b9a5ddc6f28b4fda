// Package circuitbreaker protects outbound platform API calls. A shop
// whose API keeps failing (expired token, plan suspension) gets its
// calls short-circuited instead of burning worker retries.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State represents the circuit breaker state
type State string

const (
	// StateClosed means the circuit is closed and requests are allowed
	StateClosed State = "closed"
	// StateOpen means the circuit is open and requests are blocked
	StateOpen State = "open"
	// StateHalfOpen means the circuit is testing if the service has recovered
	StateHalfOpen State = "half_open"
)

// ErrCircuitOpen is returned when the circuit breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config configures a circuit breaker
type Config struct {
	// MaxConsecutiveFailures opens the circuit when reached.
	MaxConsecutiveFailures int
	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration
	// HalfOpenSuccesses closes the circuit after this many probe successes.
	HalfOpenSuccesses int
}

// DefaultConfig returns a default circuit breaker configuration
func DefaultConfig() *Config {
	return &Config{
		MaxConsecutiveFailures: 5,
		Timeout:                30 * time.Second,
		HalfOpenSuccesses:      2,
	}
}

// CircuitBreaker implements the circuit breaker pattern for one
// upstream (one shop's API).
type CircuitBreaker struct {
	name   string
	config *Config
	logger *zap.Logger

	mu               sync.Mutex
	state            State
	consecutiveFails int
	probeSuccesses   int
	lastStateChange  time.Time
}

// New creates a new circuit breaker
func New(name string, config *Config, logger *zap.Logger) *CircuitBreaker {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CircuitBreaker{
		name:            name,
		config:          config,
		logger:          logger,
		state:           StateClosed,
		lastStateChange: time.Now(),
	}
}

// Execute runs fn under circuit breaker protection. When the circuit is
// open it fails fast with ErrCircuitOpen without calling fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.afterRequest(err)
	return err
}

// State reports the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.lastStateChange) <= cb.config.Timeout {
			return ErrCircuitOpen
		}
		cb.setState(StateHalfOpen)
		cb.logger.Info("circuit breaker half-open", zap.String("breaker", cb.name))
	}
	return nil
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.onFailure()
	} else {
		cb.onSuccess()
	}
}

func (cb *CircuitBreaker) onSuccess() {
	cb.consecutiveFails = 0

	if cb.state == StateHalfOpen {
		cb.probeSuccesses++
		if cb.probeSuccesses >= cb.config.HalfOpenSuccesses {
			cb.setState(StateClosed)
			cb.logger.Info("circuit breaker closed", zap.String("breaker", cb.name))
		}
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.consecutiveFails++

	switch cb.state {
	case StateClosed:
		if cb.consecutiveFails >= cb.config.MaxConsecutiveFailures {
			cb.setState(StateOpen)
			cb.logger.Warn("circuit breaker opened",
				zap.String("breaker", cb.name),
				zap.Int("consecutive_failures", cb.consecutiveFails))
		}
	case StateHalfOpen:
		// Any failure during probing reopens the circuit.
		cb.setState(StateOpen)
		cb.logger.Warn("circuit breaker reopened", zap.String("breaker", cb.name))
	}
}

func (cb *CircuitBreaker) setState(state State) {
	cb.state = state
	cb.lastStateChange = time.Now()
	cb.probeSuccesses = 0
}

// Registry hands out one breaker per upstream name.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	config   *Config
	logger   *zap.Logger
}

// NewRegistry creates a breaker registry sharing one configuration.
func NewRegistry(config *Config, logger *zap.Logger) *Registry {
	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		config:   config,
		logger:   logger,
	}
}

// Get returns the breaker for name, creating it on first use.
func (r *Registry) Get(name string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}
	cb := New(name, r.config, r.logger)
	r.breakers[name] = cb
	return cb
}
