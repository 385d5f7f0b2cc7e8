package store

import (
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/rs/zerolog"
)

// BreakerConfig configures the per-command circuit breakers.
type BreakerConfig struct {
	// Timeout bounds every store call.
	Timeout time.Duration `mapstructure:"timeout"`

	// ForceClosed keeps breakers permanently closed: faults are still caught and
	// converted, but calls are never short-circuited.
	ForceClosed bool `mapstructure:"force_closed"`

	// FailureRateThreshold is the failure percentage, over FailurePeriod and once
	// FailureExecutionThreshold calls were seen, that opens a breaker.
	FailureRateThreshold      uint          `mapstructure:"failure_rate_threshold"`
	FailureExecutionThreshold uint          `mapstructure:"failure_execution_threshold"`
	FailurePeriod             time.Duration `mapstructure:"failure_period"`

	// Delay is how long an open breaker waits before allowing a trial call.
	Delay time.Duration `mapstructure:"delay"`

	// SuccessThreshold is the number of successful trial calls that close a half-open breaker.
	SuccessThreshold uint `mapstructure:"success_threshold"`
}

// DefaultBreakerConfig returns a 2 s timeout with breakers forced closed.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Timeout:                   2000 * time.Millisecond,
		ForceClosed:               true,
		FailureRateThreshold:      50,
		FailureExecutionThreshold: 20,
		FailurePeriod:             10 * time.Second,
		Delay:                     30 * time.Second,
		SuccessThreshold:          1,
	}
}

// withDefaults fills unset fields. The zero config means DefaultBreakerConfig.
func (c BreakerConfig) withDefaults() BreakerConfig {
	d := DefaultBreakerConfig()
	if c == (BreakerConfig{}) {
		return d
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.FailureRateThreshold == 0 || c.FailureRateThreshold > 100 {
		c.FailureRateThreshold = d.FailureRateThreshold
	}
	if c.FailureExecutionThreshold == 0 {
		c.FailureExecutionThreshold = d.FailureExecutionThreshold
	}
	if c.FailurePeriod <= 0 {
		c.FailurePeriod = d.FailurePeriod
	}
	if c.Delay <= 0 {
		c.Delay = d.Delay
	}
	if c.SuccessThreshold == 0 {
		c.SuccessThreshold = d.SuccessThreshold
	}
	return c
}

// failureRatio converts the FailureRateThreshold percentage into the 0-1 ratio
// the breaker builder expects.
func (c BreakerConfig) failureRatio() float64 {
	return float64(c.FailureRateThreshold) / 100
}

// Breakers holds one circuit breaker per command name. A breaker is created on
// first use with the config of the adapter that asked for it; later adapters
// sharing the registry reuse it as is.
type Breakers struct {
	mu       sync.Mutex
	breakers map[string]circuitbreaker.CircuitBreaker[any]
}

// NewBreakers creates an isolated registry.
func NewBreakers() *Breakers {
	return &Breakers{breakers: make(map[string]circuitbreaker.CircuitBreaker[any])}
}

var (
	defaultBreakers     *Breakers
	defaultBreakersOnce sync.Once
)

// DefaultBreakers returns the process-wide registry shared by adapters that do
// not ask for an isolated one. Its breaker states are exported as
// flash_circuit_breaker_state.
func DefaultBreakers() *Breakers {
	defaultBreakersOnce.Do(func() {
		defaultBreakers = NewBreakers()
		registerStateCollector(defaultBreakers)
	})
	return defaultBreakers
}

// Get returns the breaker for command, creating it if needed.
func (b *Breakers) Get(command string, cfg BreakerConfig, logger zerolog.Logger) circuitbreaker.CircuitBreaker[any] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.breakers[command]; ok {
		return cb
	}
	cfg = cfg.withDefaults()
	cb := circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(cfg.failureRatio(), cfg.FailureExecutionThreshold, cfg.FailurePeriod).
		WithDelay(cfg.Delay).
		WithSuccessThreshold(cfg.SuccessThreshold).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			logger.Warn().
				Str("command", command).
				Str("from", e.OldState.String()).
				Str("to", e.NewState.String()).
				Msg("Circuit breaker state changed")
		}).
		Build()
	b.breakers[command] = cb
	return cb
}

// States returns the current state of every breaker, keyed by command.
func (b *Breakers) States() map[string]circuitbreaker.State {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]circuitbreaker.State, len(b.breakers))
	for cmd, cb := range b.breakers {
		out[cmd] = cb.State()
	}
	return out
}

