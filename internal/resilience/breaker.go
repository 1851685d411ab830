package resilience

import (
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/swaproute/internal/domain"
)

// State is the circuit breaker state for a venue.
type State int

const (
	StateClosed   State = iota // normal operation
	StateOpen                  // failing, reject without calling
	StateHalfOpen              // single trial call allowed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds the per-venue breaker tuning.
type BreakerConfig struct {
	// FailureThreshold is the rolling failure count that opens the circuit.
	FailureThreshold int
	// RecoveryTimeout is the initial cooldown before a half-open trial.
	RecoveryTimeout time.Duration
	// RecoveryTimeoutMax caps the exponential cooldown growth.
	RecoveryTimeoutMax time.Duration
	// DecayAfter: a success this long after the last failure clears the
	// rolling count, so isolated blips never reach the threshold.
	DecayAfter time.Duration
}

// DefaultBreakerConfig returns the tuning used when config omits values.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:   5,
		RecoveryTimeout:    30 * time.Second,
		RecoveryTimeoutMax: 5 * time.Minute,
		DecayAfter:         60 * time.Second,
	}
}

// Counters are the observable totals of a breaker.
type Counters struct {
	Successes uint64
	Failures  uint64
	Rejected  uint64 // calls rejected while open
}

// Breaker is the per-venue circuit breaker state machine. The venue's
// CircuitState is owned exclusively by this struct and mutated only from
// the wrapper's call path, serialized by mu.
type Breaker struct {
	venue string
	cfg   BreakerConfig
	now   func() time.Time // inyectable en tests

	mu            sync.Mutex
	state         State
	failureCount  int
	lastFailure   time.Time
	nextRetry     time.Time
	cooldown      time.Duration // current recovery timeout (grows while re-opening)
	trialInFlight bool          // half-open: exactly one trial at a time
	counters      Counters
}

// NewBreaker creates a closed breaker for the venue.
func NewBreaker(venue string, cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = DefaultBreakerConfig().RecoveryTimeout
	}
	if cfg.RecoveryTimeoutMax < cfg.RecoveryTimeout {
		cfg.RecoveryTimeoutMax = DefaultBreakerConfig().RecoveryTimeoutMax
	}
	if cfg.DecayAfter <= 0 {
		cfg.DecayAfter = DefaultBreakerConfig().DecayAfter
	}
	return &Breaker{
		venue:    venue,
		cfg:      cfg,
		now:      time.Now,
		state:    StateClosed,
		cooldown: cfg.RecoveryTimeout,
	}
}

// Allow decides whether a call may proceed. Returns domain.ErrCircuitOpen
// while open (derived rejection, no network attempt) and while a half-open
// trial is already in flight.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		if b.now().Before(b.nextRetry) {
			b.counters.Rejected++
			return domain.ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.trialInFlight = true
		slog.Info("circuit half-open, allowing trial call", "venue", b.venue)
		return nil

	case StateHalfOpen:
		if b.trialInFlight {
			b.counters.Rejected++
			return domain.ErrCircuitOpen
		}
		b.trialInFlight = true
		return nil
	}
	return domain.ErrCircuitOpen
}

// RecordSuccess registers a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.counters.Successes++

	switch b.state {
	case StateClosed:
		// Decay: success long after the last failure clears the rolling
		// count; otherwise just back off by one.
		if b.failureCount > 0 {
			if !b.lastFailure.IsZero() && b.now().Sub(b.lastFailure) >= b.cfg.DecayAfter {
				b.failureCount = 0
			} else {
				b.failureCount--
			}
		}

	case StateHalfOpen:
		// Un único éxito en half-open cierra el circuito y resetea todo.
		b.state = StateClosed
		b.failureCount = 0
		b.trialInFlight = false
		b.cooldown = b.cfg.RecoveryTimeout
		slog.Info("circuit closed (venue recovered)", "venue", b.venue)
	}
}

// ReleaseTrial frees the half-open trial slot without recording success or
// failure. For outcomes that say nothing about venue health (unsupported
// pair): the circuit stays half-open and the next call may trial again.
func (b *Breaker) ReleaseTrial() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.trialInFlight = false
	}
}

// RecordFailure registers a failed call (timeouts included).
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.counters.Failures++
	b.lastFailure = now

	switch b.state {
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.state = StateOpen
			b.nextRetry = now.Add(b.cooldown)
			slog.Warn("circuit open",
				"venue", b.venue,
				"failures", b.failureCount,
				"retry_in", b.cooldown,
			)
		}

	case StateHalfOpen:
		// Trial failed: re-open with a grown cooldown, capped.
		b.trialInFlight = false
		b.state = StateOpen
		b.cooldown *= 2
		if b.cooldown > b.cfg.RecoveryTimeoutMax {
			b.cooldown = b.cfg.RecoveryTimeoutMax
		}
		b.nextRetry = now.Add(b.cooldown)
		slog.Warn("circuit re-opened (trial failed)",
			"venue", b.venue,
			"retry_in", b.cooldown,
		)
	}
}

// State returns the current state for observability.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Counters returns a snapshot of the breaker totals.
func (b *Breaker) Counters() Counters {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counters
}
