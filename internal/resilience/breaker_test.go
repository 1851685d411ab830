package resilience

import (
	"testing"
	"time"

	"github.com/alejandrodnm/swaproute/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock permite avanzar el tiempo del breaker sin dormir en tests.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg BreakerConfig) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	b := NewBreaker("test-venue", cfg)
	b.now = clock.now
	return b, clock
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{FailureThreshold: 5, RecoveryTimeout: 30 * time.Second})

	for i := 0; i < 4; i++ {
		require.NoError(t, b.Allow())
		b.RecordFailure()
		assert.Equal(t, StateClosed, b.State(), "still closed after %d failures", i+1)
	}

	require.NoError(t, b.Allow())
	b.RecordFailure() // 5º fallo → open

	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Allow(), domain.ErrCircuitOpen)
}

func TestBreaker_HalfOpenAfterRecoveryTimeout(t *testing.T) {
	b, clock := newTestBreaker(BreakerConfig{FailureThreshold: 2, RecoveryTimeout: 30 * time.Second})

	b.RecordFailure()
	b.RecordFailure()
	require.Equal(t, StateOpen, b.State())

	// Antes del recovery timeout: rechazo sin llamada
	clock.advance(10 * time.Second)
	assert.ErrorIs(t, b.Allow(), domain.ErrCircuitOpen)

	// Pasado el timeout: un único trial pasa, los concurrentes se rechazan
	clock.advance(25 * time.Second)
	require.NoError(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())
	assert.ErrorIs(t, b.Allow(), domain.ErrCircuitOpen)
}

func TestBreaker_HalfOpenSuccessCloses(t *testing.T) {
	b, clock := newTestBreaker(BreakerConfig{FailureThreshold: 2, RecoveryTimeout: time.Second})

	b.RecordFailure()
	b.RecordFailure()
	clock.advance(2 * time.Second)
	require.NoError(t, b.Allow())

	b.RecordSuccess()

	assert.Equal(t, StateClosed, b.State())

	// El contador quedó reseteado: hace falta el threshold completo otra vez
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_HalfOpenFailureReopensWithGrownCooldown(t *testing.T) {
	b, clock := newTestBreaker(BreakerConfig{
		FailureThreshold:   1,
		RecoveryTimeout:    10 * time.Second,
		RecoveryTimeoutMax: 15 * time.Second,
	})

	b.RecordFailure() // → open, cooldown 10s
	clock.advance(11 * time.Second)
	require.NoError(t, b.Allow()) // half-open
	b.RecordFailure()             // trial falla → open, cooldown 20s capado a 15s

	require.Equal(t, StateOpen, b.State())

	clock.advance(11 * time.Second)
	assert.ErrorIs(t, b.Allow(), domain.ErrCircuitOpen, "cooldown creció, 11s no bastan")

	clock.advance(5 * time.Second)
	assert.NoError(t, b.Allow(), "cooldown capado en 15s")
}

func TestBreaker_ReleaseTrialFreesSlotWithoutStateChange(t *testing.T) {
	b, clock := newTestBreaker(BreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Second})

	b.RecordFailure()
	clock.advance(2 * time.Second)
	require.NoError(t, b.Allow()) // half-open, trial en vuelo

	b.ReleaseTrial() // resultado neutral: ni éxito ni fallo

	require.Equal(t, StateHalfOpen, b.State())
	require.NoError(t, b.Allow(), "el slot quedó libre para el siguiente trial")
	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_FailureCountDecays(t *testing.T) {
	b, clock := newTestBreaker(BreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  time.Second,
		DecayAfter:       time.Minute,
	})

	// Dos blips aislados seguidos de éxito mucho después no acumulan
	b.RecordFailure()
	b.RecordFailure()
	clock.advance(2 * time.Minute)
	b.RecordSuccess() // limpia el rolling count

	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State(), "count fue decaído, 2 fallos nuevos no llegan al threshold")
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_SuccessSoonAfterFailureDecrements(t *testing.T) {
	b, clock := newTestBreaker(BreakerConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  time.Second,
		DecayAfter:       time.Minute,
	})

	b.RecordFailure()
	clock.advance(time.Second)
	b.RecordSuccess() // pronto tras el fallo: decrementa, no resetea

	b.RecordFailure()
	assert.Equal(t, StateClosed, b.State())
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_Counters(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Minute})

	require.NoError(t, b.Allow())
	b.RecordSuccess()
	require.NoError(t, b.Allow())
	b.RecordFailure() // → open
	assert.ErrorIs(t, b.Allow(), domain.ErrCircuitOpen)

	c := b.Counters()
	assert.Equal(t, uint64(1), c.Successes)
	assert.Equal(t, uint64(1), c.Failures)
	assert.Equal(t, uint64(1), c.Rejected)
}
