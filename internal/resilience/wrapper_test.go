package resilience_test

import (
	"context"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alejandrodnm/swaproute/internal/domain"
	"github.com/alejandrodnm/swaproute/internal/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAdapter devuelve respuestas programadas y cuenta llamadas reales.
type stubAdapter struct {
	calls   atomic.Int64
	quote   domain.Quote
	err     error
	delay   time.Duration
	respond func(ctx context.Context) (domain.Quote, error)
}

func (s *stubAdapter) Venue() string { return "stub" }

func (s *stubAdapter) GetQuote(ctx context.Context, _ domain.SwapRequest) (domain.Quote, error) {
	s.calls.Add(1)
	if s.respond != nil {
		return s.respond(ctx)
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return domain.Quote{}, ctx.Err()
		}
	}
	return s.quote, s.err
}

func testRequest() domain.SwapRequest {
	return domain.SwapRequest{
		TokenIn:  domain.Token{Symbol: "WETH", ChainID: 1, Address: "0xc02a", Decimals: 18},
		TokenOut: domain.Token{Symbol: "USDC", ChainID: 1, Address: "0xa0b8", Decimals: 6},
		AmountIn: big.NewInt(1e18),
	}
}

func fastConfig() resilience.WrapperConfig {
	cfg := resilience.DefaultWrapperConfig()
	cfg.HardTimeout = 50 * time.Millisecond
	cfg.RatePerSec = 1000
	cfg.Burst = 1000
	cfg.Breaker.FailureThreshold = 5
	cfg.Breaker.RecoveryTimeout = time.Hour
	return cfg
}

func TestWrapper_PassThrough(t *testing.T) {
	adapter := &stubAdapter{quote: domain.Quote{Venue: "stub", AmountOut: big.NewInt(100)}}
	w := resilience.Wrap(adapter, fastConfig())

	q, err := w.GetQuote(context.Background(), testRequest())

	require.NoError(t, err)
	assert.Equal(t, int64(100), q.AmountOut.Int64())
	assert.Equal(t, resilience.StateClosed, w.State())
}

func TestWrapper_HardTimeoutCountsAsFailure(t *testing.T) {
	adapter := &stubAdapter{delay: time.Second}
	w := resilience.Wrap(adapter, fastConfig())

	start := time.Now()
	_, err := w.GetQuote(context.Background(), testRequest())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "el timeout duro acota la llamada")
	assert.Equal(t, uint64(1), w.Counters().Failures)
}

func TestWrapper_OpensAfterThresholdAndRejectsWithoutCalling(t *testing.T) {
	adapter := &stubAdapter{err: domain.ErrUpstream}
	w := resilience.Wrap(adapter, fastConfig())

	for i := 0; i < 5; i++ {
		_, err := w.GetQuote(context.Background(), testRequest())
		require.ErrorIs(t, err, domain.ErrUpstream)
	}
	require.Equal(t, resilience.StateOpen, w.State())
	require.Equal(t, int64(5), adapter.calls.Load())

	// 6ª llamada: rechazada en el wrapper, sin intento de red
	_, err := w.GetQuote(context.Background(), testRequest())
	assert.ErrorIs(t, err, domain.ErrCircuitOpen)
	assert.Equal(t, int64(5), adapter.calls.Load(), "no network attempt while open")
}

func TestWrapper_UnsupportedIsNotAFault(t *testing.T) {
	adapter := &stubAdapter{err: domain.ErrUnsupported}
	w := resilience.Wrap(adapter, fastConfig())

	for i := 0; i < 10; i++ {
		_, err := w.GetQuote(context.Background(), testRequest())
		require.ErrorIs(t, err, domain.ErrUnsupported)
	}

	assert.Equal(t, resilience.StateClosed, w.State())
	assert.Equal(t, uint64(0), w.Counters().Failures)
}

// Secuencia: fallo upstream abre el circuito, el trial half-open lo
// consume un par no soportado, y la siguiente llamada (venue ya sano)
// debe pasar. Un resultado neutral nunca deja el trial bloqueado.
func TestWrapper_UnsupportedTrialDoesNotWedgeHalfOpen(t *testing.T) {
	adapter := &stubAdapter{}
	var phase atomic.Int64
	adapter.respond = func(context.Context) (domain.Quote, error) {
		switch phase.Load() {
		case 0:
			return domain.Quote{}, domain.ErrUpstream
		case 1:
			return domain.Quote{}, domain.ErrUnsupported
		default:
			return domain.Quote{Venue: "stub", AmountOut: big.NewInt(7)}, nil
		}
	}

	cfg := fastConfig()
	cfg.Breaker.FailureThreshold = 1
	cfg.Breaker.RecoveryTimeout = 20 * time.Millisecond
	w := resilience.Wrap(adapter, cfg)

	_, err := w.GetQuote(context.Background(), testRequest())
	require.ErrorIs(t, err, domain.ErrUpstream)
	require.Equal(t, resilience.StateOpen, w.State())

	time.Sleep(30 * time.Millisecond)
	phase.Store(1)
	_, err = w.GetQuote(context.Background(), testRequest())
	require.ErrorIs(t, err, domain.ErrUnsupported)

	phase.Store(2)
	q, err := w.GetQuote(context.Background(), testRequest())
	require.NoError(t, err, "venue sano tras el trial neutro no puede quedar bloqueado")
	assert.Equal(t, int64(7), q.AmountOut.Int64())
	assert.Equal(t, resilience.StateClosed, w.State())
}

func TestWrapper_RetriesTransientErrors(t *testing.T) {
	adapter := &stubAdapter{}
	var n atomic.Int64
	adapter.respond = func(context.Context) (domain.Quote, error) {
		if n.Add(1) == 1 {
			return domain.Quote{}, domain.ErrRateLimited
		}
		return domain.Quote{Venue: "stub", AmountOut: big.NewInt(42)}, nil
	}

	cfg := fastConfig()
	cfg.MaxRetries = 1
	w := resilience.Wrap(adapter, cfg)

	q, err := w.GetQuote(context.Background(), testRequest())

	require.NoError(t, err)
	assert.Equal(t, int64(42), q.AmountOut.Int64())
	assert.Equal(t, int64(2), adapter.calls.Load())
	// El intento fallido cuenta hacia el threshold aunque el retry triunfe
	assert.Equal(t, uint64(1), w.Counters().Failures)
}

func TestWrapper_CallerDeadlinePropagates(t *testing.T) {
	adapter := &stubAdapter{delay: time.Second}
	cfg := fastConfig()
	cfg.HardTimeout = 10 * time.Second
	w := resilience.Wrap(adapter, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := w.GetQuote(ctx, testRequest())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
