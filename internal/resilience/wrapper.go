// Package resilience aísla los fallos de un venue del resto del sistema:
// circuit breaker + rate limit + timeout duro + retry por venue. Cada venue
// tiene su propio wrapper y no comparte estado mutable con los demás.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/swaproute/internal/domain"
	"github.com/alejandrodnm/swaproute/internal/ports"
)

// WrapperConfig controla el comportamiento del wrapper de un venue.
type WrapperConfig struct {
	Breaker BreakerConfig
	// HardTimeout es la cota superior de cada intento. Excederla cuenta
	// como fallo y nunca bloquea al aggregator más allá de este límite.
	HardTimeout time.Duration
	// MaxRetries son los reintentos internos ante errores transitorios,
	// dentro del deadline del caller. Cada intento fallido cuenta hacia
	// el threshold del breaker.
	MaxRetries int
	// RatePerSec y Burst configuran el token bucket del venue.
	RatePerSec float64
	Burst      int
}

// DefaultWrapperConfig devuelve los defaults usados cuando la config los omite.
func DefaultWrapperConfig() WrapperConfig {
	return WrapperConfig{
		Breaker:     DefaultBreakerConfig(),
		HardTimeout: 5 * time.Second,
		MaxRetries:  0,
		RatePerSec:  10,
		Burst:       5,
	}
}

// Wrapper envuelve el QuoteAdapter de un venue con la política de
// resiliencia. Implementa a su vez ports.QuoteAdapter, así que el
// aggregator no distingue adapter desnudo de adapter envuelto.
type Wrapper struct {
	adapter ports.QuoteAdapter
	breaker *Breaker
	limiter *rate.Limiter
	cfg     WrapperConfig
}

var _ ports.QuoteAdapter = (*Wrapper)(nil)

// Wrap crea el wrapper de resiliencia para un adapter.
func Wrap(adapter ports.QuoteAdapter, cfg WrapperConfig) *Wrapper {
	def := DefaultWrapperConfig()
	if cfg.HardTimeout <= 0 {
		cfg.HardTimeout = def.HardTimeout
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = def.RatePerSec
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	return &Wrapper{
		adapter: adapter,
		breaker: NewBreaker(adapter.Venue(), cfg.Breaker),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		cfg:     cfg,
	}
}

// Venue devuelve el ID del venue envuelto.
func (w *Wrapper) Venue() string {
	return w.adapter.Venue()
}

// GetQuote ejecuta la llamada a través del breaker, el rate limiter y el
// timeout duro. Los errores salen ya normalizados a la taxonomía de domain.
func (w *Wrapper) GetQuote(ctx context.Context, req domain.SwapRequest) (domain.Quote, error) {
	var lastErr error

	for attempt := 0; attempt <= w.cfg.MaxRetries; attempt++ {
		if err := w.breaker.Allow(); err != nil {
			// Rechazo derivado: no hubo llamada de red, no cuenta como fallo.
			return domain.Quote{}, fmt.Errorf("%s: %w", w.Venue(), err)
		}

		if err := w.limiter.Wait(ctx); err != nil {
			// El deadline del caller venció esperando el token bucket.
			w.breaker.RecordFailure()
			return domain.Quote{}, fmt.Errorf("%s: %w", w.Venue(), domain.ErrTimeout)
		}

		q, err := w.attempt(ctx, req)
		if err == nil {
			w.breaker.RecordSuccess()
			return q, nil
		}

		if errors.Is(err, domain.ErrUnsupported) {
			// Esperado, no es un fallo del venue. Libera el trial
			// half-open si esta llamada lo consumió.
			w.breaker.ReleaseTrial()
			return domain.Quote{}, err
		}

		w.breaker.RecordFailure()
		lastErr = err

		if attempt < w.cfg.MaxRetries && ctx.Err() == nil {
			slog.Debug("retrying venue call",
				"venue", w.Venue(),
				"attempt", attempt+1,
				"err", err,
			)
			continue
		}
		break
	}

	return domain.Quote{}, lastErr
}

// attempt ejecuta un único intento bajo el timeout duro del wrapper.
func (w *Wrapper) attempt(ctx context.Context, req domain.SwapRequest) (domain.Quote, error) {
	cctx, cancel := context.WithTimeout(ctx, w.cfg.HardTimeout)
	defer cancel()

	q, err := w.adapter.GetQuote(cctx, req)
	if err == nil {
		return q, nil
	}

	// Deadline excedido (del wrapper o heredado del caller) → Timeout.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(cctx.Err(), context.DeadlineExceeded) {
		return domain.Quote{}, fmt.Errorf("%s: %w", w.Venue(), domain.ErrTimeout)
	}
	if errors.Is(err, context.Canceled) {
		return domain.Quote{}, fmt.Errorf("%s: canceled: %w", w.Venue(), domain.ErrTimeout)
	}
	return domain.Quote{}, err
}

// State devuelve el estado actual del breaker para observabilidad.
func (w *Wrapper) State() State {
	return w.breaker.State()
}

// Counters devuelve los contadores del breaker.
func (w *Wrapper) Counters() Counters {
	return w.breaker.Counters()
}
