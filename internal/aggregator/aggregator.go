// Package aggregator hace fan-out de un SwapRequest a todos los venues
// elegibles en paralelo (a través de sus wrappers de resiliencia), colecta
// resultados parciales dentro del deadline y los rankea por net output.
//
// Un venue lento nunca retrasa a los que ya respondieron: el join está
// acotado por deadline y los resultados tardíos se descartan sin mutar
// estado compartido.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/swaproute/internal/domain"
	"github.com/alejandrodnm/swaproute/internal/ports"
	"github.com/alejandrodnm/swaproute/internal/pricing"
	"github.com/alejandrodnm/swaproute/internal/registry"
)

// Config controla el comportamiento del aggregator.
type Config struct {
	// PlatformFeeBps es el fee de la plataforma en basis points.
	PlatformFeeBps int
	// QuoteDeadline es el presupuesto por defecto de GetQuotes cuando el
	// request no trae deadline propio.
	QuoteDeadline time.Duration
}

// DefaultConfig devuelve la configuración por defecto.
func DefaultConfig() Config {
	return Config{
		PlatformFeeBps: 30,
		QuoteDeadline:  3 * time.Second,
	}
}

// Aggregator orquesta el ciclo quote: eligibility → fan-out → join → rank.
// Todas las dependencias se inyectan en construcción — sin singletons.
type Aggregator struct {
	cfg      Config
	reg      *registry.Registry
	adapters map[string]ports.QuoteAdapter // venue ID → adapter ya envuelto
	prices   ports.PriceSource             // puede ser nil (fallback cost-unadjusted)
	cycles   ports.CycleStore              // opcional, best effort
}

// New crea un Aggregator. Los adapters llegan ya envueltos en su wrapper de
// resiliencia, registrados en un map por venue ID — añadir un venue no
// requiere tocar este paquete.
func New(cfg Config, reg *registry.Registry, adapters map[string]ports.QuoteAdapter, prices ports.PriceSource, cycles ports.CycleStore) *Aggregator {
	if cfg.QuoteDeadline <= 0 {
		cfg.QuoteDeadline = DefaultConfig().QuoteDeadline
	}
	return &Aggregator{
		cfg:      cfg,
		reg:      reg,
		adapters: adapters,
		prices:   prices,
		cycles:   cycles,
	}
}

// outcome es el resultado independiente de un venue en un ciclo.
type outcome struct {
	venue string
	quote domain.Quote
	err   error
}

// GetQuotes devuelve la lista de quotes rankeada descendente por net output.
// Los errores por venue se contienen aquí y nunca abortan la agregación;
// solo si CERO venues respondieron con éxito devuelve domain.ErrNoQuotes.
// Input inválido se rechaza síncronamente antes de contactar ningún venue.
func (a *Aggregator) GetQuotes(ctx context.Context, req domain.SwapRequest) ([]domain.RankedQuote, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("aggregator.GetQuotes: %w", err)
	}

	deadline := req.Deadline
	if deadline.IsZero() {
		deadline = time.Now().Add(a.cfg.QuoteDeadline)
	}
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel() // aborta cualquier llamada en vuelo al salir

	eligible := a.reg.Eligible(req.ChainID())
	if len(eligible) == 0 {
		slog.Info("no eligible venues", "chain", req.ChainID())
		return []domain.RankedQuote{}, fmt.Errorf("aggregator.GetQuotes: %w", domain.ErrNoQuotes)
	}

	start := time.Now()
	quotes := a.fanOut(ctx, req, eligible)

	ranked := a.rank(req, quotes)

	a.saveCycle(req, len(eligible), ranked, time.Since(start))

	if len(ranked) == 0 {
		return []domain.RankedQuote{}, fmt.Errorf("aggregator.GetQuotes: %w", domain.ErrNoQuotes)
	}
	return ranked, nil
}

// fanOut lanza una goroutine por venue elegible y colecta hasta que todas
// terminen o venza el deadline. El canal va buffered al número de venues:
// los resultados tardíos quedan en el buffer y se descartan — ninguna
// goroutine rezagada bloquea ni muta estado tras el return.
func (a *Aggregator) fanOut(ctx context.Context, req domain.SwapRequest, eligible []domain.VenueDescriptor) []domain.Quote {
	resultCh := make(chan outcome, len(eligible))
	launched := 0

	for _, v := range eligible {
		adapter, ok := a.adapters[v.ID]
		if !ok {
			slog.Warn("venue without registered adapter", "venue", v.ID)
			continue
		}
		launched++
		go func(venueID string, ad ports.QuoteAdapter) {
			q, err := ad.GetQuote(ctx, req)
			resultCh <- outcome{venue: venueID, quote: q, err: err}
		}(v.ID, adapter)
	}

	quotes := make([]domain.Quote, 0, launched)
	for received := 0; received < launched; received++ {
		select {
		case out := <-resultCh:
			if q, ok := a.acceptOutcome(out); ok {
				quotes = append(quotes, q)
			}
		case <-ctx.Done():
			slog.Debug("quote deadline reached",
				"received", received,
				"launched", launched,
			)
			return quotes
		}
	}
	return quotes
}

// acceptOutcome clasifica el resultado de un venue. Solo los éxitos con
// invariantes válidos se retienen; el resto se loguea y se contiene.
func (a *Aggregator) acceptOutcome(out outcome) (domain.Quote, bool) {
	switch {
	case out.err == nil:
		if err := out.quote.Validate(); err != nil {
			slog.Warn("venue returned inconsistent quote", "venue", out.venue, "err", err)
			return domain.Quote{}, false
		}
		q := out.quote
		q.ID = uuid.New().String()
		slog.Debug("quote received",
			"venue", out.venue,
			"amount_out", q.AmountOut,
			"confidence", q.Confidence,
		)
		return q, true

	case errors.Is(out.err, domain.ErrUnsupported):
		// Esperado: el venue no sirve este par. No es un fallo.
		slog.Debug("venue does not support pair", "venue", out.venue)

	case errors.Is(out.err, domain.ErrCircuitOpen):
		slog.Debug("venue circuit open, skipped", "venue", out.venue)

	default:
		slog.Warn("venue quote failed", "venue", out.venue, "err", out.err)
	}
	return domain.Quote{}, false
}

// rank aplica el calculator a cada quote retenido y ordena: net output
// descendente, empate por confidence, luego por coste. Paso puro y
// single-threaded tras colectar todos los resultados.
func (a *Aggregator) rank(req domain.SwapRequest, quotes []domain.Quote) []domain.RankedQuote {
	ref := a.costReference(req)

	ranked := make([]domain.RankedQuote, 0, len(quotes))
	for _, q := range quotes {
		ranked = append(ranked, pricing.Evaluate(q, a.cfg.PlatformFeeBps, ref))
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return pricing.Less(ranked[i], ranked[j])
	})
	return ranked
}

// costReference resuelve una vez por request el precio del token nativo en
// términos del token de salida. Tolera que el price feed esté caído: el
// calculator degradará a ranking cost-unadjusted.
func (a *Aggregator) costReference(req domain.SwapRequest) pricing.CostReference {
	if a.prices == nil {
		return pricing.CostReference{}
	}
	native, ok := a.reg.NativeToken(req.ChainID())
	if !ok {
		return pricing.CostReference{}
	}

	// Contexto propio: el deadline del fan-out pudo vencer colectando un
	// venue lento, y eso no debe tumbar el lookup de precio.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	price, err := a.prices.Price(ctx, native, req.TokenOut)
	if err != nil || price <= 0 {
		slog.Warn("price reference unavailable, ranking cost-unadjusted",
			"chain", req.ChainID(),
			"err", err,
		)
		return pricing.CostReference{}
	}
	return pricing.CostReference{NativeToken: native, Price: price, Available: true}
}

// saveCycle persiste el resumen del ciclo (observabilidad, best effort).
func (a *Aggregator) saveCycle(req domain.SwapRequest, queried int, ranked []domain.RankedQuote, took time.Duration) {
	if a.cycles == nil {
		return
	}

	cycle := ports.AggregationCycle{
		RequestedAt:   time.Now(),
		ChainID:       req.ChainID(),
		TokenIn:       req.TokenIn.Symbol,
		TokenOut:      req.TokenOut.Symbol,
		AmountIn:      req.AmountIn.String(),
		VenuesQueried: queried,
		VenuesOK:      len(ranked),
		Duration:      took,
	}
	if len(ranked) > 0 {
		cycle.BestVenue = ranked[0].Quote.Venue
		cycle.BestNetOut = ranked[0].NetOutput.String()
	}

	// Contexto propio: el deadline del request ya pudo vencer.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.cycles.SaveCycle(ctx, cycle); err != nil {
		slog.Warn("cycle store error", "err", err)
	}
}
