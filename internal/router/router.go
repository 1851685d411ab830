// Package router convierte un quote aceptado en un execution descriptor
// para un signer externo, y aplica las transiciones de estado que el caller
// reporta. No firma ni emite nada on-chain.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/swaproute/internal/domain"
	"github.com/alejandrodnm/swaproute/internal/ports"
	"github.com/alejandrodnm/swaproute/internal/registry"
)

// Config controla la validación de ejecución.
type Config struct {
	// FreshnessWindow es la antigüedad máxima de un quote ejecutable.
	FreshnessWindow time.Duration
	// GasLimitMarginPct infla la estimación de gas del quote (20 = +20%).
	GasLimitMarginPct int
}

// DefaultConfig devuelve los defaults de router.
func DefaultConfig() Config {
	return Config{
		FreshnessWindow:   10 * time.Minute,
		GasLimitMarginPct: 20,
	}
}

// Router construye execution descriptors y gobierna sus transiciones de
// estado. Mantiene los quotes recientes para resolver BuildExecution por
// quote ID (interfaz inbound) y garantiza un único descriptor activo por
// quote aceptado.
type Router struct {
	cfg   Config
	reg   *registry.Registry
	store ports.ExecutionStore // opcional
	now   func() time.Time

	mu         sync.Mutex
	quotes     map[string]domain.Quote                // quote ID → quote reciente
	executions map[string]*domain.ExecutionDescriptor // exec ID → descriptor
	byQuote    map[string]string                      // quote ID → exec ID activo
}

// New crea un Router.
func New(cfg Config, reg *registry.Registry, store ports.ExecutionStore) *Router {
	def := DefaultConfig()
	if cfg.FreshnessWindow <= 0 {
		cfg.FreshnessWindow = def.FreshnessWindow
	}
	if cfg.GasLimitMarginPct <= 0 {
		cfg.GasLimitMarginPct = def.GasLimitMarginPct
	}
	return &Router{
		cfg:        cfg,
		reg:        reg,
		store:      store,
		now:        time.Now,
		quotes:     make(map[string]domain.Quote),
		executions: make(map[string]*domain.ExecutionDescriptor),
		byQuote:    make(map[string]string),
	}
}

// Remember registra los quotes de un ciclo para poder resolverlos por ID
// en BuildExecutionByID. Purga los que ya salieron de la ventana de frescura.
func (r *Router) Remember(ranked []domain.RankedQuote) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, q := range r.quotes {
		if !q.Fresh(now, r.cfg.FreshnessWindow) {
			delete(r.quotes, id)
		}
	}
	for _, rq := range ranked {
		if rq.Quote.ID != "" {
			r.quotes[rq.Quote.ID] = rq.Quote
		}
	}
}

// BuildExecutionByID resuelve un quote reciente por ID y construye su
// execution descriptor (la operación inbound del API).
func (r *Router) BuildExecutionByID(ctx context.Context, quoteID string, slippageBps int) (domain.ExecutionDescriptor, error) {
	r.mu.Lock()
	q, ok := r.quotes[quoteID]
	r.mu.Unlock()
	if !ok {
		return domain.ExecutionDescriptor{}, fmt.Errorf("router.BuildExecutionByID: %w: %s", domain.ErrQuoteNotFound, quoteID)
	}
	return r.BuildExecution(ctx, q, slippageBps)
}

// BuildExecution valida frescura y slippage del quote y produce el
// descriptor opaco para el signer externo. Errores de ejecución
// (StaleQuote, SlippageExceeded) son fallos duros para el caller: señalan
// un intento de ejecución inseguro.
func (r *Router) BuildExecution(ctx context.Context, q domain.Quote, slippageBps int) (domain.ExecutionDescriptor, error) {
	now := r.now()

	if !q.Fresh(now, r.cfg.FreshnessWindow) {
		return domain.ExecutionDescriptor{}, fmt.Errorf(
			"router.BuildExecution: quote %s aged %s (window %s): %w",
			q.ID, q.Age(now).Round(time.Second), r.cfg.FreshnessWindow, domain.ErrStaleQuote)
	}

	if q.PriceImpactBps > slippageBps {
		return domain.ExecutionDescriptor{}, fmt.Errorf(
			"router.BuildExecution: price impact %d bps exceeds tolerance %d bps: %w",
			q.PriceImpactBps, slippageBps, domain.ErrSlippageExceeded)
	}

	venue, ok := r.reg.Venue(q.Venue)
	if !ok {
		return domain.ExecutionDescriptor{}, fmt.Errorf("router.BuildExecution: unknown venue %q", q.Venue)
	}

	payload, err := encodePayload(q, slippageBps)
	if err != nil {
		return domain.ExecutionDescriptor{}, fmt.Errorf("router.BuildExecution: encode payload: %w", err)
	}

	value := big.NewInt(0)
	if q.TokenIn.IsNative() {
		value = new(big.Int).Set(q.AmountIn)
	}

	exec := domain.ExecutionDescriptor{
		ID:           uuid.New().String(),
		Quote:        q,
		Target:       venue.Target,
		Payload:      payload,
		Value:        value,
		GasLimit:     q.GasEstimate * uint64(100+r.cfg.GasLimitMarginPct) / 100,
		MinAmountOut: q.MinAmountOut(slippageBps),
		Status:       domain.ExecStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	r.mu.Lock()
	if activeID, exists := r.byQuote[q.ID]; exists && !r.executions[activeID].Status.Terminal() {
		r.mu.Unlock()
		return domain.ExecutionDescriptor{}, fmt.Errorf(
			"router.BuildExecution: %w: quote %s → execution %s", domain.ErrExecutionExists, q.ID, activeID)
	}
	r.executions[exec.ID] = &exec
	if q.ID != "" {
		r.byQuote[q.ID] = exec.ID
	}
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.SaveExecution(ctx, exec); err != nil {
			slog.Warn("execution store error", "execution", exec.ID, "err", err)
		}
	}

	slog.Info("execution built",
		"execution", exec.ID,
		"venue", q.Venue,
		"min_out", exec.MinAmountOut,
		"gas_limit", exec.GasLimit,
	)
	return exec, nil
}

// UpdateStatus aplica una transición reportada por el caller
// (submitted/confirmed/failed). Solo se admiten transiciones hacia delante.
func (r *Router) UpdateStatus(ctx context.Context, execID string, next domain.ExecutionStatus) (domain.ExecutionDescriptor, error) {
	r.mu.Lock()
	exec, ok := r.executions[execID]
	if !ok {
		r.mu.Unlock()
		return domain.ExecutionDescriptor{}, fmt.Errorf("router.UpdateStatus: %w: %q", domain.ErrExecutionNotFound, execID)
	}

	from := exec.Status
	if err := exec.Transition(next, r.now()); err != nil {
		r.mu.Unlock()
		return domain.ExecutionDescriptor{}, fmt.Errorf("router.UpdateStatus: %w", err)
	}
	snapshot := *exec
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.RecordTransition(ctx, execID, from, next, snapshot.UpdatedAt); err != nil {
			slog.Warn("transition store error", "execution", execID, "err", err)
		}
	}

	slog.Info("execution status updated", "execution", execID, "from", from, "to", next)
	return snapshot, nil
}

// GetExecution devuelve el descriptor actual por ID.
func (r *Router) GetExecution(id string) (domain.ExecutionDescriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exec, ok := r.executions[id]
	if !ok {
		return domain.ExecutionDescriptor{}, false
	}
	return *exec, true
}

// payload es la forma serializada que consume el signer externo. Opaca para
// el resto del sistema: solo el router la construye.
type payload struct {
	Venue        string   `json:"venue"`
	TokenIn      string   `json:"token_in"`
	TokenOut     string   `json:"token_out"`
	AmountIn     string   `json:"amount_in"`
	MinAmountOut string   `json:"min_amount_out"`
	SlippageBps  int      `json:"slippage_bps"`
	Route        []hopRef `json:"route"`
}

type hopRef struct {
	Venue     string `json:"venue"`
	TokenIn   string `json:"token_in"`
	TokenOut  string `json:"token_out"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
}

func encodePayload(q domain.Quote, slippageBps int) ([]byte, error) {
	p := payload{
		Venue:        q.Venue,
		TokenIn:      q.TokenIn.Address,
		TokenOut:     q.TokenOut.Address,
		AmountIn:     q.AmountIn.String(),
		MinAmountOut: q.MinAmountOut(slippageBps).String(),
		SlippageBps:  slippageBps,
	}
	for _, h := range q.Route {
		p.Route = append(p.Route, hopRef{
			Venue:     h.Venue,
			TokenIn:   h.TokenIn.Address,
			TokenOut:  h.TokenOut.Address,
			AmountIn:  h.AmountIn.String(),
			AmountOut: h.AmountOut.String(),
		})
	}
	return json.Marshal(p)
}
