// Package api expone el engine por HTTP: quotes agregados, construcción de
// executions y reporte de transiciones de estado. El API nunca firma ni
// emite nada; devuelve descriptors opacos para un signer externo.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alejandrodnm/swaproute/internal/aggregator"
	"github.com/alejandrodnm/swaproute/internal/domain"
	"github.com/alejandrodnm/swaproute/internal/registry"
	"github.com/alejandrodnm/swaproute/internal/resilience"
	"github.com/alejandrodnm/swaproute/internal/router"
)

// Server implementa los handlers HTTP del engine.
type Server struct {
	agg      *aggregator.Aggregator
	rtr      *router.Router
	reg      *registry.Registry
	wrappers map[string]*resilience.Wrapper
	log      *slog.Logger
}

// NewServer crea el servidor con sus dependencias ya construidas.
func NewServer(agg *aggregator.Aggregator, rtr *router.Router, reg *registry.Registry, wrappers map[string]*resilience.Wrapper, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{agg: agg, rtr: rtr, reg: reg, wrappers: wrappers, log: log}
}

// Routes monta el router chi con todos los endpoints v1.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/quotes", s.handleQuotes)
		r.Post("/executions", s.handleBuildExecution)
		r.Get("/executions/{id}", s.handleGetExecution)
		r.Post("/executions/{id}/status", s.handleUpdateStatus)
		r.Get("/venues", s.handleVenues)
	})

	return r
}

// --- request/response types ---

type tokenSpec struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
}

func (t tokenSpec) toDomain(chainID uint64) domain.Token {
	return domain.Token{
		Symbol:   t.Symbol,
		ChainID:  chainID,
		Address:  t.Address,
		Decimals: t.Decimals,
	}
}

type quotesRequest struct {
	ChainID     uint64    `json:"chain_id"`
	TokenIn     tokenSpec `json:"token_in"`
	TokenOut    tokenSpec `json:"token_out"`
	AmountIn    string    `json:"amount_in"` // unidades mínimas, decimal
	SlippageBps int       `json:"slippage_bps"`
	DeadlineMs  int64     `json:"deadline_ms,omitempty"`
}

type quoteView struct {
	ID             string    `json:"id"`
	Venue          string    `json:"venue"`
	AmountOut      string    `json:"amount_out"`
	NetOutput      string    `json:"net_output"`
	PriceImpactBps int       `json:"price_impact_bps"`
	GasEstimate    uint64    `json:"gas_estimate"`
	CostNative     string    `json:"cost_native,omitempty"`
	Confidence     float64   `json:"confidence"`
	Route          []hopView `json:"route,omitempty"`
	CostAdjusted   bool      `json:"cost_adjusted"`
	AgeMs          int64     `json:"age_ms"`
}

type hopView struct {
	Venue    string `json:"venue"`
	TokenIn  string `json:"token_in"`
	TokenOut string `json:"token_out"`
	FeeBps   int    `json:"fee_bps"`
}

type executionRequest struct {
	QuoteID     string `json:"quote_id"`
	SlippageBps int    `json:"slippage_bps"`
}

type executionView struct {
	ID           string    `json:"id"`
	QuoteID      string    `json:"quote_id"`
	Venue        string    `json:"venue"`
	Target       string    `json:"target"`
	Payload      []byte    `json:"payload"` // base64 en JSON
	Value        string    `json:"value"`
	GasLimit     uint64    `json:"gas_limit"`
	MinAmountOut string    `json:"min_amount_out"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type venueView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Active    bool   `json:"active"`
	FeeBps    int    `json:"fee_bps"`
	State     string `json:"circuit_state,omitempty"`
	Successes uint64 `json:"successes"`
	Failures  uint64 `json:"failures"`
	Rejected  uint64 `json:"rejected"`
}

// --- handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	var req quotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, ok := new(big.Int).SetString(req.AmountIn, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, "amount_in must be a decimal integer")
		return
	}

	swap := domain.SwapRequest{
		TokenIn:     req.TokenIn.toDomain(req.ChainID),
		TokenOut:    req.TokenOut.toDomain(req.ChainID),
		AmountIn:    amount,
		SlippageBps: req.SlippageBps,
	}
	if req.DeadlineMs > 0 {
		swap.Deadline = time.Now().Add(time.Duration(req.DeadlineMs) * time.Millisecond)
	}

	ranked, err := s.agg.GetQuotes(r.Context(), swap)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrNoQuotes):
			writeError(w, http.StatusServiceUnavailable, "no quotes available")
		default:
			s.log.Error("quotes request failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	// Los quotes quedan resolubles por ID para POST /v1/executions.
	s.rtr.Remember(ranked)

	now := time.Now()
	views := make([]quoteView, 0, len(ranked))
	for _, rq := range ranked {
		views = append(views, toQuoteView(rq, now))
	}
	writeJSON(w, http.StatusOK, map[string]any{"quotes": views})
}

func (s *Server) handleBuildExecution(w http.ResponseWriter, r *http.Request) {
	var req executionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.QuoteID == "" {
		writeError(w, http.StatusBadRequest, "quote_id is required")
		return
	}

	exec, err := s.rtr.BuildExecutionByID(r.Context(), req.QuoteID, req.SlippageBps)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrQuoteNotFound):
			writeError(w, http.StatusNotFound, "quote not found or expired")
		case errors.Is(err, domain.ErrStaleQuote):
			writeError(w, http.StatusConflict, "quote is stale, re-fetch quotes")
		case errors.Is(err, domain.ErrSlippageExceeded):
			writeError(w, http.StatusUnprocessableEntity, "slippage tolerance exceeded")
		case errors.Is(err, domain.ErrExecutionExists):
			writeError(w, http.StatusConflict, "execution already active for quote")
		default:
			s.log.Error("build execution failed", "quote_id", req.QuoteID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, toExecutionView(exec))
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	exec, ok := s.rtr.GetExecution(id)
	if !ok {
		writeError(w, http.StatusNotFound, "execution not found")
		return
	}
	writeJSON(w, http.StatusOK, toExecutionView(exec))
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	exec, err := s.rtr.UpdateStatus(r.Context(), id, domain.ExecutionStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrExecutionNotFound):
			writeError(w, http.StatusNotFound, "execution not found")
		case errors.Is(err, domain.ErrInvalidTransition):
			writeError(w, http.StatusConflict, err.Error())
		default:
			s.log.Error("status update failed", "execution_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, toExecutionView(exec))
}

func (s *Server) handleVenues(w http.ResponseWriter, _ *http.Request) {
	venues := s.reg.All()
	views := make([]venueView, 0, len(venues))
	for _, v := range venues {
		vv := venueView{
			ID:     v.ID,
			Name:   v.Name,
			Kind:   v.Kind,
			Active: v.Active,
			FeeBps: v.FeeBps(),
		}
		if wr, ok := s.wrappers[v.ID]; ok {
			vv.State = wr.State().String()
			c := wr.Counters()
			vv.Successes = c.Successes
			vv.Failures = c.Failures
			vv.Rejected = c.Rejected
		}
		views = append(views, vv)
	}
	writeJSON(w, http.StatusOK, map[string]any{"venues": views})
}

// --- view mapping ---

func toQuoteView(rq domain.RankedQuote, now time.Time) quoteView {
	q := rq.Quote
	v := quoteView{
		ID:             q.ID,
		Venue:          q.Venue,
		AmountOut:      q.AmountOut.String(),
		NetOutput:      rq.NetOutput.String(),
		PriceImpactBps: q.PriceImpactBps,
		GasEstimate:    q.GasEstimate,
		Confidence:     q.Confidence,
		CostAdjusted:   rq.CostAdjusted,
		AgeMs:          q.Age(now).Milliseconds(),
	}
	if q.CostNative != nil && q.CostNative.Sign() > 0 {
		v.CostNative = q.CostNative.String()
	}
	for _, hop := range q.Route {
		v.Route = append(v.Route, hopView{
			Venue:    hop.Venue,
			TokenIn:  hop.TokenIn.Symbol,
			TokenOut: hop.TokenOut.Symbol,
			FeeBps:   hop.FeeBps,
		})
	}
	return v
}

func toExecutionView(e domain.ExecutionDescriptor) executionView {
	return executionView{
		ID:           e.ID,
		QuoteID:      e.Quote.ID,
		Venue:        e.Quote.Venue,
		Target:       e.Target,
		Payload:      e.Payload,
		Value:        e.Value.String(),
		GasLimit:     e.GasLimit,
		MinAmountOut: e.MinAmountOut.String(),
		Status:       string(e.Status),
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
