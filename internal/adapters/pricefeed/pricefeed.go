// Package pricefeed implementa ports.PriceSource. El precio de referencia
// lo suministra el componente externo de market data; aquí viven el client
// HTTP de su endpoint spot y una fuente estática para tests y arranques
// sin feed. El engine tolera que cualquiera de los dos falle.
package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/alejandrodnm/swaproute/internal/domain"
	"github.com/alejandrodnm/swaproute/internal/ports"
)

// Static sirve precios fijos desde configuración. Clave "BASE/QUOTE".
type Static struct {
	mu     sync.RWMutex
	prices map[string]float64
}

var _ ports.PriceSource = (*Static)(nil)

// NewStatic crea la fuente estática.
func NewStatic(prices map[string]float64) *Static {
	cp := make(map[string]float64, len(prices))
	for k, v := range prices {
		cp[k] = v
	}
	return &Static{prices: cp}
}

// Price devuelve el precio configurado para el par, directo o invertido.
func (s *Static) Price(_ context.Context, base, quote domain.Token) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.prices[base.Symbol+"/"+quote.Symbol]; ok && p > 0 {
		return p, nil
	}
	if p, ok := s.prices[quote.Symbol+"/"+base.Symbol]; ok && p > 0 {
		return 1 / p, nil
	}
	return 0, fmt.Errorf("pricefeed: no price for %s/%s", base.Symbol, quote.Symbol)
}

// Set actualiza un par (el feed externo empuja refrescos por aquí).
func (s *Static) Set(pair string, price float64) {
	s.mu.Lock()
	s.prices[pair] = price
	s.mu.Unlock()
}

// HTTP consulta el endpoint spot del servicio de market data:
// GET {base}/spot?base=ETH&quote=USDC → {"price": 3000.12, "ts": ...}.
type HTTP struct {
	http *http.Client
	base string
}

var _ ports.PriceSource = (*HTTP)(nil)

// NewHTTP crea el client del feed.
func NewHTTP(base string) *HTTP {
	return &HTTP{
		http: &http.Client{Timeout: 2 * time.Second},
		base: base,
	}
}

// spotResponse es la respuesta raw del endpoint.
type spotResponse struct {
	Price float64 `json:"price"`
	TS    int64   `json:"ts"`
}

// Price consulta el spot. Cualquier fallo se devuelve como error simple:
// el caller (aggregator) degrada a ranking cost-unadjusted.
func (h *HTTP) Price(ctx context.Context, base, quote domain.Token) (float64, error) {
	q := url.Values{}
	q.Set("base", base.Symbol)
	q.Set("quote", quote.Symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.base+"/spot?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}

	resp, err := h.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("pricefeed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("pricefeed: status %d", resp.StatusCode)
	}

	var raw spotResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return 0, fmt.Errorf("pricefeed: decode: %w", err)
	}
	if raw.Price <= 0 {
		return 0, errors.New("pricefeed: non-positive price")
	}
	return raw.Price, nil
}
