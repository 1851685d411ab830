// Package zerox implementa ports.QuoteAdapter contra la API de swap estilo
// 0x (/swap/v1/price). A diferencia de 1inch, la API reporta price impact y
// gas price estimados, así que el coste nativo sale de la propia respuesta.
package zerox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alejandrodnm/swaproute/internal/domain"
	"github.com/alejandrodnm/swaproute/internal/ports"
)

const (
	defaultBase = "https://api.0x.org"

	// Routing indicativo (price, no firm quote) — confianza media-alta.
	confidence = 0.90
)

// Client es el adapter del venue 0x.
type Client struct {
	http    *http.Client
	base    string
	apiKey  string
	venueID string
}

var _ ports.QuoteAdapter = (*Client)(nil)

// NewClient crea el adapter; base vacío usa la URL de producción.
func NewClient(venueID, base, apiKey string) *Client {
	if base == "" {
		base = defaultBase
	}
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		base:    base,
		apiKey:  apiKey,
		venueID: venueID,
	}
}

// Venue devuelve el ID del venue.
func (c *Client) Venue() string { return c.venueID }

// priceResponse es la respuesta raw de GET /swap/v1/price.
type priceResponse struct {
	BuyAmount            string      `json:"buyAmount"`
	EstimatedPriceImpact string      `json:"estimatedPriceImpact"` // porcentaje, p.ej. "0.23"
	Gas                  string      `json:"gas"`
	GasPrice             string      `json:"gasPrice"`
	Sources              []sourceRaw `json:"sources"`
}

type sourceRaw struct {
	Name       string `json:"name"`
	Proportion string `json:"proportion"`
}

// GetQuote pide un price a GET /swap/v1/price.
func (c *Client) GetQuote(ctx context.Context, req domain.SwapRequest) (domain.Quote, error) {
	q := url.Values{}
	q.Set("sellToken", sellable(req.TokenIn))
	q.Set("buyToken", sellable(req.TokenOut))
	q.Set("sellAmount", req.AmountIn.String())
	q.Set("chainId", strconv.FormatUint(req.ChainID(), 10))

	endpoint := c.base + "/swap/v1/price?" + q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("zerox.GetQuote: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("0x-api-key", c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return domain.Quote{}, fmt.Errorf("zerox.GetQuote: %w", domain.ErrTimeout)
		}
		return domain.Quote{}, fmt.Errorf("zerox.GetQuote: %w: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		// 0x devuelve 400 con validation errors para pares no servidos.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Quote{}, fmt.Errorf("zerox.GetQuote: %w: %s", domain.ErrUnsupported, string(body))
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.Quote{}, fmt.Errorf("zerox.GetQuote: %w", domain.ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		return domain.Quote{}, fmt.Errorf("zerox.GetQuote: %w: status %d", domain.ErrUpstream, resp.StatusCode)
	}

	var raw priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return domain.Quote{}, fmt.Errorf("zerox.GetQuote: %w: decode: %v", domain.ErrUpstream, err)
	}

	return mapPrice(c.venueID, req, raw)
}

// mapPrice convierte la respuesta raw a domain.Quote.
func mapPrice(venueID string, req domain.SwapRequest, raw priceResponse) (domain.Quote, error) {
	out, ok := new(big.Int).SetString(raw.BuyAmount, 10)
	if !ok || out.Sign() < 0 {
		return domain.Quote{}, fmt.Errorf("zerox.GetQuote: %w: bad buyAmount %q", domain.ErrUpstream, raw.BuyAmount)
	}

	gas, _ := strconv.ParseUint(raw.Gas, 10, 64)
	gasPrice, ok := new(big.Int).SetString(raw.GasPrice, 10)
	if !ok {
		gasPrice = big.NewInt(0)
	}

	return domain.Quote{
		Venue:          venueID,
		TokenIn:        req.TokenIn,
		TokenOut:       req.TokenOut,
		AmountIn:       new(big.Int).Set(req.AmountIn),
		AmountOut:      out,
		PriceImpactBps: impactBps(raw.EstimatedPriceImpact),
		GasEstimate:    gas,
		CostNative:     new(big.Int).Mul(new(big.Int).SetUint64(gas), gasPrice),
		Route: []domain.RouteHop{{
			Venue:     dominantSource(raw.Sources),
			TokenIn:   req.TokenIn,
			TokenOut:  req.TokenOut,
			AmountIn:  new(big.Int).Set(req.AmountIn),
			AmountOut: new(big.Int).Set(out),
		}},
		Confidence: confidence,
		CreatedAt:  time.Now(),
	}, nil
}

// impactBps convierte el porcentaje string de la API a basis points.
func impactBps(pct string) int {
	v, err := strconv.ParseFloat(pct, 64)
	if err != nil || v < 0 {
		return 0
	}
	return int(math.Round(v * 100))
}

// dominantSource devuelve la liquidity source con mayor proporción.
func dominantSource(sources []sourceRaw) string {
	best, bestProp := "0x", -1.0
	for _, s := range sources {
		p, err := strconv.ParseFloat(s.Proportion, 64)
		if err != nil {
			continue
		}
		if p > bestProp {
			best, bestProp = s.Name, p
		}
	}
	return best
}

// sellable devuelve la address, o el símbolo para el token nativo (la API
// acepta "ETH"/"MATIC" directamente).
func sellable(t domain.Token) string {
	if t.IsNative() {
		return t.Symbol
	}
	return t.Address
}
