// Package oneinch implementa ports.QuoteAdapter contra la API de quotes
// estilo 1inch (aggregation protocol v6). Normaliza respuesta y errores a
// la taxonomía de domain; no reintenta ni ratelimita — eso es del wrapper.
package oneinch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/alejandrodnm/swaproute/internal/domain"
	"github.com/alejandrodnm/swaproute/internal/ports"
)

const (
	defaultBase = "https://api.1inch.dev"

	// nativePlaceholder es la convención de la API para el token nativo.
	nativePlaceholder = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"

	// La API devuelve el routing real del venue — confianza alta.
	confidence = 0.95
)

// Client es el adapter del venue 1inch.
type Client struct {
	http        *http.Client
	base        string
	apiKey      string
	venueID     string
	gasPriceWei *big.Int // precio de gas asumido para estimar coste nativo
}

var _ ports.QuoteAdapter = (*Client)(nil)

// NewClient crea el adapter. Si base está vacío usa la URL de producción.
// El timeout real por llamada lo impone el contexto del wrapper; el del
// http.Client es solo una red de seguridad.
func NewClient(venueID, base, apiKey string, gasPriceWei *big.Int) *Client {
	if base == "" {
		base = defaultBase
	}
	if gasPriceWei == nil || gasPriceWei.Sign() <= 0 {
		gasPriceWei = big.NewInt(20_000_000_000) // 20 gwei
	}
	return &Client{
		http:        &http.Client{Timeout: 30 * time.Second},
		base:        base,
		apiKey:      apiKey,
		venueID:     venueID,
		gasPriceWei: gasPriceWei,
	}
}

// Venue devuelve el ID del venue.
func (c *Client) Venue() string { return c.venueID }

// GetQuote pide un quote a GET /swap/v6.0/{chain}/quote.
func (c *Client) GetQuote(ctx context.Context, req domain.SwapRequest) (domain.Quote, error) {
	q := url.Values{}
	q.Set("src", tokenAddress(req.TokenIn))
	q.Set("dst", tokenAddress(req.TokenOut))
	q.Set("amount", req.AmountIn.String())
	q.Set("includeGas", "true")
	q.Set("includeProtocols", "true")

	endpoint := fmt.Sprintf("%s/swap/v6.0/%d/quote?%s", c.base, req.ChainID(), q.Encode())

	var resp quoteResponse
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("oneinch.GetQuote: %w", err)
	}

	return mapQuote(c.venueID, req, resp, c.gasPriceWei)
}

// get hace un GET único (sin retries) y normaliza los errores HTTP.
func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return domain.ErrTimeout
		}
		return fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		// 1inch responde 400 con "insufficient liquidity" para pares que
		// no puede servir — esperado, no es un fallo del venue.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s", domain.ErrUnsupported, string(body))
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: status %d", domain.ErrUpstream, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", domain.ErrUpstream, err)
	}
	return nil
}

// tokenAddress devuelve la address del token, con el placeholder de la API
// para el token nativo.
func tokenAddress(t domain.Token) string {
	if t.IsNative() {
		return nativePlaceholder
	}
	return t.Address
}
