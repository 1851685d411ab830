// Package paraswap implementa ports.QuoteAdapter contra la API de precios
// estilo ParaSwap (/prices). Es el único adapter del conjunto que reporta
// el routing multi-hop con amounts intermedios, así que el route del quote
// conserva los tramos reales.
package paraswap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alejandrodnm/swaproute/internal/domain"
	"github.com/alejandrodnm/swaproute/internal/ports"
)

const (
	defaultBase = "https://apiv5.paraswap.io"

	// ParaSwap aproxima el routing en /prices (el split real se decide al
	// construir la transacción) — confianza menor que los demás adapters.
	confidence = 0.85
)

// Client es el adapter del venue ParaSwap.
type Client struct {
	http        *http.Client
	base        string
	venueID     string
	gasPriceWei *big.Int
}

var _ ports.QuoteAdapter = (*Client)(nil)

// NewClient crea el adapter; base vacío usa la URL de producción.
func NewClient(venueID, base string, gasPriceWei *big.Int) *Client {
	if base == "" {
		base = defaultBase
	}
	if gasPriceWei == nil || gasPriceWei.Sign() <= 0 {
		gasPriceWei = big.NewInt(20_000_000_000)
	}
	return &Client{
		http:        &http.Client{Timeout: 30 * time.Second},
		base:        base,
		venueID:     venueID,
		gasPriceWei: gasPriceWei,
	}
}

// Venue devuelve el ID del venue.
func (c *Client) Venue() string { return c.venueID }

// GetQuote pide un price route a GET /prices.
func (c *Client) GetQuote(ctx context.Context, req domain.SwapRequest) (domain.Quote, error) {
	q := url.Values{}
	q.Set("srcToken", req.TokenIn.Address)
	q.Set("destToken", req.TokenOut.Address)
	q.Set("amount", req.AmountIn.String())
	q.Set("srcDecimals", strconv.Itoa(req.TokenIn.Decimals))
	q.Set("destDecimals", strconv.Itoa(req.TokenOut.Decimals))
	q.Set("side", "SELL")
	q.Set("network", strconv.FormatUint(req.ChainID(), 10))

	endpoint := c.base + "/prices?" + q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("paraswap.GetQuote: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return domain.Quote{}, fmt.Errorf("paraswap.GetQuote: %w", domain.ErrTimeout)
		}
		return domain.Quote{}, fmt.Errorf("paraswap.GetQuote: %w: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound:
		// "No routes found with enough liquidity" llega como 404/400.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Quote{}, fmt.Errorf("paraswap.GetQuote: %w: %s", domain.ErrUnsupported, string(body))
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.Quote{}, fmt.Errorf("paraswap.GetQuote: %w", domain.ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		return domain.Quote{}, fmt.Errorf("paraswap.GetQuote: %w: status %d", domain.ErrUpstream, resp.StatusCode)
	}

	var raw pricesResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return domain.Quote{}, fmt.Errorf("paraswap.GetQuote: %w: decode: %v", domain.ErrUpstream, err)
	}

	quote, err := mapPriceRoute(c.venueID, req, raw.PriceRoute, c.gasPriceWei)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("paraswap.GetQuote: %w", err)
	}
	return quote, nil
}
