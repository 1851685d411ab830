package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alejandrodnm/swaproute/internal/aggregator"
	"github.com/alejandrodnm/swaproute/internal/api"
	"github.com/alejandrodnm/swaproute/internal/domain"
	"github.com/alejandrodnm/swaproute/internal/ports"
	"github.com/alejandrodnm/swaproute/internal/registry"
	"github.com/alejandrodnm/swaproute/internal/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- stubs ---

type stubAdapter struct {
	venue string
	out   int64
	conf  float64
	err   error
}

func (s *stubAdapter) Venue() string { return s.venue }

func (s *stubAdapter) GetQuote(_ context.Context, req domain.SwapRequest) (domain.Quote, error) {
	if s.err != nil {
		return domain.Quote{}, s.err
	}
	return domain.Quote{
		Venue:      s.venue,
		TokenIn:    req.TokenIn,
		TokenOut:   req.TokenOut,
		AmountIn:   req.AmountIn,
		AmountOut:  big.NewInt(s.out),
		Confidence: s.conf,
		CreatedAt:  time.Now(),
	}, nil
}

// --- wiring ---

func newTestServer(t *testing.T, adapters ...*stubAdapter) *httptest.Server {
	t.Helper()

	venues := make([]domain.VenueDescriptor, 0, len(adapters))
	m := make(map[string]ports.QuoteAdapter, len(adapters))
	for _, a := range adapters {
		venues = append(venues, domain.VenueDescriptor{
			ID: a.venue, Name: a.venue, Kind: "aggregator",
			Target: "0x" + a.venue, Chains: []uint64{1}, Active: true,
		})
		m[a.venue] = a
	}
	reg, err := registry.New(venues, map[uint64]domain.Token{
		1: {Symbol: "ETH", ChainID: 1, Decimals: 18},
	})
	require.NoError(t, err)

	agg := aggregator.New(aggregator.Config{QuoteDeadline: time.Second}, reg, m, nil, nil)
	rtr := router.New(router.Config{}, reg, nil)
	srv := api.NewServer(agg, rtr, reg, nil, nil)

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func quotesBody() []byte {
	return []byte(`{
		"chain_id": 1,
		"token_in": {"symbol": "WETH", "address": "0xc02a", "decimals": 18},
		"token_out": {"symbol": "USDC", "address": "0xa0b8", "decimals": 6},
		"amount_in": "1000000000000000000",
		"slippage_bps": 50
	}`)
}

func postJSON(t *testing.T, url string, body []byte) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

// --- tests ---

func TestQuotes_ReturnsRankedList(t *testing.T) {
	ts := newTestServer(t,
		&stubAdapter{venue: "oneinch", out: 3_000_000_000, conf: 0.95},
		&stubAdapter{venue: "zerox", out: 2_990_000_000, conf: 0.90},
	)

	resp, body := postJSON(t, ts.URL+"/v1/quotes", quotesBody())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	quotes := body["quotes"].([]any)
	require.Len(t, quotes, 2)

	first := quotes[0].(map[string]any)
	assert.Equal(t, "oneinch", first["venue"])
	assert.NotEmpty(t, first["id"])
	assert.NotEmpty(t, first["net_output"])
}

func TestQuotes_InvalidBody(t *testing.T) {
	ts := newTestServer(t, &stubAdapter{venue: "oneinch", out: 100, conf: 0.9})

	resp, _ := postJSON(t, ts.URL+"/v1/quotes", []byte(`not json`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQuotes_InvalidAmount(t *testing.T) {
	ts := newTestServer(t, &stubAdapter{venue: "oneinch", out: 100, conf: 0.9})

	body := bytes.Replace(quotesBody(), []byte(`"1000000000000000000"`), []byte(`"1.5e18"`), 1)
	resp, decoded := postJSON(t, ts.URL+"/v1/quotes", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decoded["error"], "amount_in")
}

func TestQuotes_AllVenuesFailing(t *testing.T) {
	ts := newTestServer(t, &stubAdapter{venue: "oneinch", err: domain.ErrUpstream})

	resp, _ := postJSON(t, ts.URL+"/v1/quotes", quotesBody())
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestExecutionLifecycle_OverHTTP(t *testing.T) {
	ts := newTestServer(t, &stubAdapter{venue: "oneinch", out: 3_000_000_000, conf: 0.95})

	// 1. Quotes
	resp, body := postJSON(t, ts.URL+"/v1/quotes", quotesBody())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	quoteID := body["quotes"].([]any)[0].(map[string]any)["id"].(string)

	// 2. Build execution
	execBody := []byte(fmt.Sprintf(`{"quote_id": %q, "slippage_bps": 50}`, quoteID))
	resp, exec := postJSON(t, ts.URL+"/v1/executions", execBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "pending", exec["status"])
	assert.Equal(t, quoteID, exec["quote_id"])
	execID := exec["id"].(string)

	// 3. Duplicate build rejected while active
	resp, _ = postJSON(t, ts.URL+"/v1/executions", execBody)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// 4. Report submitted
	resp, updated := postJSON(t, ts.URL+"/v1/executions/"+execID+"/status", []byte(`{"status": "submitted"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "submitted", updated["status"])

	// 5. Backwards transition rejected
	resp, _ = postJSON(t, ts.URL+"/v1/executions/"+execID+"/status", []byte(`{"status": "pending"}`))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// 6. Fetch by ID
	getResp, err := http.Get(ts.URL + "/v1/executions/" + execID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusOK, getResp.StatusCode)
}

func TestBuildExecution_UnknownQuote(t *testing.T) {
	ts := newTestServer(t, &stubAdapter{venue: "oneinch", out: 100, conf: 0.9})

	resp, _ := postJSON(t, ts.URL+"/v1/executions", []byte(`{"quote_id": "nope", "slippage_bps": 50}`))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestVenues_ListsDescriptors(t *testing.T) {
	ts := newTestServer(t,
		&stubAdapter{venue: "oneinch", out: 100, conf: 0.9},
		&stubAdapter{venue: "paraswap", out: 90, conf: 0.85},
	)

	resp, err := http.Get(ts.URL + "/v1/venues")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body["venues"], 2)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &stubAdapter{venue: "oneinch", out: 100, conf: 0.9})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
