package pricefeed_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alejandrodnm/swaproute/internal/adapters/pricefeed"
	"github.com/alejandrodnm/swaproute/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	eth  = domain.Token{Symbol: "ETH", ChainID: 1, Decimals: 18}
	usdc = domain.Token{Symbol: "USDC", ChainID: 1, Address: "0xa0b8", Decimals: 6}
)

func TestStatic_DirectAndInverse(t *testing.T) {
	src := pricefeed.NewStatic(map[string]float64{"ETH/USDC": 3000})

	p, err := src.Price(context.Background(), eth, usdc)
	require.NoError(t, err)
	assert.InDelta(t, 3000, p, 0.001)

	// Par invertido
	p, err = src.Price(context.Background(), usdc, eth)
	require.NoError(t, err)
	assert.InDelta(t, 1.0/3000, p, 1e-9)

	// Par desconocido
	dai := domain.Token{Symbol: "DAI", ChainID: 1, Address: "0x6b17", Decimals: 18}
	_, err = src.Price(context.Background(), eth, dai)
	assert.Error(t, err)
}

func TestHTTP_Spot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/spot", r.URL.Path)
		assert.Equal(t, "ETH", r.URL.Query().Get("base"))
		assert.Equal(t, "USDC", r.URL.Query().Get("quote"))
		w.Write([]byte(`{"price": 2987.42, "ts": 1767225600}`))
	}))
	defer srv.Close()

	p, err := pricefeed.NewHTTP(srv.URL).Price(context.Background(), eth, usdc)

	require.NoError(t, err)
	assert.InDelta(t, 2987.42, p, 0.001)
}

func TestHTTP_FailuresAreSoft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := pricefeed.NewHTTP(srv.URL).Price(context.Background(), eth, usdc)
	assert.Error(t, err)
}
