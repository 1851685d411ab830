package registry_test

import (
	"testing"

	"github.com/alejandrodnm/swaproute/internal/domain"
	"github.com/alejandrodnm/swaproute/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVenues() []domain.VenueDescriptor {
	return []domain.VenueDescriptor{
		{ID: "oneinch", Name: "1inch", Chains: []uint64{1, 137}, Active: true},
		{ID: "zerox", Name: "0x", Chains: []uint64{1}, Active: true},
		{ID: "paraswap", Name: "ParaSwap", Chains: []uint64{1, 137}, Active: false},
	}
}

func testNative() map[uint64]domain.Token {
	return map[uint64]domain.Token{
		1:   {Symbol: "ETH", ChainID: 1, Decimals: 18},
		137: {Symbol: "POL", ChainID: 137, Decimals: 18},
	}
}

func TestRegistry_Eligible(t *testing.T) {
	reg, err := registry.New(testVenues(), testNative())
	require.NoError(t, err)

	// Chain 1: oneinch + zerox activos; paraswap inactivo queda fuera
	eligible := reg.Eligible(1)
	ids := make([]string, 0, len(eligible))
	for _, v := range eligible {
		ids = append(ids, v.ID)
	}
	assert.ElementsMatch(t, []string{"oneinch", "zerox"}, ids)

	// Chain 137: solo oneinch (zerox no soporta, paraswap inactivo)
	eligible = reg.Eligible(137)
	require.Len(t, eligible, 1)
	assert.Equal(t, "oneinch", eligible[0].ID)

	// Chain desconocida: vacío
	assert.Empty(t, reg.Eligible(42161))
}

func TestRegistry_Reload_InvalidKeepsState(t *testing.T) {
	reg, err := registry.New(testVenues(), testNative())
	require.NoError(t, err)

	// Reload con duplicados falla y no toca el estado anterior
	bad := []domain.VenueDescriptor{
		{ID: "dup", Chains: []uint64{1}},
		{ID: "dup", Chains: []uint64{1}},
	}
	require.Error(t, reg.Reload(bad, testNative()))
	assert.Len(t, reg.Eligible(1), 2)
}

func TestRegistry_Reload_Swaps(t *testing.T) {
	reg, err := registry.New(testVenues(), testNative())
	require.NoError(t, err)

	updated := []domain.VenueDescriptor{
		{ID: "paraswap", Name: "ParaSwap", Chains: []uint64{1}, Active: true},
	}
	require.NoError(t, reg.Reload(updated, testNative()))

	eligible := reg.Eligible(1)
	require.Len(t, eligible, 1)
	assert.Equal(t, "paraswap", eligible[0].ID)
}

func TestRegistry_NativeToken(t *testing.T) {
	reg, err := registry.New(testVenues(), testNative())
	require.NoError(t, err)

	eth, ok := reg.NativeToken(1)
	require.True(t, ok)
	assert.Equal(t, "ETH", eth.Symbol)

	_, ok = reg.NativeToken(999)
	assert.False(t, ok)
}
