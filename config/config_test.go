package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alejandrodnm/swaproute/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
engine:
  platform_fee_bps: 25
  quote_deadline_ms: 2000

resilience:
  failure_threshold: 3

chains:
  - id: 1
    native_symbol: ETH
    native_decimals: 18
    gas_price_gwei: 20

venues:
  - id: oneinch-v6
    name: 1inch
    kind: oneinch
    base_url: https://api.1inch.dev
    api_key_env: ONEINCH_API_KEY
    target: "0x1111111254EEB25477B68fb85Ed929f73A960582"
    fee_per_mille: 0
    chains: [1]
    active: true
    gas_estimate: 180000

pricefeed:
  static:
    ETH/USDC: 3000

log:
  level: debug
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ParsesAndDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	// Valores explícitos
	assert.Equal(t, 25, cfg.Engine.PlatformFeeBps)
	assert.Equal(t, 2*time.Second, cfg.QuoteDeadline())
	assert.Equal(t, 3, cfg.Resilience.FailureThreshold)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Defaults rellenados
	assert.Equal(t, 10*time.Minute, cfg.FreshnessWindow())
	assert.Equal(t, 5000, cfg.Resilience.HardTimeoutMs)
	assert.Equal(t, ":8080", cfg.API.Listen)
	assert.Equal(t, "swaproute.db", cfg.Storage.DSN)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_VenueDescriptors(t *testing.T) {
	t.Setenv("ONEINCH_API_KEY", "secret-key")

	cfg, err := config.Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	venues := cfg.VenueDescriptors()
	require.Len(t, venues, 1)
	v := venues[0]
	assert.Equal(t, "oneinch-v6", v.ID)
	assert.Equal(t, "oneinch", v.Kind)
	assert.Equal(t, "secret-key", v.APIKey)
	assert.Equal(t, []uint64{1}, v.Chains)
	assert.True(t, v.Active)
}

func TestLoad_NativeTokens(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	native := cfg.NativeTokens()
	require.Contains(t, native, uint64(1))
	assert.Equal(t, "ETH", native[1].Symbol)
	assert.Equal(t, 18, native[1].Decimals)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("API_LISTEN", ":9999")

	cfg, err := config.Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, ":9999", cfg.API.Listen)
}

func TestLoad_RejectsVenueOnUnknownChain(t *testing.T) {
	bad := `
chains:
  - id: 1
    native_symbol: ETH
    native_decimals: 18

venues:
  - id: zerox
    name: 0x
    kind: zerox
    base_url: https://api.0x.org
    chains: [137]
    active: true
`
	_, err := config.Load(writeConfig(t, bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown chain 137")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}
