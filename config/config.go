package config

import (
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/swaproute/internal/domain"
)

// Config es la configuración completa del engine.
type Config struct {
	Engine     EngineConfig     `yaml:"engine"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Venues     []VenueConfig    `yaml:"venues"`
	Chains     []ChainConfig    `yaml:"chains"`
	Tokens     []TokenConfig    `yaml:"tokens"`
	PriceFeed  PriceFeedConfig  `yaml:"pricefeed"`
	Storage    StorageConfig    `yaml:"storage"`
	API        APIConfig        `yaml:"api"`
	Log        LogConfig        `yaml:"log"`
}

// EngineConfig controla la agregación y el routing.
type EngineConfig struct {
	PlatformFeeBps     int `yaml:"platform_fee_bps"`
	QuoteDeadlineMs    int `yaml:"quote_deadline_ms"`
	FreshnessWindowSec int `yaml:"freshness_window_sec"`
	GasLimitMarginPct  int `yaml:"gas_limit_margin_pct"`
}

// ResilienceConfig son los defaults del wrapper por venue. Cada venue puede
// sobreescribir recovery_timeout y rate limit en su propia entrada.
type ResilienceConfig struct {
	FailureThreshold  int     `yaml:"failure_threshold"`
	RecoveryTimeoutMs int     `yaml:"recovery_timeout_ms"`
	RecoveryMaxMs     int     `yaml:"recovery_max_ms"`
	HardTimeoutMs     int     `yaml:"hard_timeout_ms"`
	MaxRetries        int     `yaml:"max_retries"`
	RatePerSec        float64 `yaml:"rate_per_sec"`
	Burst             int     `yaml:"burst"`
}

// VenueConfig describe un venue configurado.
type VenueConfig struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Kind        string   `yaml:"kind"` // oneinch | zerox | paraswap
	BaseURL     string   `yaml:"base_url"`
	APIKeyEnv   string   `yaml:"api_key_env"` // nombre de la env var con la key
	Target      string   `yaml:"target"`      // contrato destino para executions
	FeePerMille int      `yaml:"fee_per_mille"`
	Chains      []uint64 `yaml:"chains"`
	Active      bool     `yaml:"active"`
	GasEstimate uint64   `yaml:"gas_estimate"`

	// Overrides opcionales del wrapper (0 = usar defaults de resilience)
	RecoveryTimeoutMs int     `yaml:"recovery_timeout_ms"`
	RatePerSec        float64 `yaml:"rate_per_sec"`
	Burst             int     `yaml:"burst"`
}

// ChainConfig describe una chain soportada y su token nativo.
type ChainConfig struct {
	ID             uint64 `yaml:"id"`
	NativeSymbol   string `yaml:"native_symbol"`
	NativeDecimals int    `yaml:"native_decimals"`
	GasPriceGwei   int64  `yaml:"gas_price_gwei"` // fallback para venues sin estimación
}

// TokenConfig describe un token conocido, para resolver símbolos en el
// modo CLI.
type TokenConfig struct {
	Symbol   string `yaml:"symbol"`
	ChainID  uint64 `yaml:"chain_id"`
	Address  string `yaml:"address"`
	Decimals int    `yaml:"decimals"`
}

// PriceFeedConfig controla la fuente de precios nativo/token.
type PriceFeedConfig struct {
	BaseURL string             `yaml:"base_url"` // vacío = usar static
	Static  map[string]float64 `yaml:"static"`   // "ETH/USDC" → precio
}

// StorageConfig controla dónde se persisten executions y ciclos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// APIConfig controla el servidor HTTP.
type APIConfig struct {
	Listen string `yaml:"listen"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// QuoteDeadline devuelve el presupuesto de agregación como time.Duration.
func (c *Config) QuoteDeadline() time.Duration {
	return time.Duration(c.Engine.QuoteDeadlineMs) * time.Millisecond
}

// FreshnessWindow devuelve la ventana de frescura de quotes.
func (c *Config) FreshnessWindow() time.Duration {
	return time.Duration(c.Engine.FreshnessWindowSec) * time.Second
}

// VenueDescriptors convierte las entradas de venue al modelo de dominio,
// resolviendo las API keys desde el entorno.
func (c *Config) VenueDescriptors() []domain.VenueDescriptor {
	out := make([]domain.VenueDescriptor, 0, len(c.Venues))
	for _, v := range c.Venues {
		out = append(out, domain.VenueDescriptor{
			ID:              v.ID,
			Name:            v.Name,
			Kind:            v.Kind,
			BaseURL:         v.BaseURL,
			APIKey:          os.Getenv(v.APIKeyEnv),
			Target:          v.Target,
			FeePerMille:     v.FeePerMille,
			Chains:          v.Chains,
			Active:          v.Active,
			GasEstimate:     v.GasEstimate,
			RecoveryTimeout: time.Duration(v.RecoveryTimeoutMs) * time.Millisecond,
			RatePerSec:      v.RatePerSec,
			Burst:           v.Burst,
		})
	}
	return out
}

// Token resuelve un token del catálogo por chain y símbolo.
func (c *Config) Token(chainID uint64, symbol string) (domain.Token, bool) {
	for _, t := range c.Tokens {
		if t.ChainID == chainID && t.Symbol == symbol {
			return domain.Token{
				Symbol:   t.Symbol,
				ChainID:  t.ChainID,
				Address:  t.Address,
				Decimals: t.Decimals,
			}, true
		}
	}
	return domain.Token{}, false
}

// GasPriceWei devuelve el gas price configurado de la chain en wei, o el
// fallback de 20 gwei si la chain no lo define.
func (c *Config) GasPriceWei(chainID uint64) *big.Int {
	for _, ch := range c.Chains {
		if ch.ID == chainID && ch.GasPriceGwei > 0 {
			return new(big.Int).Mul(big.NewInt(ch.GasPriceGwei), big.NewInt(1_000_000_000))
		}
	}
	return new(big.Int).Mul(big.NewInt(20), big.NewInt(1_000_000_000))
}

// NativeTokens devuelve el token nativo por chain ID.
func (c *Config) NativeTokens() map[uint64]domain.Token {
	out := make(map[uint64]domain.Token, len(c.Chains))
	for _, ch := range c.Chains {
		out[ch.ID] = domain.Token{
			Symbol:   ch.NativeSymbol,
			ChainID:  ch.ID,
			Decimals: ch.NativeDecimals,
		}
	}
	return out
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("API_LISTEN"); v != "" {
		cfg.API.Listen = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Engine.PlatformFeeBps <= 0 {
		cfg.Engine.PlatformFeeBps = 30
	}
	if cfg.Engine.QuoteDeadlineMs <= 0 {
		cfg.Engine.QuoteDeadlineMs = 3000
	}
	if cfg.Engine.FreshnessWindowSec <= 0 {
		cfg.Engine.FreshnessWindowSec = 600
	}
	if cfg.Engine.GasLimitMarginPct <= 0 {
		cfg.Engine.GasLimitMarginPct = 20
	}
	if cfg.Resilience.FailureThreshold <= 0 {
		cfg.Resilience.FailureThreshold = 5
	}
	if cfg.Resilience.RecoveryTimeoutMs <= 0 {
		cfg.Resilience.RecoveryTimeoutMs = 30_000
	}
	if cfg.Resilience.RecoveryMaxMs <= 0 {
		cfg.Resilience.RecoveryMaxMs = 300_000
	}
	if cfg.Resilience.HardTimeoutMs <= 0 {
		cfg.Resilience.HardTimeoutMs = 5000
	}
	if cfg.Resilience.RatePerSec <= 0 {
		cfg.Resilience.RatePerSec = 10
	}
	if cfg.Resilience.Burst <= 0 {
		cfg.Resilience.Burst = 5
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "swaproute.db"
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// validate rechaza configuraciones incoherentes antes de arrancar.
func validate(cfg *Config) error {
	chains := make(map[uint64]bool, len(cfg.Chains))
	for _, ch := range cfg.Chains {
		if ch.NativeSymbol == "" {
			return fmt.Errorf("config.Load: chain %d without native_symbol", ch.ID)
		}
		chains[ch.ID] = true
	}

	for _, v := range cfg.Venues {
		if v.ID == "" {
			return fmt.Errorf("config.Load: venue without id")
		}
		if v.Kind == "" {
			return fmt.Errorf("config.Load: venue %q without kind", v.ID)
		}
		if v.BaseURL == "" {
			return fmt.Errorf("config.Load: venue %q without base_url", v.ID)
		}
		for _, c := range v.Chains {
			if !chains[c] {
				return fmt.Errorf("config.Load: venue %q references unknown chain %d", v.ID, c)
			}
		}
	}
	return nil
}
