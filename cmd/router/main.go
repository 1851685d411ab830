package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/swaproute/config"
	"github.com/alejandrodnm/swaproute/internal/adapters/notify"
	"github.com/alejandrodnm/swaproute/internal/adapters/oneinch"
	"github.com/alejandrodnm/swaproute/internal/adapters/paraswap"
	"github.com/alejandrodnm/swaproute/internal/adapters/pricefeed"
	"github.com/alejandrodnm/swaproute/internal/adapters/storage"
	"github.com/alejandrodnm/swaproute/internal/adapters/zerox"
	"github.com/alejandrodnm/swaproute/internal/aggregator"
	"github.com/alejandrodnm/swaproute/internal/domain"
	"github.com/alejandrodnm/swaproute/internal/ports"
	"github.com/alejandrodnm/swaproute/internal/registry"
	"github.com/alejandrodnm/swaproute/internal/resilience"
	"github.com/alejandrodnm/swaproute/internal/router"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	serve := flag.Bool("serve", false, "run the HTTP API server")
	tokenIn := flag.String("in", "", "input token symbol (one-shot mode)")
	tokenOut := flag.String("out", "", "output token symbol (one-shot mode)")
	amount := flag.String("amount", "", "input amount in smallest units (one-shot mode)")
	chainID := flag.Uint64("chain", 1, "chain id")
	slippage := flag.Int("slippage", 50, "slippage tolerance in bps")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full quote table (default: compact 1-line)")
	validate := flag.Bool("validate", false, "print net-output breakdown for top 3 quotes")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("swaproute starting",
		"config", *configPath,
		"serve", *serve,
		"venues", len(cfg.Venues),
		"quote_deadline", cfg.QuoteDeadline(),
	)

	reg, err := registry.New(cfg.VenueDescriptors(), cfg.NativeTokens())
	if err != nil {
		slog.Error("failed to build venue registry", "err", err)
		os.Exit(1)
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	adapters, wrappers, err := buildAdapters(cfg, reg)
	if err != nil {
		slog.Error("failed to build venue adapters", "err", err)
		os.Exit(1)
	}

	var prices ports.PriceSource
	if cfg.PriceFeed.BaseURL != "" {
		prices = pricefeed.NewHTTP(cfg.PriceFeed.BaseURL)
	} else {
		prices = pricefeed.NewStatic(cfg.PriceFeed.Static)
	}

	agg := aggregator.New(aggregator.Config{
		PlatformFeeBps: cfg.Engine.PlatformFeeBps,
		QuoteDeadline:  cfg.QuoteDeadline(),
	}, reg, adapters, prices, store)

	rtr := router.New(router.Config{
		FreshnessWindow:   cfg.FreshnessWindow(),
		GasLimitMarginPct: cfg.Engine.GasLimitMarginPct,
	}, reg, store)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *serve {
		if err := runServe(ctx, cfg, *configPath, agg, rtr, reg, wrappers); err != nil {
			slog.Error("server exited with error", "err", err)
			os.Exit(1)
		}
		slog.Info("swaproute stopped cleanly")
		return
	}

	if err := runOnce(ctx, cfg, agg, onceParams{
		tokenIn:  *tokenIn,
		tokenOut: *tokenOut,
		amount:   *amount,
		chainID:  *chainID,
		slippage: *slippage,
		table:    *table,
		validate: *validate,
	}); err != nil {
		slog.Error("quote request failed", "err", err)
		os.Exit(1)
	}
}

type onceParams struct {
	tokenIn  string
	tokenOut string
	amount   string
	chainID  uint64
	slippage int
	table    bool
	validate bool
}

// runOnce resuelve los símbolos, agrega quotes una vez y los imprime.
func runOnce(ctx context.Context, cfg *config.Config, agg *aggregator.Aggregator, p onceParams) error {
	if p.tokenIn == "" || p.tokenOut == "" || p.amount == "" {
		return fmt.Errorf("one-shot mode requires -in, -out and -amount (or use -serve)")
	}

	in, ok := cfg.Token(p.chainID, p.tokenIn)
	if !ok {
		return fmt.Errorf("token %q not configured for chain %d", p.tokenIn, p.chainID)
	}
	out, ok := cfg.Token(p.chainID, p.tokenOut)
	if !ok {
		return fmt.Errorf("token %q not configured for chain %d", p.tokenOut, p.chainID)
	}

	amountIn, ok := new(big.Int).SetString(p.amount, 10)
	if !ok {
		return fmt.Errorf("invalid -amount %q: expected decimal integer in smallest units", p.amount)
	}

	ranked, err := agg.GetQuotes(ctx, domain.SwapRequest{
		TokenIn:     in,
		TokenOut:    out,
		AmountIn:    amountIn,
		SlippageBps: p.slippage,
	})
	if err != nil {
		return err
	}

	var notifier ports.Notifier = notify.NewConsole(p.table, p.validate)
	return notifier.Notify(ctx, ranked)
}

// buildAdapters construye el adapter de cada venue activo según su kind y
// lo envuelve con la política de resiliencia. Devuelve también los wrappers
// por separado para la observabilidad del API.
func buildAdapters(cfg *config.Config, reg *registry.Registry) (map[string]ports.QuoteAdapter, map[string]*resilience.Wrapper, error) {
	adapters := make(map[string]ports.QuoteAdapter)
	wrappers := make(map[string]*resilience.Wrapper)

	for _, v := range reg.All() {
		if !v.Active {
			continue
		}

		gasPrice := cfg.GasPriceWei(v.Chains[0])

		var raw ports.QuoteAdapter
		switch v.Kind {
		case "oneinch":
			raw = oneinch.NewClient(v.ID, v.BaseURL, v.APIKey, gasPrice)
		case "zerox":
			raw = zerox.NewClient(v.ID, v.BaseURL, v.APIKey)
		case "paraswap":
			raw = paraswap.NewClient(v.ID, v.BaseURL, gasPrice)
		default:
			return nil, nil, fmt.Errorf("venue %q has unknown kind %q", v.ID, v.Kind)
		}

		wcfg := wrapperConfig(cfg, v)
		w := resilience.Wrap(raw, wcfg)
		adapters[v.ID] = w
		wrappers[v.ID] = w

		slog.Debug("venue adapter ready",
			"venue", v.ID,
			"kind", v.Kind,
			"chains", v.Chains,
		)
	}

	return adapters, wrappers, nil
}

// wrapperConfig combina los defaults de resiliencia con los overrides del venue.
func wrapperConfig(cfg *config.Config, v domain.VenueDescriptor) resilience.WrapperConfig {
	r := cfg.Resilience
	wcfg := resilience.WrapperConfig{
		Breaker: resilience.BreakerConfig{
			FailureThreshold:   r.FailureThreshold,
			RecoveryTimeout:    time.Duration(r.RecoveryTimeoutMs) * time.Millisecond,
			RecoveryTimeoutMax: time.Duration(r.RecoveryMaxMs) * time.Millisecond,
		},
		HardTimeout: time.Duration(r.HardTimeoutMs) * time.Millisecond,
		MaxRetries:  r.MaxRetries,
		RatePerSec:  r.RatePerSec,
		Burst:       r.Burst,
	}
	if v.RecoveryTimeout > 0 {
		wcfg.Breaker.RecoveryTimeout = v.RecoveryTimeout
	}
	if v.RatePerSec > 0 {
		wcfg.RatePerSec = v.RatePerSec
	}
	if v.Burst > 0 {
		wcfg.Burst = v.Burst
	}
	return wcfg
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
