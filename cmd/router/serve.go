package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/swaproute/config"
	"github.com/alejandrodnm/swaproute/internal/aggregator"
	"github.com/alejandrodnm/swaproute/internal/api"
	"github.com/alejandrodnm/swaproute/internal/registry"
	"github.com/alejandrodnm/swaproute/internal/resilience"
	"github.com/alejandrodnm/swaproute/internal/router"
)

// runServe arranca el servidor HTTP y bloquea hasta que el contexto se
// cancele (SIGINT/SIGTERM), con shutdown graceful. SIGHUP recarga los
// descriptors de venue desde el archivo de config sin reiniciar.
func runServe(ctx context.Context, cfg *config.Config, configPath string, agg *aggregator.Aggregator, rtr *router.Router, reg *registry.Registry, wrappers map[string]*resilience.Wrapper) error {
	srv := api.NewServer(agg, rtr, reg, wrappers, slog.Default())

	httpSrv := &http.Server{
		Addr:              cfg.API.Listen,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http api listening", "addr", cfg.API.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case err := <-errCh:
			return err
		case <-hup:
			reloadVenues(configPath, reg)
			continue
		case <-ctx.Done():
		}
		break
	}

	slog.Info("shutting down http api")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// reloadVenues relee el archivo de config y aplica solo los descriptors de
// venue y chains. Un archivo inválido deja el registry anterior intacto.
func reloadVenues(path string, reg *registry.Registry) {
	fresh, err := config.Load(path)
	if err != nil {
		slog.Error("config reload failed, keeping previous venues", "err", err, "path", path)
		return
	}
	if err := reg.Reload(fresh.VenueDescriptors(), fresh.NativeTokens()); err != nil {
		slog.Error("registry reload rejected, keeping previous venues", "err", err)
		return
	}
	slog.Info("venue registry reloaded", "venues", len(fresh.Venues))
}
