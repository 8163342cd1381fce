package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"harvestcart/internal/api"
	"harvestcart/internal/backend"
	"harvestcart/internal/cart"
	"harvestcart/internal/config"
	"harvestcart/internal/logger"
	"harvestcart/internal/metrics"
	"harvestcart/internal/persist"
	"harvestcart/internal/state"
)

// serve wires every service, warms the catalog and runs the HTTP server until
// ctx is cancelled.
func serve(ctx context.Context, cfg config.Config) error {
	log := logger.For("cartd")
	metrics.RegisterDefault()
	log.Info().Interface("config", cfg.Redacted()).Msg("starting")

	kv, err := persist.Open(persist.Options{
		Backend:     cfg.StoreBackend,
		SQLitePath:  cfg.SQLitePath,
		DatabaseURL: cfg.DatabaseURL,
		RedisURL:    cfg.RedisURL,
		Namespace:   cfg.Namespace,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if c, ok := kv.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}
	if sq, ok := kv.(*persist.SQLite); ok {
		log.Info().Str("path", sq.Path()).Msg("sqlite state store")
	}

	registry, err := cfg.Registry()
	if err != nil {
		return err
	}

	store := state.New(ctx, kv, logger.For("state"))
	client := backend.New(backend.Options{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.BackendTimeout,
		RPS:     cfg.BackendRPS,
		Burst:   cfg.BackendBurst,
		Secret:  cfg.SyncSecret,
	}, logger.For("backend"))

	syncer := cart.NewSyncer(store, client, logger.For("sync"), cfg.SyncTimeout)
	syncer.Start(ctx)
	defer syncer.Stop()

	var broker api.EventBroker = api.NewBroker()
	var ready []api.Pinger
	if p, ok := kv.(api.Pinger); ok {
		ready = append(ready, p)
	}
	if cfg.Broker == "redis" {
		rb, err := api.NewRedisBroker(cfg.RedisURL, cfg.Namespace, logger.For("broker"))
		if err != nil {
			log.Warn().Err(err).Msg("redis broker unavailable; using in-memory broker")
		} else {
			defer func() { _ = rb.Close() }()
			broker = rb
			ready = append(ready, rb)
		}
	}

	reconciler := cart.NewReconciler(store, client, client, logger.For("cart"))
	srv := api.NewServer(store, reconciler, registry, client, broker, logger.For("api"))
	defer srv.Close()
	srv.Ready = ready
	srv.Config = cfg.Redacted()

	warmCatalog(ctx, store, client)

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpSrv.Addr).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// warmCatalog loads the catalog once at startup. A failure only means the
// first add of each product falls back to a product fetch.
func warmCatalog(ctx context.Context, store *state.Store, client *backend.Client) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	cat, err := client.FetchCatalog(ctx)
	if err != nil {
		logger.Warnf("catalog warm-up failed: %v", err)
		return
	}
	store.SetProducts(cat.Products)
	store.SetFeatured(cat.Featured)
	store.SetTemplates(cat.Templates)
}
