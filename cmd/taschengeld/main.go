package main

import (
	"context"
	"errors"
	"net/http"
	"time"
	_ "time/tzdata"

	"golang.org/x/sync/errgroup"

	"taschengeld/internal/amqp"
	"taschengeld/internal/auth"
	"taschengeld/internal/backend"
	"taschengeld/internal/cache"
	"taschengeld/internal/cli"
	"taschengeld/internal/config"
	"taschengeld/internal/core"
	apphttp "taschengeld/internal/http"
	"taschengeld/internal/log"
	"taschengeld/internal/services"
)

const (
	ledgerCacheSize      = 128
	ledgerCacheTTL       = 10 * time.Minute
	cacheCleanupInterval = 5 * time.Minute
	shutdownTimeout      = 30 * time.Second
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig((*config.Config).Validate)

	loc, err := cfg.Location()
	if err != nil {
		cli.Fatal(logger, "Failed to load time zone", err)
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	store, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err, "backend", cfg.DataBackend)
	}
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	}()

	ledgers := cache.NewLRUCache[int64, []core.Transaction](ledgerCacheSize, ledgerCacheTTL)
	cacheManager := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	cacheManager.Register(ledgers)

	opts := []services.Option{
		services.WithLocation(loc),
		services.WithLogger(logger.WithComponent(log.ComponentLedger)),
		services.WithLedgerCache(ledgers),
	}

	// The queue only speeds up the export; without it the worker sweeps.
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without messages", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			opts = append(opts, services.WithPublisher(amqpClient))
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	ledger := services.NewLedgerService(store.Repository, opts...)

	sessions := auth.NewSessions(auth.Config{
		Password: cfg.AdminPassword,
		Secret:   []byte(cfg.SessionSecret),
		TTL:      cfg.SessionTTL,
		Secure:   cfg.SecureCookies,
	})

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:   ledger,
		Sessions: sessions,
		Store:    store.Repository,
		Cache:    ledgers,
		Logger:   logger,
	})
	if err != nil {
		cli.Fatal(logger, "Failed to create HTTP server", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return cacheManager.Run(gctx, cacheCleanupInterval)
	})
	g.Go(func() error {
		logger.Info("Starting taschengeld server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		cli.Fatal(logger, "Server error", err, "port", cfg.Port)
	}
	logger.Info("Server stopped gracefully")
}
