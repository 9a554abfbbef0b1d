package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"spendboard/internal/amqp"
	"spendboard/internal/api"
	"spendboard/internal/cache"
	"spendboard/internal/cli"
	"spendboard/internal/config"
	"spendboard/internal/dashboard"
	apphttp "spendboard/internal/http"
	"spendboard/internal/log"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogLevel)
	cfg = cli.LoadAndValidateConfig(logger, (*config.Config).Validate)

	logger.Info("Starting spendboard",
		"port", cfg.Port,
		"api_base_url", cfg.APIBaseURL,
		"session_backend", cfg.SessionBackend,
		log.FieldOperation, log.OpStartup)

	stores := cli.InitSessionStore(context.Background(), logger, cfg)

	client, err := api.New(cfg.APIBaseURL, api.WithTimeout(cfg.APITimeout))
	if err != nil {
		logger.Error("Failed to create API client", log.FieldError, err, "api_base_url", cfg.APIBaseURL)
		os.Exit(1)
	}

	opts := dashboard.Options{Logger: logger.WithComponent(log.ComponentDashboard).Logger}
	var publisher *amqp.Client
	if cfg.AMQPURL != "" {
		publisher, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, transaction events disabled", log.FieldError, err)
		} else {
			opts.Publisher = publisher
			logger.Info("Publishing transaction events", "exchange", cfg.AMQPExchange)
		}
	}

	registry := dashboard.NewRegistry(1024, 2*time.Hour,
		dashboard.SessionBuilder(stores.Store, cfg.DefaultCurrency, opts))

	caches := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	caches.Register(registry.Cleaner())
	caches.Register(cache.CleanerFunc(func() int {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		n, err := stores.Store.PurgeBefore(ctx, time.Now().Add(-cfg.SessionTTL))
		if err != nil {
			logger.Warn("Failed to purge idle sessions", log.FieldError, err)
			return 0
		}
		return int(n)
	}))
	caches.StartCleanup(10 * time.Minute)

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		API:             client,
		Store:           stores.Store,
		Registry:        registry,
		DefaultCurrency: cfg.DefaultCurrency,
		CookieSecure:    cfg.CookieSecure,
		SessionTTL:      cfg.SessionTTL,
		TrustedProxies:  cfg.TrustedProxies,
		Logger:          logger,
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if publisher != nil {
			if err := publisher.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if err := stores.Cleanup(); err != nil {
			logger.Warn("Session store close error", log.FieldError, err)
		}
	})

	var g errgroup.Group
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		// sweep once at startup
		removed := caches.RunOnce()
		logger.Debug("Initial cleanup done", "removed", removed)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
