package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/synapsestack/csaw-engine/internal/alerts"
	"github.com/synapsestack/csaw-engine/internal/api"
	"github.com/synapsestack/csaw-engine/internal/cache"
	"github.com/synapsestack/csaw-engine/internal/config"
	"github.com/synapsestack/csaw-engine/internal/engine"
	"github.com/synapsestack/csaw-engine/internal/enhance"
	"github.com/synapsestack/csaw-engine/internal/metrics"
	"github.com/synapsestack/csaw-engine/internal/notify"
	"github.com/synapsestack/csaw-engine/internal/repo"
	"github.com/synapsestack/csaw-engine/internal/services"
	"github.com/synapsestack/csaw-engine/internal/tasks"
	"github.com/synapsestack/csaw-engine/internal/utils"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis engine as an HTTP service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	slog.SetDefault(logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(registry); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	cacheProvider := buildCache(cfg.Cache, logger)
	defer cacheProvider.Close()

	var contextProvider repo.ContextProvider
	if cfg.Backend.BaseURL != "" {
		client, err := repo.NewClient(repo.ClientConfig{
			BaseURL: cfg.Backend.BaseURL,
			Token:   cfg.Backend.Token,
			Timeout: cfg.Backend.Timeout,
		}, cacheProvider, logger)
		if err != nil {
			return err
		}
		contextProvider = client
	} else {
		logger.Warn("no backend configured, inline messages only")
	}

	var enhancer engine.Enhancer
	if cfg.Enhancer.Enabled {
		client, err := enhance.NewClient(enhance.Config{
			BaseURL: cfg.Enhancer.BaseURL,
			APIKey:  cfg.Enhancer.APIKey,
			Model:   cfg.Enhancer.Model,
			Timeout: cfg.Enhancer.Timeout,
		})
		if err != nil {
			return fmt.Errorf("enhancer: %w", err)
		}
		enhancer = client
	}

	presets, err := alerts.NewPresetStore(cfg.Presets.Path, logger)
	if err != nil {
		return fmt.Errorf("presets: %w", err)
	}
	if cfg.Presets.Watch {
		if err := presets.Watch(); err != nil {
			return err
		}
		defer presets.Stop()
	}

	pipeline, err := engine.NewPipeline(
		logger,
		cfg.Windows.Models(),
		alerts.NewRegistry(logger),
		presets,
		enhancer,
		cfg.Enhancer.Timeout,
	)
	if err != nil {
		return err
	}

	notifier := notify.NewRegistry(logger, notify.Settings{
		HeartbeatInterval: cfg.Notify.HeartbeatInterval,
		WriteTimeout:      cfg.Notify.WriteTimeout,
	})
	service := services.NewAnalysisService(logger, pipeline, contextProvider, notifier)
	server := api.NewServer(cfg.Server.Address, service, notifier, logger)

	metricsServer := &http.Server{
		Addr:              cfg.Server.MetricsAddress,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := tasks.NewRunner(logger)
	apiTask := runner.Go(runCtx, "http-server", func(context.Context) error {
		return server.Start()
	})
	metricsTask := runner.Go(runCtx, "metrics-server", func(context.Context) error {
		logger.Info("metrics server listening", slog.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	select {
	case <-runCtx.Done():
		logger.Info("shutdown signal received")
	case <-apiTask.Done():
		if err := apiTask.Err(); err != nil {
			return err
		}
	case <-metricsTask.Done():
		if err := metricsTask.Err(); err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", slog.Any("error", err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics shutdown incomplete", slog.Any("error", err))
	}
	return runner.Drain(shutdownCtx)
}

func buildCache(cfg config.CacheConfig, logger *slog.Logger) cache.Provider {
	if !cfg.Enabled {
		return cache.NoopProvider{}
	}
	provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   cfg.MaxRetries,
		TLS:          cfg.TLS,
	})
	if err != nil {
		logger.Warn("valkey unavailable, caching disabled", slog.Any("error", err))
		return cache.NoopProvider{}
	}
	logger.Info("valkey cache connected", slog.String("addr", cfg.Addr))
	return provider
}
