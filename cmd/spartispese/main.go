package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"spartispese/internal/backend"
	"spartispese/internal/cache"
	"spartispese/internal/classifier"
	"spartispese/internal/cli"
	apphttp "spartispese/internal/http"
	applog "spartispese/internal/log"
	"spartispese/internal/metrics"
	"spartispese/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(applog.ComponentApp)
	logger.Info("Starting spartispese")

	cfg := cli.LoadAndValidateConfig(logger)
	m := metrics.New()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to create backend", applog.FieldError, err, "backend", backendCfg.Type)
		os.Exit(1)
	}

	var completer classifier.Completer
	if cfg.OpenAIAPIKey != "" {
		completer = classifier.NewOpenAICompleter(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	} else {
		logger.Warn("OPENAI_API_KEY not set, every expense falls back to the default category")
	}
	cl := classifier.New(completer, cfg.ClassifierConfig(),
		classifier.WithMetrics(m),
		classifier.WithLogger(logger))

	cacheManager := cache.NewManager(logger.Logger)
	if c := cl.Cleaner(); c != nil {
		cacheManager.Register(c)
	}
	cacheManager.StartCleanup(10 * time.Minute)

	opts := []services.Option{
		services.WithMetrics(m),
		services.WithLogger(logger),
	}
	if res.Publisher != nil {
		opts = append(opts, services.WithPublisher(res.Publisher))
	}
	svc := services.NewExpenseService(res.Repository, cl,
		services.FeatureFlags{EnableCategoryExtract: cfg.FeatureCategoryExtract}, opts...)

	srv := apphttp.NewServer(":"+cfg.Port, svc,
		apphttp.WithLogger(logger),
		apphttp.WithMetrics(m),
		apphttp.WithRateLimit(cfg.RateLimitPerMinute))

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		cacheManager.Stop()
		if err := svc.Close(); err != nil {
			logger.Error("Service close error", applog.FieldError, err)
		}
	})

	logger.Info("HTTP server listening",
		"addr", srv.Addr,
		"backend", backendCfg.Type,
		"category_extract", cfg.FeatureCategoryExtract)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
