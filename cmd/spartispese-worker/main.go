package main

import (
	"context"
	"os"
	"time"

	"spartispese/internal/backend"
	"spartispese/internal/cli"
	applog "spartispese/internal/log"
	"spartispese/internal/metrics"
	"spartispese/internal/ports"
	"spartispese/internal/services"
	gsheet "spartispese/internal/sheets/google"
	memsheet "spartispese/internal/sheets/memory"
	"spartispese/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting spartispese-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the export worker")
		os.Exit(1)
	}
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
	if res.Publisher == nil {
		logger.Error("AMQP broker unreachable, cannot consume messages")
		_ = res.Cleanup()
		os.Exit(1)
	}

	var exporter ports.LedgerExporter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
			_ = res.Cleanup()
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		exporter = memsheet.New()
		logger.Info("Google Sheets disabled, exporting to in-memory ledger")
	}

	processor := services.NewExportProcessor(res.Repository, exporter, m, logger)
	w := worker.NewExportWorker(res.Publisher, processor, worker.Config{
		MessageTimeout: cfg.WorkerMessageTimeout,
		MetricsAddr:    cfg.WorkerMetricsAddr,
		MetricsHandler: m.Handler(),
	}, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	if err := w.Run(ctx); err != nil {
		logger.Error("Export worker stopped with error", applog.FieldError, err)
		_ = res.Cleanup()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	if err := res.Cleanup(); err != nil {
		logger.Error("Backend cleanup error", applog.FieldError, err)
	}
	logger.Info("Worker stopped gracefully")
}
