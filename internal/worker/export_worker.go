// Package worker runs the background ledger export.
package worker

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"spartispese/internal/amqp"
	applog "spartispese/internal/log"
)

// Consumer delivers ExpenseCreated messages until ctx is done.
type Consumer interface {
	ConsumeExpenseCreated(ctx context.Context, handler amqp.Handler) error
}

// Processor handles one message. A returned error requeues the message.
type Processor interface {
	Process(ctx context.Context, msg *amqp.ExpenseCreatedMessage) error
}

// Config tunes the worker.
type Config struct {
	// MessageTimeout bounds a single export. Zero means no bound.
	MessageTimeout time.Duration
	// MetricsAddr, when set, serves MetricsHandler on that address.
	MetricsAddr    string
	MetricsHandler http.Handler
}

// ExportWorker consumes ExpenseCreated messages and exports each expense to
// the ledger.
type ExportWorker struct {
	consumer  Consumer
	processor Processor
	cfg       Config
	logger    *applog.Logger
}

func NewExportWorker(consumer Consumer, processor Processor, cfg Config, logger *applog.Logger) *ExportWorker {
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	return &ExportWorker{
		consumer:  consumer,
		processor: processor,
		cfg:       cfg,
		logger:    logger.WithComponent(applog.ComponentWorker),
	}
}

// Run blocks until ctx is cancelled or the consumer or metrics server fails.
// Cancellation is a clean stop and returns nil.
func (w *ExportWorker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		w.logger.InfoContext(ctx, "Consuming expense created messages")
		err := w.consumer.ConsumeExpenseCreated(ctx, w.handle)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if w.cfg.MetricsAddr != "" && w.cfg.MetricsHandler != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", w.cfg.MetricsHandler)
		srv := &http.Server{
			Addr:              w.cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			w.logger.InfoContext(ctx, "Worker metrics listening", "addr", w.cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func (w *ExportWorker) handle(ctx context.Context, msg *amqp.ExpenseCreatedMessage) error {
	if w.cfg.MessageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.MessageTimeout)
		defer cancel()
	}

	if err := w.processor.Process(ctx, msg); err != nil {
		w.logger.ErrorContext(ctx, "Failed to export expense",
			applog.FieldExpenseID, msg.ExpenseID,
			applog.FieldError, err)
		return err
	}
	return nil
}
