package services

import (
	"context"
	"errors"
	"fmt"

	"spartispese/internal/amqp"
	"spartispese/internal/core"
	applog "spartispese/internal/log"
	"spartispese/internal/metrics"
	"spartispese/internal/ports"
)

// ExpenseSource is what the export processor reads from storage.
type ExpenseSource interface {
	GetExpense(ctx context.Context, id string) (core.Expense, error)
	GetGroup(ctx context.Context, id string) (core.Group, error)
}

// ExportProcessor turns ExpenseCreated messages into ledger rows.
type ExportProcessor struct {
	source   ExpenseSource
	exporter ports.LedgerExporter
	metrics  *metrics.Metrics
	logger   *applog.Logger
}

func NewExportProcessor(source ExpenseSource, exporter ports.LedgerExporter, m *metrics.Metrics, logger *applog.Logger) *ExportProcessor {
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	return &ExportProcessor{
		source:   source,
		exporter: exporter,
		metrics:  m,
		logger:   logger.WithComponent(applog.ComponentWorker),
	}
}

// Process exports one expense. Expenses or groups that no longer exist are
// skipped; any other error is returned so the message is redelivered.
func (p *ExportProcessor) Process(ctx context.Context, msg *amqp.ExpenseCreatedMessage) error {
	e, err := p.source.GetExpense(ctx, msg.ExpenseID)
	if errors.Is(err, ports.ErrNotFound) {
		p.logger.WarnContext(ctx, "Expense not found, skipping export", applog.FieldExpenseID, msg.ExpenseID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get expense %s: %w", msg.ExpenseID, err)
	}

	g, err := p.source.GetGroup(ctx, e.GroupID)
	if errors.Is(err, ports.ErrGroupNotFound) {
		p.logger.WarnContext(ctx, "Group not found, skipping export",
			applog.FieldExpenseID, e.ID,
			applog.FieldGroupID, e.GroupID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get group %s: %w", e.GroupID, err)
	}

	line := core.ProjectExpense(e, core.NewRoster(g.Participants), g.Currency)
	ref, err := p.exporter.AppendExpense(ctx, line, g.Name)
	p.metrics.RowExported(err)
	if err != nil {
		return fmt.Errorf("append to ledger: %w", err)
	}

	p.logger.InfoContext(ctx, "Exported expense to ledger",
		applog.FieldExpenseID, e.ID,
		applog.FieldGroupID, g.ID,
		applog.FieldSheetsRef, ref)
	return nil
}
