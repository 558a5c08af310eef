package memory

import (
	"context"
	"fmt"
	"sync"

	"spartispese/internal/core"
	"spartispese/internal/ports"
	"spartispese/internal/sheets"
)

// Ledger keeps exported rows in memory. It is the exporter used when no
// spreadsheet is configured.
type Ledger struct {
	mu   sync.Mutex
	rows [][]any
}

var _ ports.LedgerExporter = (*Ledger)(nil)

func New() *Ledger {
	return &Ledger{}
}

// AppendExpense stores the row and returns a synthetic row reference.
func (l *Ledger) AppendExpense(_ context.Context, line core.ExpenseLine, groupName string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = append(l.rows, sheets.Row(line, groupName))
	return fmt.Sprintf("mem:%d", len(l.rows)), nil
}

// Rows returns a copy of every stored row.
func (l *Ledger) Rows() [][]any {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]any, len(l.rows))
	for i, r := range l.rows {
		out[i] = append([]any(nil), r...)
	}
	return out
}
