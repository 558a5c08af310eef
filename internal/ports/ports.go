// Package ports declares the outbound interfaces the engine depends on.
package ports

import (
	"context"
	"errors"

	"spartispese/internal/core"
)

var (
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrGroupNotFound is returned when an expense references an unknown group.
	ErrGroupNotFound = errors.New("group not found")
)

// Ports for outbound adapters.
type (
	// CategoryCatalog is the read-only, ordered category list. Calls are
	// idempotent.
	CategoryCatalog interface {
		Categories(ctx context.Context) ([]core.Category, error)
	}

	ExpenseStore interface {
		CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		GetExpense(ctx context.Context, id string) (core.Expense, error)
		// ListExpensesByGroup returns expenses in no particular order; the
		// grouping engine owns display order.
		ListExpensesByGroup(ctx context.Context, groupID string) ([]core.Expense, error)
	}

	GroupStore interface {
		CreateGroup(ctx context.Context, g core.Group) (core.Group, error)
		GetGroup(ctx context.Context, id string) (core.Group, error)
	}

	// Repository bundles every store a backend provides.
	Repository interface {
		CategoryCatalog
		ExpenseStore
		GroupStore
		Ping(ctx context.Context) error
		Close() error
	}

	// LedgerExporter appends a rendered expense to an external ledger.
	LedgerExporter interface {
		AppendExpense(ctx context.Context, line core.ExpenseLine, groupName string) (rowRef string, err error)
	}
)
