// Package storage persists groups, expenses and the category catalog in
// SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"spartispese/internal/core"
	"spartispese/internal/ports"
)

var _ ports.Repository = (*SQLiteRepository)(nil)

// timeLayout is fixed width so that stored timestamps sort lexically in time
// order. Reads accept any RFC3339 value.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// migrates it.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("SQLite repository ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Categories implements ports.CategoryCatalog.
func (r *SQLiteRepository) Categories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, grouping_name, name FROM categories ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Grouping, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) CreateGroup(ctx context.Context, g core.Group) (core.Group, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = r.now().UTC()
	}
	g.Participants = append([]core.Participant(nil), g.Participants...)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Group{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO expense_groups (id, name, currency, created_at) VALUES (?, ?, ?, ?)",
		g.ID, g.Name, g.Currency, g.CreatedAt.UTC().Format(timeLayout),
	); err != nil {
		return core.Group{}, fmt.Errorf("insert group: %w", err)
	}

	for i := range g.Participants {
		p := &g.Participants[i]
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO participants (id, group_id, name, position) VALUES (?, ?, ?, ?)",
			p.ID, g.ID, p.Name, i,
		); err != nil {
			return core.Group{}, fmt.Errorf("insert participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.Group{}, fmt.Errorf("commit group: %w", err)
	}
	return g, nil
}

func (r *SQLiteRepository) GetGroup(ctx context.Context, id string) (core.Group, error) {
	var (
		g       core.Group
		created string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, currency, created_at FROM expense_groups WHERE id = ?", id,
	).Scan(&g.ID, &g.Name, &g.Currency, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Group{}, fmt.Errorf("group %s: %w", id, ports.ErrGroupNotFound)
	}
	if err != nil {
		return core.Group{}, fmt.Errorf("get group: %w", err)
	}
	if g.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return core.Group{}, fmt.Errorf("parse group created_at: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name FROM participants WHERE group_id = ? ORDER BY position", id,
	)
	if err != nil {
		return core.Group{}, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p core.Participant
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return core.Group{}, fmt.Errorf("scan participant: %w", err)
		}
		g.Participants = append(g.Participants, p)
	}
	if err := rows.Err(); err != nil {
		return core.Group{}, fmt.Errorf("iterate participants: %w", err)
	}
	return g, nil
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}

	var lat, lng sql.NullFloat64
	if e.Location != nil {
		lat = sql.NullFloat64{Float64: e.Location.Latitude, Valid: true}
		lng = sql.NullFloat64{Float64: e.Location.Longitude, Valid: true}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO expenses (id, group_id, title, amount, expense_date, category_id,
			paid_by_id, is_reimbursement, latitude, longitude, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.GroupID, e.Title, e.Amount, e.ExpenseDate.UTC().Format(timeLayout), e.Category.ID,
		e.PaidByID, e.IsReimbursement, lat, lng, e.CreatedAt.UTC().Format(timeLayout),
	); err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	for i, pf := range e.PaidFor {
		var shares sql.NullInt64
		if pf.Shares != nil {
			shares = sql.NullInt64{Int64: *pf.Shares, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO expense_paid_for (expense_id, participant_id, shares, position) VALUES (?, ?, ?, ?)",
			e.ID, pf.ParticipantID, shares, i,
		); err != nil {
			return core.Expense{}, fmt.Errorf("insert paid_for: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.Expense{}, fmt.Errorf("commit expense: %w", err)
	}

	slog.DebugContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"group_id", e.GroupID,
		"amount_cents", e.Amount,
		"category_id", e.Category.ID)

	return r.GetExpense(ctx, e.ID)
}

const expenseColumns = `
	e.id, e.group_id, e.title, e.amount, e.expense_date,
	e.category_id, COALESCE(c.grouping_name, ''), COALESCE(c.name, ''),
	e.paid_by_id, e.is_reimbursement, e.latitude, e.longitude, e.created_at`

const expenseFrom = `
	FROM expenses e
	LEFT JOIN categories c ON c.id = e.category_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(s rowScanner) (core.Expense, error) {
	var (
		e             core.Expense
		date, created string
		lat, lng      sql.NullFloat64
	)
	if err := s.Scan(
		&e.ID, &e.GroupID, &e.Title, &e.Amount, &date,
		&e.Category.ID, &e.Category.Grouping, &e.Category.Name,
		&e.PaidByID, &e.IsReimbursement, &lat, &lng, &created,
	); err != nil {
		return core.Expense{}, err
	}

	var err error
	if e.ExpenseDate, err = time.Parse(time.RFC3339Nano, date); err != nil {
		return core.Expense{}, fmt.Errorf("parse expense_date %q: %w", date, err)
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return core.Expense{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	if lat.Valid && lng.Valid {
		e.Location = &core.Location{Latitude: lat.Float64, Longitude: lng.Float64}
	}
	return e, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	e, err := scanExpense(r.db.QueryRowContext(ctx, "SELECT"+expenseColumns+expenseFrom+" WHERE e.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, ports.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}

	paidFor, err := r.paidFor(ctx, "pf.expense_id = ?", id)
	if err != nil {
		return core.Expense{}, err
	}
	e.PaidFor = paidFor[e.ID]
	return e, nil
}

func (r *SQLiteRepository) ListExpensesByGroup(ctx context.Context, groupID string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT"+expenseColumns+expenseFrom+" WHERE e.group_id = ? ORDER BY e.expense_date DESC, e.created_at DESC, e.id",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}

	paidFor, err := r.paidFor(ctx, "e.group_id = ?", groupID)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].PaidFor = paidFor[out[i].ID]
	}
	return out, nil
}

// paidFor loads beneficiaries keyed by expense id, each list in stored order.
func (r *SQLiteRepository) paidFor(ctx context.Context, where string, arg any) (map[string][]core.PaidFor, error) {
	query := strings.Join([]string{
		"SELECT pf.expense_id, pf.participant_id, pf.shares",
		"FROM expense_paid_for pf JOIN expenses e ON e.id = pf.expense_id",
		"WHERE " + where,
		"ORDER BY pf.expense_id, pf.position",
	}, " ")

	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query paid_for: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]core.PaidFor)
	for rows.Next() {
		var (
			expenseID string
			pf        core.PaidFor
			shares    sql.NullInt64
		)
		if err := rows.Scan(&expenseID, &pf.ParticipantID, &shares); err != nil {
			return nil, fmt.Errorf("scan paid_for: %w", err)
		}
		if shares.Valid {
			v := shares.Int64
			pf.Shares = &v
		}
		out[expenseID] = append(out[expenseID], pf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate paid_for: %w", err)
	}
	return out, nil
}
