// Package memory is an in-process store for development and tests.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"spartispese/internal/core"
	"spartispese/internal/ports"
)

var _ ports.Repository = (*Store)(nil)

// SeedFile is read by NewFromFiles, one "Grouping/Name" entry per line.
const SeedFile = "seed_categories.txt"

type Store struct {
	mu       sync.RWMutex
	cats     []core.Category
	groups   map[string]core.Group
	expenses map[string]core.Expense
	byGroup  map[string][]string
	now      func() time.Time
}

// New creates a store serving catalog. A nil catalog uses the built-in one.
func New(catalog []core.Category) *Store {
	if catalog == nil {
		catalog = core.DefaultCategories()
	}
	return &Store{
		cats:     append([]core.Category(nil), catalog...),
		groups:   make(map[string]core.Group),
		expenses: make(map[string]core.Expense),
		byGroup:  make(map[string][]string),
		now:      time.Now,
	}
}

// NewFromFiles seeds the catalog from base/SeedFile. Ids follow line order
// starting at the fallback id, which is always "Uncategorized/General". A
// missing or empty file yields the built-in catalog.
func NewFromFiles(base string) *Store {
	lines := readLines(filepath.Join(base, SeedFile))
	if len(lines) == 0 {
		return New(nil)
	}

	cats := []core.Category{{ID: core.FallbackCategoryID, Grouping: "Uncategorized", Name: "General"}}
	for _, line := range lines {
		grouping, name, ok := strings.Cut(line, "/")
		if !ok {
			grouping, name = line, line
		}
		c := core.Category{Grouping: strings.TrimSpace(grouping), Name: strings.TrimSpace(name)}
		if c.Label() == cats[0].Label() {
			continue
		}
		c.ID = int64(len(cats))
		cats = append(cats, c)
	}
	return New(cats)
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) Categories(context.Context) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Category(nil), s.cats...), nil
}

func (s *Store) CreateGroup(_ context.Context, g core.Group) (core.Group, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = s.now().UTC()
	}
	g.Participants = append([]core.Participant(nil), g.Participants...)
	for i := range g.Participants {
		if g.Participants[i].ID == "" {
			g.Participants[i].ID = uuid.NewString()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.groups[g.ID]; exists {
		return core.Group{}, fmt.Errorf("group %s already exists", g.ID)
	}
	s.groups[g.ID] = g
	return cloneGroup(g), nil
}

func (s *Store) GetGroup(_ context.Context, id string) (core.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return core.Group{}, fmt.Errorf("group %s: %w", id, ports.ErrGroupNotFound)
	}
	return cloneGroup(g), nil
}

// CreateExpense stores e. Like the SQLite schema, it refuses unknown groups
// and categories.
func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[e.GroupID]; !ok {
		return core.Expense{}, fmt.Errorf("group %s: %w", e.GroupID, ports.ErrGroupNotFound)
	}
	cat, ok := core.FindCategory(s.cats, e.Category.ID)
	if !ok {
		return core.Expense{}, fmt.Errorf("unknown category %d", e.Category.ID)
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	e.ExpenseDate = e.ExpenseDate.UTC()
	e.Category = cat
	e = cloneExpense(e)

	s.expenses[e.ID] = e
	s.byGroup[e.GroupID] = append(s.byGroup[e.GroupID], e.ID)
	return cloneExpense(e), nil
}

func (s *Store) GetExpense(_ context.Context, id string) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, ports.ErrNotFound)
	}
	return cloneExpense(e), nil
}

// ListExpensesByGroup returns expenses in insertion order.
func (s *Store) ListExpensesByGroup(_ context.Context, groupID string) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byGroup[groupID]
	out := make([]core.Expense, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneExpense(s.expenses[id]))
	}
	return out, nil
}

func cloneGroup(g core.Group) core.Group {
	g.Participants = append([]core.Participant(nil), g.Participants...)
	return g
}

func cloneExpense(e core.Expense) core.Expense {
	pf := make([]core.PaidFor, len(e.PaidFor))
	for i, p := range e.PaidFor {
		if p.Shares != nil {
			v := *p.Shares
			p.Shares = &v
		}
		pf[i] = p
	}
	e.PaidFor = pf
	if e.Location != nil {
		loc := *e.Location
		e.Location = &loc
	}
	return e
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	seen := map[string]struct{}{}
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
