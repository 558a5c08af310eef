package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"spartispese/internal/core"
	"spartispese/internal/ports"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository_Categories(t *testing.T) {
	repo := newTestRepo(t)

	got, err := repo.Categories(context.Background())
	if err != nil {
		t.Fatalf("Categories failed: %v", err)
	}
	want := core.DefaultCategories()
	if len(got) != len(want) {
		t.Fatalf("got %d categories, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("category %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if got[0].ID != core.FallbackCategoryID || got[0].Name != "General" {
		t.Fatalf("fallback category = %+v", got[0])
	}
}

func TestSQLiteRepository_Migrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	v1, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	v2, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if v1 != 2 || v2 != 2 {
		t.Fatalf("versions = %d, %d", v1, v2)
	}
}

func TestSQLiteRepository_Groups(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.CreateGroup(ctx, core.Group{
		Name:         "Lisbon trip",
		Currency:     "EUR",
		Participants: []core.Participant{{Name: "Carol"}, {Name: "Alice"}, {Name: "Bob"}},
	})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if created.ID == "" || created.CreatedAt.IsZero() {
		t.Fatalf("ids not assigned: %+v", created)
	}

	got, err := repo.GetGroup(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if got.Name != "Lisbon trip" || got.Currency != "EUR" {
		t.Fatalf("group = %+v", got)
	}
	names := []string{"Carol", "Alice", "Bob"}
	for i, p := range got.Participants {
		if p.Name != names[i] || p.ID != created.Participants[i].ID {
			t.Errorf("participant %d = %+v", i, p)
		}
	}

	if _, err := repo.GetGroup(ctx, "missing"); !errors.Is(err, ports.ErrGroupNotFound) {
		t.Fatalf("expected ErrGroupNotFound, got %v", err)
	}
}

func TestSQLiteRepository_Expenses(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	g, err := repo.CreateGroup(ctx, core.Group{
		Name:         "Flat",
		Currency:     "$",
		Participants: []core.Participant{{Name: "Alice"}, {Name: "Bob"}, {Name: "Carol"}},
	})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	alice, bob, carol := g.Participants[0].ID, g.Participants[1].ID, g.Participants[2].ID
	two := int64(2)

	dinner, err := repo.CreateExpense(ctx, core.Expense{
		GroupID:     g.ID,
		Title:       "Dinner",
		Amount:      4500,
		ExpenseDate: time.Date(2024, 1, 4, 1, 0, 0, 0, time.FixedZone("CET", 3600)),
		Category:    core.Category{ID: 8},
		PaidByID:    alice,
		PaidFor:     []core.PaidFor{{ParticipantID: carol}, {ParticipantID: alice, Shares: &two}},
		Location:    &core.Location{Latitude: 38.72, Longitude: -9.14},
	})
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	if dinner.ID == "" {
		t.Fatal("expected generated id")
	}
	if dinner.Category.Label() != "Food and Drink/Dining Out" {
		t.Fatalf("category = %+v", dinner.Category)
	}
	if !dinner.ExpenseDate.Equal(time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)) || dinner.ExpenseDate.Location() != time.UTC {
		t.Fatalf("date = %v", dinner.ExpenseDate)
	}
	if len(dinner.PaidFor) != 2 || dinner.PaidFor[0].ParticipantID != carol || dinner.PaidFor[1].Shares == nil || *dinner.PaidFor[1].Shares != 2 {
		t.Fatalf("paid for = %+v", dinner.PaidFor)
	}
	if dinner.Location == nil || dinner.Location.Latitude != 38.72 {
		t.Fatalf("location = %+v", dinner.Location)
	}

	if _, err := repo.CreateExpense(ctx, core.Expense{
		GroupID:         g.ID,
		Title:           "Payback",
		Amount:          2000,
		ExpenseDate:     time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC),
		PaidByID:        bob,
		PaidFor:         []core.PaidFor{{ParticipantID: alice}},
		IsReimbursement: true,
	}); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	list, err := repo.ListExpensesByGroup(ctx, g.ID)
	if err != nil {
		t.Fatalf("ListExpensesByGroup failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d expenses", len(list))
	}
	if list[0].Title != "Payback" || !list[0].IsReimbursement || list[0].Location != nil {
		t.Fatalf("first = %+v", list[0])
	}
	if list[0].Category.ID != 0 || list[0].Category.Name != "General" {
		t.Fatalf("default category = %+v", list[0].Category)
	}
	if len(list[1].PaidFor) != 2 {
		t.Fatalf("paid for not loaded: %+v", list[1])
	}

	if _, err := repo.GetExpense(ctx, "missing"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	empty, err := repo.ListExpensesByGroup(ctx, "other")
	if err != nil || len(empty) != 0 {
		t.Fatalf("got %v, %v", empty, err)
	}
}

func TestSQLiteRepository_SameDateOrderedByCreation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	g, err := repo.CreateGroup(ctx, core.Group{Name: "G", Participants: []core.Participant{{Name: "A"}}})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	a := g.Participants[0].ID
	base := time.Date(2024, 1, 4, 9, 0, 0, 0, time.UTC)

	for _, tc := range []struct {
		title   string
		created time.Time
	}{
		{"whole second", base},
		{"half second", base.Add(500 * time.Millisecond)},
		{"next second", base.Add(time.Second)},
	} {
		if _, err := repo.CreateExpense(ctx, core.Expense{
			GroupID:     g.ID,
			Title:       tc.title,
			Amount:      100,
			ExpenseDate: time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
			PaidByID:    a,
			PaidFor:     []core.PaidFor{{ParticipantID: a}},
			CreatedAt:   tc.created,
		}); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}
	}

	list, err := repo.ListExpensesByGroup(ctx, g.ID)
	if err != nil {
		t.Fatalf("ListExpensesByGroup failed: %v", err)
	}
	want := []string{"next second", "half second", "whole second"}
	for i, title := range want {
		if list[i].Title != title {
			t.Errorf("position %d = %q, want %q", i, list[i].Title, title)
		}
	}
	if !list[1].CreatedAt.Equal(base.Add(500 * time.Millisecond)) {
		t.Fatalf("created_at round trip = %v", list[1].CreatedAt)
	}
}

func TestSQLiteRepository_RejectsUnknownCategory(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	g, err := repo.CreateGroup(ctx, core.Group{Name: "G", Participants: []core.Participant{{Name: "A"}}})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	_, err = repo.CreateExpense(ctx, core.Expense{
		GroupID:     g.ID,
		Title:       "x",
		Amount:      1,
		ExpenseDate: time.Now(),
		Category:    core.Category{ID: 999},
		PaidByID:    g.Participants[0].ID,
		PaidFor:     []core.PaidFor{{ParticipantID: g.Participants[0].ID}},
	})
	if err == nil {
		t.Fatal("expected foreign key violation")
	}
}
