package core

import (
	"fmt"
	"math/rand"
	"testing"
	"time"
)

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func exp(id, date string) Expense {
	return Expense{ID: id, Title: id, Amount: 100, ExpenseDate: at(date)}
}

func TestBucketLabel(t *testing.T) {
	d := at("2024-01-04T01:00:00Z")
	if got := BucketLabel(d); got != "Jan 4, 2024" {
		t.Fatalf("got %q", got)
	}
	if BucketLabel(d) != BucketLabel(d) {
		t.Fatal("label is not deterministic")
	}

	// Same instant expressed in another zone lands on the same UTC day.
	tokyo := time.FixedZone("JST", 9*3600)
	if got := BucketLabel(d.In(tokyo)); got != "Jan 4, 2024" {
		t.Fatalf("zone leaked into label: %q", got)
	}
}

func TestGroupByDate_UTCDay(t *testing.T) {
	tests := []struct {
		name       string
		a, b       string
		sameBucket bool
	}{
		{"late evening and early morning are different UTC days", "2024-01-03T23:00:00Z", "2024-01-04T01:00:00Z", false},
		{"same UTC day", "2024-01-04T01:00:00Z", "2024-01-04T23:00:00Z", true},
		{"offset timestamps normalised to UTC", "2024-01-04T23:30:00-02:00", "2024-01-05T00:10:00Z", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buckets := GroupByDate([]Expense{exp("a", tt.a), exp("b", tt.b)})
			if got := len(buckets) == 1; got != tt.sameBucket {
				t.Fatalf("same bucket = %v, want %v (buckets=%v)", got, tt.sameBucket, buckets)
			}
		})
	}
}

func TestGroupByDate_Ordering(t *testing.T) {
	in := []Expense{
		exp("dec", "2023-12-31T12:00:00Z"),
		exp("jan4-morning", "2024-01-04T08:00:00Z"),
		exp("feb", "2024-02-01T09:00:00Z"),
		exp("jan4-evening", "2024-01-04T20:00:00Z"),
		exp("jan4-morning-2", "2024-01-04T08:00:00Z"),
		exp("sep", "2023-09-10T09:00:00Z"),
	}

	buckets := GroupByDate(in)

	wantLabels := []string{"Feb 1, 2024", "Jan 4, 2024", "Dec 31, 2023", "Sep 10, 2023"}
	if len(buckets) != len(wantLabels) {
		t.Fatalf("got %d buckets, want %d", len(buckets), len(wantLabels))
	}
	for i, want := range wantLabels {
		if buckets[i].DateLabel != want {
			t.Errorf("bucket %d = %q, want %q", i, buckets[i].DateLabel, want)
		}
	}

	jan := buckets[1].Expenses
	wantIDs := []string{"jan4-evening", "jan4-morning", "jan4-morning-2"}
	for i, id := range wantIDs {
		if jan[i].ID != id {
			t.Errorf("jan 4 position %d = %s, want %s", i, jan[i].ID, id)
		}
	}
}

func TestGroupByDate_SameDateTieBreak(t *testing.T) {
	date := at("2024-01-04T00:00:00Z")
	created := at("2024-01-05T09:00:00Z")
	first := Expense{ID: "b-first", ExpenseDate: date, CreatedAt: created}
	second := Expense{ID: "c-second", ExpenseDate: date, CreatedAt: created.Add(500 * time.Millisecond)}
	third := Expense{ID: "a-third", ExpenseDate: date, CreatedAt: created.Add(time.Second)}
	twin := Expense{ID: "a-twin", ExpenseDate: date, CreatedAt: created}

	want := []string{"a-third", "c-second", "a-twin", "b-first"}
	inputs := [][]Expense{
		{first, second, third, twin},
		{third, second, first, twin},
		{twin, first, third, second},
	}
	for n, in := range inputs {
		buckets := GroupByDate(in)
		if len(buckets) != 1 {
			t.Fatalf("input %d: %d buckets", n, len(buckets))
		}
		for i, id := range want {
			if got := buckets[0].Expenses[i].ID; got != id {
				t.Errorf("input %d: position %d = %s, want %s", n, i, got, id)
			}
		}
	}
}

func TestGroupByDate_YearBeyondLabelLayout(t *testing.T) {
	far := Expense{ID: "far", ExpenseDate: time.Date(10000, 1, 1, 12, 0, 0, 0, time.UTC)}
	near := exp("near", "2024-01-04T08:00:00Z")

	buckets := GroupByDate([]Expense{near, far})
	if len(buckets) != 2 {
		t.Fatalf("got %d buckets", len(buckets))
	}
	if buckets[0].Expenses[0].ID != "far" || buckets[1].Expenses[0].ID != "near" {
		t.Fatalf("unexpected order: %q then %q", buckets[0].DateLabel, buckets[1].DateLabel)
	}
}

func TestGroupByDate_Empty(t *testing.T) {
	if got := GroupByDate(nil); len(got) != 0 {
		t.Fatalf("expected no buckets, got %v", got)
	}
	if got := GroupByDate([]Expense{}); len(got) != 0 {
		t.Fatalf("expected no buckets, got %v", got)
	}
}

func TestGroupByDate_Partition(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	base := at("2023-01-01T00:00:00Z")

	for round := 0; round < 50; round++ {
		n := rng.Intn(60)
		in := make([]Expense, n)
		for i := range in {
			offset := time.Duration(rng.Int63n(int64(90 * 24 * time.Hour)))
			in[i] = Expense{ID: fmt.Sprintf("%d-%d", round, i), ExpenseDate: base.Add(offset)}
		}

		buckets := GroupByDate(in)

		if Count(buckets) != n {
			t.Fatalf("round %d: %d expenses in buckets, want %d", round, Count(buckets), n)
		}

		seen := make(map[string]int)
		labels := make(map[string]bool)
		for i, b := range buckets {
			if labels[b.DateLabel] {
				t.Fatalf("round %d: duplicate label %q", round, b.DateLabel)
			}
			labels[b.DateLabel] = true
			if i > 0 {
				prev, _ := parseBucketLabel(buckets[i-1].DateLabel)
				cur, _ := parseBucketLabel(b.DateLabel)
				if !prev.After(cur) {
					t.Fatalf("round %d: buckets not strictly descending: %q then %q", round, buckets[i-1].DateLabel, b.DateLabel)
				}
			}
			for j, e := range b.Expenses {
				seen[e.ID]++
				if BucketLabel(e.ExpenseDate) != b.DateLabel {
					t.Fatalf("round %d: expense %s in wrong bucket", round, e.ID)
				}
				if j > 0 && b.Expenses[j-1].ExpenseDate.Before(e.ExpenseDate) {
					t.Fatalf("round %d: bucket %q not descending", round, b.DateLabel)
				}
			}
		}
		for _, e := range in {
			if seen[e.ID] != 1 {
				t.Fatalf("round %d: expense %s seen %d times", round, e.ID, seen[e.ID])
			}
		}
	}
}

func TestGroupByDate_DoesNotMutateInput(t *testing.T) {
	in := []Expense{
		exp("early", "2024-01-04T08:00:00Z"),
		exp("late", "2024-01-04T20:00:00Z"),
	}
	GroupByDate(in)
	if in[0].ID != "early" || in[1].ID != "late" {
		t.Fatalf("input reordered: %v", in)
	}
}
