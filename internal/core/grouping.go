package core

import (
	"slices"
	"strings"
	"time"
)

// BucketLabelLayout is the medium date style used for bucket labels,
// e.g. "Jan 4, 2024".
const BucketLabelLayout = "Jan 2, 2006"

// DateBucket holds the expenses of one UTC calendar day. Buckets are derived
// on every view and never persisted.
type DateBucket struct {
	DateLabel string
	Expenses  []Expense
}

// BucketLabel formats t as its UTC calendar day. The viewer's timezone never
// takes part, so the same instant always yields the same label.
func BucketLabel(t time.Time) string {
	return t.UTC().Format(BucketLabelLayout)
}

// parseBucketLabel turns a label back into the UTC midnight it names.
func parseBucketLabel(label string) (time.Time, error) {
	return time.ParseInLocation(BucketLabelLayout, label, time.UTC)
}

// utcDay returns the UTC midnight of t's calendar day.
func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// GroupByDate partitions expenses into UTC day buckets.
//
// Buckets are ordered most recent first by parsing each label back into a
// date. A label the layout cannot read back, such as a five-digit year, uses
// the day recorded when its bucket was opened. Inside a bucket expenses are
// ordered by ExpenseDate descending, then CreatedAt descending, then ID
// ascending, so the result does not depend on the order storage returned them
// in. Every input expense appears in exactly one bucket, and an empty input
// yields no buckets.
func GroupByDate(expenses []Expense) []DateBucket {
	if len(expenses) == 0 {
		return nil
	}

	index := make(map[string]int)
	var (
		buckets []DateBucket
		days    []time.Time
	)
	for _, e := range expenses {
		label := BucketLabel(e.ExpenseDate)
		i, ok := index[label]
		if !ok {
			i = len(buckets)
			index[label] = i
			buckets = append(buckets, DateBucket{DateLabel: label})
			days = append(days, utcDay(e.ExpenseDate))
		}
		buckets[i].Expenses = append(buckets[i].Expenses, e)
	}

	for i := range buckets {
		slices.SortFunc(buckets[i].Expenses, compareExpenses)
		if day, err := parseBucketLabel(buckets[i].DateLabel); err == nil {
			days[i] = day
		}
	}

	order := make([]int, len(buckets))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int {
		return days[b].Compare(days[a])
	})

	sorted := make([]DateBucket, len(buckets))
	for i, j := range order {
		sorted[i] = buckets[j]
	}
	return sorted
}

func compareExpenses(a, b Expense) int {
	if c := b.ExpenseDate.Compare(a.ExpenseDate); c != 0 {
		return c
	}
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// Count returns the number of expenses across all buckets.
func Count(buckets []DateBucket) int {
	n := 0
	for _, b := range buckets {
		n += len(b.Expenses)
	}
	return n
}
