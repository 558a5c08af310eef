package core

import (
	"slices"
	"strings"
)

// CategoryAmount represents an amount aggregated by category.
type CategoryAmount struct {
	CategoryID int64
	Label      string
	Amount     int64
}

// GroupSummary is a compact spending overview for a group.
type GroupSummary struct {
	Count      int
	Total      int64 // reimbursements excluded
	ByCategory []CategoryAmount
}

// Summarize totals group spending. Reimbursements move money between
// participants and are not spending, so they are left out of every total.
// Categories are ordered by amount descending, then by id.
func Summarize(expenses []Expense) GroupSummary {
	var s GroupSummary
	index := make(map[int64]int)
	for _, e := range expenses {
		if e.IsReimbursement {
			continue
		}
		s.Count++
		s.Total += e.Amount

		i, ok := index[e.Category.ID]
		if !ok {
			i = len(s.ByCategory)
			index[e.Category.ID] = i
			s.ByCategory = append(s.ByCategory, CategoryAmount{
				CategoryID: e.Category.ID,
				Label:      categoryLabel(e.Category),
			})
		}
		s.ByCategory[i].Amount += e.Amount
	}

	slices.SortFunc(s.ByCategory, func(a, b CategoryAmount) int {
		if a.Amount != b.Amount {
			if a.Amount > b.Amount {
				return -1
			}
			return 1
		}
		if a.CategoryID < b.CategoryID {
			return -1
		}
		if a.CategoryID > b.CategoryID {
			return 1
		}
		return strings.Compare(a.Label, b.Label)
	})
	return s
}
