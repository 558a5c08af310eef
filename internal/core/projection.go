package core

import "strings"

// ListState tells a renderer which terminal state an expense list is in.
type ListState string

const (
	// ListStateEmpty means the group has no expenses yet. It is a normal
	// state, not an error.
	ListStateEmpty ListState = "empty"
	ListStateReady ListState = "ready"
)

// Roster resolves participant ids to names for one group.
type Roster struct {
	names map[string]string
}

// NewRoster indexes participants by id.
func NewRoster(participants []Participant) Roster {
	names := make(map[string]string, len(participants))
	for _, p := range participants {
		names[p.ID] = p.Name
	}
	return Roster{names: names}
}

// Name returns the participant's name. Unknown ids resolve to "" and false;
// callers render the empty name instead of failing.
func (r Roster) Name(id string) (string, bool) {
	name, ok := r.names[id]
	return name, ok
}

// ExpenseLine is the render unit for a single expense.
type ExpenseLine struct {
	ID               string
	Title            string
	CategoryID       int64
	CategoryLabel    string
	PayerName        string
	BeneficiaryNames []string
	Beneficiaries    string // BeneficiaryNames joined by ", "
	Amount           string // major units, two fraction digits
	AmountLabel      string // Amount prefixed by the currency label
	DateLabel        string
	Reimbursement    bool
}

// BucketView is one rendered date bucket.
type BucketView struct {
	DateLabel string
	Lines     []ExpenseLine
}

// ExpenseList is the full rendered expense list of a group.
type ExpenseList struct {
	State   ListState
	Buckets []BucketView
}

// ProjectExpense renders a single expense. Reimbursements are only flagged;
// their amount keeps the stored sign and magnitude.
func ProjectExpense(e Expense, roster Roster, currency string) ExpenseLine {
	payer, _ := roster.Name(e.PaidByID)

	names := make([]string, len(e.PaidFor))
	for i, pf := range e.PaidFor {
		names[i], _ = roster.Name(pf.ParticipantID)
	}

	return ExpenseLine{
		ID:               e.ID,
		Title:            e.Title,
		CategoryID:       e.Category.ID,
		CategoryLabel:    categoryLabel(e.Category),
		PayerName:        payer,
		BeneficiaryNames: names,
		Beneficiaries:    strings.Join(names, ", "),
		Amount:           FormatAmount(e.Amount),
		AmountLabel:      FormatCurrency(currency, e.Amount),
		DateLabel:        BucketLabel(e.ExpenseDate),
		Reimbursement:    e.IsReimbursement,
	}
}

// Project maps grouped expenses to render units. It has no side effects.
func Project(buckets []DateBucket, roster Roster, currency string) ExpenseList {
	if Count(buckets) == 0 {
		return ExpenseList{State: ListStateEmpty}
	}

	views := make([]BucketView, 0, len(buckets))
	for _, b := range buckets {
		lines := make([]ExpenseLine, len(b.Expenses))
		for i, e := range b.Expenses {
			lines[i] = ProjectExpense(e, roster, currency)
		}
		views = append(views, BucketView{DateLabel: b.DateLabel, Lines: lines})
	}
	return ExpenseList{State: ListStateReady, Buckets: views}
}

func categoryLabel(c Category) string {
	if c.Grouping == "" && c.Name == "" {
		return ""
	}
	return c.Label()
}
