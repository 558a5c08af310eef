package core

import (
	"errors"
	"strings"
	"time"
)

// FallbackCategoryID is the reserved "General" category every failed or
// unknown classification resolves to.
const FallbackCategoryID int64 = 0

const maxTitleLength = 200

type (
	Category struct {
		ID       int64
		Grouping string
		Name     string
	}

	Participant struct {
		ID   string
		Name string
	}

	Group struct {
		ID           string
		Name         string
		Currency     string // display label, e.g. "EUR" or "$"
		Participants []Participant
		CreatedAt    time.Time
	}

	// PaidFor is one beneficiary of an expense. Shares is optional and only
	// carried through for callers that split unevenly.
	PaidFor struct {
		ParticipantID string
		Shares        *int64
	}

	Location struct {
		Latitude  float64
		Longitude float64
	}

	Expense struct {
		ID              string
		GroupID         string
		Title           string
		Amount          int64 // minor currency units
		ExpenseDate     time.Time
		Category        Category
		PaidByID        string
		PaidFor         []PaidFor
		IsReimbursement bool
		Location        *Location
		CreatedAt       time.Time
	}
)

var (
	ErrEmptyTitle           = errors.New("empty title")
	ErrTitleTooLong         = errors.New("title too long (max 200 characters)")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidDate          = errors.New("invalid expense date")
	ErrMissingPayer         = errors.New("missing payer")
	ErrNoBeneficiaries      = errors.New("expense must be paid for at least one participant")
	ErrDuplicateBeneficiary = errors.New("duplicate beneficiary")
	ErrInvalidLocation      = errors.New("invalid location")
	ErrEmptyGroupName       = errors.New("empty group name")
	ErrNoParticipants       = errors.New("group must have at least one participant")
	ErrEmptyParticipantName = errors.New("participant name cannot be empty")
	ErrUnknownParticipant   = errors.New("participant does not belong to the group")
)

// Label renders the category the way it is shown to the classifier and in
// exports: "Grouping/Name".
func (c Category) Label() string {
	return c.Grouping + "/" + c.Name
}

// IsFallback reports whether c is the reserved "General" category.
func (c Category) IsFallback() bool {
	return c.ID == FallbackCategoryID
}

// Participant returns the group member with the given id.
func (g Group) Participant(id string) (Participant, bool) {
	for _, p := range g.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return Participant{}, false
}

func (g Group) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyGroupName
	}
	if len(g.Participants) == 0 {
		return ErrNoParticipants
	}
	for _, p := range g.Participants {
		if strings.TrimSpace(p.Name) == "" {
			return ErrEmptyParticipantName
		}
	}
	return nil
}

func (l Location) Validate() error {
	if l.Latitude < -90 || l.Latitude > 90 || l.Longitude < -180 || l.Longitude > 180 {
		return ErrInvalidLocation
	}
	return nil
}

func (e Expense) Validate() error {
	if len(strings.TrimSpace(e.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len([]rune(e.Title)) > maxTitleLength {
		return ErrTitleTooLong
	}
	if e.Amount == 0 {
		return ErrInvalidAmount
	}
	// Stored dates are four-digit-year timestamps.
	if y := e.ExpenseDate.UTC().Year(); e.ExpenseDate.IsZero() || y < 1 || y > 9999 {
		return ErrInvalidDate
	}
	if strings.TrimSpace(e.PaidByID) == "" {
		return ErrMissingPayer
	}
	if len(e.PaidFor) == 0 {
		return ErrNoBeneficiaries
	}
	seen := make(map[string]struct{}, len(e.PaidFor))
	for _, pf := range e.PaidFor {
		if _, ok := seen[pf.ParticipantID]; ok {
			return ErrDuplicateBeneficiary
		}
		seen[pf.ParticipantID] = struct{}{}
	}
	if e.Location != nil {
		if err := e.Location.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// BeneficiaryIDs returns the paid-for participant ids in their stored order.
func (e Expense) BeneficiaryIDs() []string {
	ids := make([]string, len(e.PaidFor))
	for i, pf := range e.PaidFor {
		ids[i] = pf.ParticipantID
	}
	return ids
}
