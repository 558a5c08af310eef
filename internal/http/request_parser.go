package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"spartispese/internal/core"
	"spartispese/internal/services"
)

const maxBodyBytes = 1 << 20

// errBadRequest marks malformed request bodies.
var errBadRequest = errors.New("bad request")

// decodeJSON reads a single JSON object into dst. Unknown fields and
// trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("%w: body must contain a single JSON object", errBadRequest)
	}
	return nil
}

// amountField accepts a major-unit amount as either a JSON string ("12.34",
// "12,34") or a JSON number (12.34).
type amountField string

func (a *amountField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amountField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a string or a number")
	}
	*a = amountField(n.String())
	return nil
}

type createGroupRequest struct {
	Name         string   `json:"name"`
	Currency     string   `json:"currency"`
	Participants []string `json:"participants"`
}

type extractCategoryRequest struct {
	Title string `json:"title"`
}

type paidForRequest struct {
	ParticipantID string `json:"participantId"`
	Shares        *int64 `json:"shares,omitempty"`
}

type locationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type createExpenseRequest struct {
	Title           string           `json:"title"`
	Amount          amountField      `json:"amount"`
	ExpenseDate     string           `json:"expenseDate"`
	CategoryID      *int64           `json:"categoryId,omitempty"`
	PaidBy          string           `json:"paidBy"`
	PaidFor         []paidForRequest `json:"paidFor"`
	IsReimbursement bool             `json:"isReimbursement"`
	Location        *locationRequest `json:"location,omitempty"`
}

// toNewExpense converts the request, leaving semantic validation to the
// service.
func (req createExpenseRequest) toNewExpense() (services.NewExpense, error) {
	amount, err := core.ParseAmountToMinor(string(req.Amount))
	if err != nil {
		return services.NewExpense{}, err
	}
	date, err := parseExpenseDate(req.ExpenseDate)
	if err != nil {
		return services.NewExpense{}, err
	}

	in := services.NewExpense{
		Title:           sanitizeInput(req.Title),
		Amount:          amount,
		ExpenseDate:     date,
		CategoryID:      req.CategoryID,
		PaidByID:        strings.TrimSpace(req.PaidBy),
		IsReimbursement: req.IsReimbursement,
	}
	for _, pf := range req.PaidFor {
		in.PaidFor = append(in.PaidFor, core.PaidFor{
			ParticipantID: strings.TrimSpace(pf.ParticipantID),
			Shares:        pf.Shares,
		})
	}
	if req.Location != nil {
		in.Location = &core.Location{Latitude: req.Location.Latitude, Longitude: req.Location.Longitude}
	}
	return in, nil
}

// parseExpenseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates,
// which are read as UTC midnight.
func parseExpenseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, core.ErrInvalidDate
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.UTC); err == nil {
		return t, nil
	}
	return time.Time{}, core.ErrInvalidDate
}

// sanitizeInput drops control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}
