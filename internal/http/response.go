package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"spartispese/internal/core"
	applog "spartispese/internal/log"
	"spartispese/internal/middleware/trace"
	"spartispese/internal/ports"
	"spartispese/internal/services"
)

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

type categoryResponse struct {
	ID       int64  `json:"id"`
	Grouping string `json:"grouping"`
	Name     string `json:"name"`
}

type participantResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type groupResponse struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Currency     string                `json:"currency"`
	Participants []participantResponse `json:"participants"`
}

type expenseResponse struct {
	ID              string           `json:"id"`
	GroupID         string           `json:"groupId"`
	Title           string           `json:"title"`
	AmountCents     int64            `json:"amountCents"`
	Amount          string           `json:"amount"`
	ExpenseDate     string           `json:"expenseDate"`
	Category        categoryResponse `json:"category"`
	PaidBy          string           `json:"paidBy"`
	PaidFor         []paidForRequest `json:"paidFor"`
	IsReimbursement bool             `json:"isReimbursement"`
	Location        *locationRequest `json:"location,omitempty"`
}

type expenseLineResponse struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	CategoryID       int64    `json:"categoryId"`
	CategoryLabel    string   `json:"categoryLabel"`
	PayerName        string   `json:"paidBy"`
	BeneficiaryNames []string `json:"paidFor"`
	Beneficiaries    string   `json:"paidForLabel"`
	Amount           string   `json:"amount"`
	AmountLabel      string   `json:"amountLabel"`
	Reimbursement    bool     `json:"isReimbursement"`
}

type bucketResponse struct {
	DateLabel string                `json:"date"`
	Expenses  []expenseLineResponse `json:"expenses"`
}

type expenseListResponse struct {
	State   core.ListState   `json:"state"`
	Buckets []bucketResponse `json:"buckets"`
}

type categoryAmountResponse struct {
	CategoryID int64  `json:"categoryId"`
	Label      string `json:"label"`
	Amount     string `json:"amount"`
}

type summaryResponse struct {
	GroupID    string                   `json:"groupId"`
	Currency   string                   `json:"currency"`
	Count      int                      `json:"count"`
	Total      string                   `json:"total"`
	ByCategory []categoryAmountResponse `json:"byCategory"`
}

func toCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Grouping: c.Grouping, Name: c.Name}
}

func toGroupResponse(g core.Group) groupResponse {
	out := groupResponse{ID: g.ID, Name: g.Name, Currency: g.Currency, Participants: []participantResponse{}}
	for _, p := range g.Participants {
		out.Participants = append(out.Participants, participantResponse{ID: p.ID, Name: p.Name})
	}
	return out
}

func toExpenseResponse(e core.Expense) expenseResponse {
	out := expenseResponse{
		ID:              e.ID,
		GroupID:         e.GroupID,
		Title:           e.Title,
		AmountCents:     e.Amount,
		Amount:          core.FormatAmount(e.Amount),
		ExpenseDate:     e.ExpenseDate.UTC().Format(time.RFC3339),
		Category:        toCategoryResponse(e.Category),
		PaidBy:          e.PaidByID,
		PaidFor:         []paidForRequest{},
		IsReimbursement: e.IsReimbursement,
	}
	for _, pf := range e.PaidFor {
		out.PaidFor = append(out.PaidFor, paidForRequest{ParticipantID: pf.ParticipantID, Shares: pf.Shares})
	}
	if e.Location != nil {
		out.Location = &locationRequest{Latitude: e.Location.Latitude, Longitude: e.Location.Longitude}
	}
	return out
}

func toExpenseListResponse(l core.ExpenseList) expenseListResponse {
	out := expenseListResponse{State: l.State, Buckets: []bucketResponse{}}
	for _, b := range l.Buckets {
		br := bucketResponse{DateLabel: b.DateLabel, Expenses: make([]expenseLineResponse, 0, len(b.Lines))}
		for _, line := range b.Lines {
			br.Expenses = append(br.Expenses, expenseLineResponse{
				ID:               line.ID,
				Title:            line.Title,
				CategoryID:       line.CategoryID,
				CategoryLabel:    line.CategoryLabel,
				PayerName:        line.PayerName,
				BeneficiaryNames: line.BeneficiaryNames,
				Beneficiaries:    line.Beneficiaries,
				Amount:           line.Amount,
				AmountLabel:      line.AmountLabel,
				Reimbursement:    line.Reimbursement,
			})
		}
		out.Buckets = append(out.Buckets, br)
	}
	return out
}

func toSummaryResponse(g core.Group, s core.GroupSummary) summaryResponse {
	out := summaryResponse{
		GroupID:    g.ID,
		Currency:   g.Currency,
		Count:      s.Count,
		Total:      core.FormatAmount(s.Total),
		ByCategory: []categoryAmountResponse{},
	}
	for _, c := range s.ByCategory {
		out.ByCategory = append(out.ByCategory, categoryAmountResponse{
			CategoryID: c.CategoryID,
			Label:      c.Label,
			Amount:     core.FormatAmount(c.Amount),
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to encode response", applog.FieldError, err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{Error: msg, RequestID: trace.GetRequestID(r.Context())})
}

var validationErrors = []error{
	core.ErrEmptyTitle,
	core.ErrTitleTooLong,
	core.ErrInvalidAmount,
	core.ErrInvalidDate,
	core.ErrMissingPayer,
	core.ErrNoBeneficiaries,
	core.ErrDuplicateBeneficiary,
	core.ErrInvalidLocation,
	core.ErrEmptyGroupName,
	core.ErrNoParticipants,
	core.ErrEmptyParticipantName,
	core.ErrUnknownParticipant,
}

// statusFor maps an application error to its HTTP status and public
// message. Unexpected errors never leak their text.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ports.ErrGroupNotFound):
		return http.StatusNotFound, "group not found"
	case errors.Is(err, ports.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, services.ErrFeatureDisabled):
		return http.StatusForbidden, "feature disabled"
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return http.StatusUnprocessableEntity, err.Error()
		}
	}
	return http.StatusInternalServerError, "internal server error"
}

// fail writes the error response for err and logs server-side failures.
func fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op, nil)
	}
	writeError(w, r, status, msg)
}
