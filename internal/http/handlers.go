package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	applog "spartispese/internal/log"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.api.Ready(ctx); err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
		writeError(w, r, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.api.Categories(r.Context())
	if err != nil {
		fail(w, r, applog.OpList, err)
		return
	}
	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, toCategoryResponse(c))
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleFeatureFlags(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.api.FeatureFlags())
}

func (s *Server) handleExtractCategory(w http.ResponseWriter, r *http.Request) {
	var req extractCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, applog.OpClassify, err)
		return
	}
	id, err := s.api.ExtractCategory(r.Context(), sanitizeInput(req.Title))
	if err != nil {
		fail(w, r, applog.OpClassify, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]int64{"categoryId": id})
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, applog.OpCreate, err)
		return
	}
	names := make([]string, len(req.Participants))
	for i, n := range req.Participants {
		names[i] = sanitizeInput(n)
	}
	g, err := s.api.CreateGroup(r.Context(), sanitizeInput(req.Name), sanitizeInput(req.Currency), names)
	if err != nil {
		fail(w, r, applog.OpCreate, err)
		return
	}
	w.Header().Set("Location", "/api/groups/"+g.ID)
	writeJSON(w, r, http.StatusCreated, toGroupResponse(g))
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := s.api.GetGroup(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		fail(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toGroupResponse(g))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	list, err := s.api.ListExpenses(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		fail(w, r, applog.OpList, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toExpenseListResponse(list))
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, applog.OpCreate, err)
		return
	}
	in, err := req.toNewExpense()
	if err != nil {
		fail(w, r, applog.OpCreate, err)
		return
	}

	e, err := s.api.CreateExpense(r.Context(), chi.URLParam(r, "groupID"), in)
	if err != nil {
		fail(w, r, applog.OpCreate, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toExpenseResponse(e))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	g, err := s.api.GetGroup(r.Context(), groupID)
	if err != nil {
		fail(w, r, applog.OpRead, err)
		return
	}
	sum, err := s.api.Summary(r.Context(), groupID)
	if err != nil {
		fail(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toSummaryResponse(g, sum))
}
