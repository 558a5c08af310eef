// Package http exposes the expense engine as a JSON API.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"spartispese/internal/core"
	applog "spartispese/internal/log"
	"spartispese/internal/metrics"
	"spartispese/internal/middleware/ratelimit"
	"spartispese/internal/middleware/security"
	"spartispese/internal/middleware/trace"
	"spartispese/internal/services"
)

// ExpenseAPI is the application surface the handlers call.
type ExpenseAPI interface {
	Categories(ctx context.Context) ([]core.Category, error)
	FeatureFlags() services.FeatureFlags
	ExtractCategory(ctx context.Context, title string) (int64, error)
	CreateGroup(ctx context.Context, name, currency string, participantNames []string) (core.Group, error)
	GetGroup(ctx context.Context, id string) (core.Group, error)
	CreateExpense(ctx context.Context, groupID string, in services.NewExpense) (core.Expense, error)
	ListExpenses(ctx context.Context, groupID string) (core.ExpenseList, error)
	Summary(ctx context.Context, groupID string) (core.GroupSummary, error)
	Ready(ctx context.Context) error
}

type Server struct {
	http.Server
	api      ExpenseAPI
	logger   *applog.Logger
	metrics  *metrics.Metrics
	detector *security.Detector
	limiter  *ratelimit.Limiter
}

// Option customises a Server.
type Option func(*Server)

func WithLogger(l *applog.Logger) Option {
	return func(s *Server) { s.logger = l.WithComponent(applog.ComponentHTTP) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithRateLimit limits write and inference endpoints per client IP.
func WithRateLimit(perMinute int) Option {
	return func(s *Server) {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: perMinute})
	}
}

// NewServer builds the server and its routes. Shutdown releases the rate
// limiter.
func NewServer(addr string, api ExpenseAPI, opts ...Option) *Server {
	s := &Server{
		api:      api,
		logger:   applog.FromContext(context.Background()).WithComponent(applog.ComponentHTTP),
		detector: security.NewDetector(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limiter == nil {
		s.limiter = ratelimit.NewLimiter(ratelimit.DefaultConfig())
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(trace.NewMiddleware(s.logger, s.metrics, s.detector.ExtractClientIP).Handler)
	r.Use(s.detector.Middleware(s.onSuspicious))
	r.Use(security.APIHeaders)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)

	r.Route("/api", func(r chi.Router) {
		r.Get("/categories", s.handleCategories)
		r.Get("/feature-flags", s.handleFeatureFlags)
		r.With(limited).Post("/categories/extract", s.handleExtractCategory)

		r.With(limited).Post("/groups", s.handleCreateGroup)
		r.Route("/groups/{groupID}", func(r chi.Router) {
			r.Get("/", s.handleGetGroup)
			r.Get("/expenses", s.handleListExpenses)
			r.With(limited).Post("/expenses", s.handleCreateExpense)
			r.Get("/summary", s.handleSummary)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

func (s *Server) onSuspicious(r *http.Request) {
	s.metrics.SuspiciousRequest()
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request detected",
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path,
		applog.FieldClientIP, s.detector.ExtractClientIP(r))
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.RateLimited()
	writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded, try again later")
}

// Shutdown stops accepting requests and releases background resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}
