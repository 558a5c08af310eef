package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"spartispese/internal/amqp"
	"spartispese/internal/classifier"
	"spartispese/internal/core"
	applog "spartispese/internal/log"
	"spartispese/internal/metrics"
	"spartispese/internal/ports"
)

// ErrFeatureDisabled is returned when an operation is switched off by a
// feature flag.
var ErrFeatureDisabled = errors.New("feature disabled")

// How the category of a new expense was chosen.
const (
	CategorySourceUser       = "user"
	CategorySourceClassifier = "classifier"
	CategorySourceFallback   = "fallback"
)

// Classifier infers a category from a title.
type Classifier interface {
	Classify(ctx context.Context, title string, catalog []core.Category) classifier.Result
}

// Publisher announces persisted expenses.
type Publisher interface {
	PublishExpenseCreated(ctx context.Context, msg *amqp.ExpenseCreatedMessage) error
}

// FeatureFlags toggles optional behaviour exposed to clients.
type FeatureFlags struct {
	EnableCategoryExtract bool `json:"enableCategoryExtract"`
}

// NewExpense is the input of CreateExpense. A nil CategoryID asks for
// classification.
type NewExpense struct {
	Title           string
	Amount          int64
	ExpenseDate     time.Time
	CategoryID      *int64
	PaidByID        string
	PaidFor         []core.PaidFor
	IsReimbursement bool
	Location        *core.Location
}

// ExpenseService orchestrates expense creation and views across storage, the
// classifier and the event bus.
type ExpenseService struct {
	repo       ports.Repository
	classifier Classifier
	publisher  Publisher
	flags      FeatureFlags
	metrics    *metrics.Metrics
	logger     *applog.Logger
	structured *applog.StructuredLogger
}

// Option customises an ExpenseService.
type Option func(*ExpenseService)

func WithPublisher(p Publisher) Option { return func(s *ExpenseService) { s.publisher = p } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *ExpenseService) { s.metrics = m } }

func WithLogger(l *applog.Logger) Option {
	return func(s *ExpenseService) {
		s.logger = l.WithComponent(applog.ComponentExpense)
		s.structured = applog.NewStructuredLogger(l)
	}
}

func NewExpenseService(repo ports.Repository, cl Classifier, flags FeatureFlags, opts ...Option) *ExpenseService {
	logger := applog.FromContext(context.Background()).WithComponent(applog.ComponentExpense)
	s := &ExpenseService{
		repo:       repo,
		classifier: cl,
		flags:      flags,
		logger:     logger,
		structured: applog.NewStructuredLogger(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ExpenseService) FeatureFlags() FeatureFlags { return s.flags }

func (s *ExpenseService) Categories(ctx context.Context) ([]core.Category, error) {
	cats, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	return cats, nil
}

// CreateGroup creates a group with one participant per name.
func (s *ExpenseService) CreateGroup(ctx context.Context, name, currency string, participantNames []string) (core.Group, error) {
	g := core.Group{
		Name:     strings.TrimSpace(name),
		Currency: strings.TrimSpace(currency),
	}
	for _, n := range participantNames {
		g.Participants = append(g.Participants, core.Participant{Name: strings.TrimSpace(n)})
	}
	if err := g.Validate(); err != nil {
		return core.Group{}, err
	}

	created, err := s.repo.CreateGroup(ctx, g)
	if err != nil {
		return core.Group{}, fmt.Errorf("create group: %w", err)
	}
	s.logger.InfoContext(ctx, "Group created",
		applog.FieldGroupID, created.ID,
		"participants", len(created.Participants))
	return created, nil
}

func (s *ExpenseService) GetGroup(ctx context.Context, id string) (core.Group, error) {
	return s.repo.GetGroup(ctx, id)
}

// CreateExpense validates, categorises, persists and announces an expense.
// The classifier runs at most once, only when no category was chosen, and
// never blocks creation.
func (s *ExpenseService) CreateExpense(ctx context.Context, groupID string, in NewExpense) (core.Expense, error) {
	group, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return core.Expense{}, err
	}

	e := core.Expense{
		GroupID:         group.ID,
		Title:           strings.TrimSpace(in.Title),
		Amount:          in.Amount,
		ExpenseDate:     in.ExpenseDate,
		PaidByID:        in.PaidByID,
		PaidFor:         in.PaidFor,
		IsReimbursement: in.IsReimbursement,
		Location:        in.Location,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if _, ok := group.Participant(e.PaidByID); !ok {
		return core.Expense{}, fmt.Errorf("payer %s: %w", e.PaidByID, core.ErrUnknownParticipant)
	}
	for _, id := range e.BeneficiaryIDs() {
		if _, ok := group.Participant(id); !ok {
			return core.Expense{}, fmt.Errorf("beneficiary %s: %w", id, core.ErrUnknownParticipant)
		}
	}

	catalog, err := s.Categories(ctx)
	if err != nil {
		return core.Expense{}, err
	}
	category, source := s.chooseCategory(ctx, e.Title, in.CategoryID, catalog)
	e.Category = category

	created, err := s.repo.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	s.metrics.ExpenseCreated(source)
	s.structured.LogExpenseCreated(ctx, created.ID, created.GroupID, created.Amount, created.Category.ID, source)

	if err := s.publish(ctx, created); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense created message",
			applog.FieldExpenseID, created.ID,
			applog.FieldError, err)
	}

	return created, nil
}

func (s *ExpenseService) chooseCategory(ctx context.Context, title string, requested *int64, catalog []core.Category) (core.Category, string) {
	fallback, ok := core.FindCategory(catalog, core.FallbackCategoryID)
	if !ok {
		fallback = core.Category{ID: core.FallbackCategoryID}
	}

	if requested != nil {
		if c, ok := core.FindCategory(catalog, *requested); ok {
			return c, CategorySourceUser
		}
		s.logger.WarnContext(ctx, "Requested category not in catalog, using fallback",
			applog.FieldCategoryID, *requested)
		return fallback, CategorySourceFallback
	}

	if !s.flags.EnableCategoryExtract || s.classifier == nil {
		return fallback, CategorySourceFallback
	}

	res := s.classifier.Classify(ctx, title, catalog)
	if res.CategoryID != core.FallbackCategoryID {
		if c, ok := core.FindCategory(catalog, res.CategoryID); ok {
			return c, CategorySourceClassifier
		}
	}
	return fallback, CategorySourceFallback
}

func (s *ExpenseService) publish(ctx context.Context, e core.Expense) error {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No publisher configured, skipping expense created message")
		return nil
	}
	err := s.publisher.PublishExpenseCreated(ctx, amqp.NewExpenseCreatedMessage(e))
	s.metrics.EventPublished(err)
	return err
}

// ListExpenses returns the group's expenses grouped by UTC day and rendered
// for display.
func (s *ExpenseService) ListExpenses(ctx context.Context, groupID string) (core.ExpenseList, error) {
	group, expenses, err := s.load(ctx, groupID)
	if err != nil {
		return core.ExpenseList{}, err
	}
	return core.Project(core.GroupByDate(expenses), core.NewRoster(group.Participants), group.Currency), nil
}

// Summary totals the group's spending by category.
func (s *ExpenseService) Summary(ctx context.Context, groupID string) (core.GroupSummary, error) {
	_, expenses, err := s.load(ctx, groupID)
	if err != nil {
		return core.GroupSummary{}, err
	}
	return core.Summarize(expenses), nil
}

func (s *ExpenseService) load(ctx context.Context, groupID string) (core.Group, []core.Expense, error) {
	group, err := s.repo.GetGroup(ctx, groupID)
	if err != nil {
		return core.Group{}, nil, err
	}
	expenses, err := s.repo.ListExpensesByGroup(ctx, groupID)
	if err != nil {
		return core.Group{}, nil, fmt.Errorf("list expenses: %w", err)
	}
	return group, expenses, nil
}

// ExtractCategory suggests a category for a title without creating anything.
func (s *ExpenseService) ExtractCategory(ctx context.Context, title string) (int64, error) {
	if !s.flags.EnableCategoryExtract {
		return 0, ErrFeatureDisabled
	}
	if strings.TrimSpace(title) == "" {
		return 0, core.ErrEmptyTitle
	}
	catalog, err := s.Categories(ctx)
	if err != nil {
		return 0, err
	}
	if s.classifier == nil {
		return core.FallbackCategoryID, nil
	}
	return s.classifier.Classify(ctx, title, catalog).CategoryID, nil
}

// Ready reports whether storage is reachable.
func (s *ExpenseService) Ready(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Close closes storage and the publisher when it holds resources.
func (s *ExpenseService) Close() error {
	var errs []error

	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %w", errors.Join(errs...))
	}
	return nil
}
