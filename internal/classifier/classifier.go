// Package classifier infers an expense category from its title through a
// text-completion service.
//
// Classification never fails from the caller's point of view: every problem
// with the outbound call or its reply resolves to the fallback category.
package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"spartispese/internal/cache"
	"spartispese/internal/core"
	applog "spartispese/internal/log"
	"spartispese/internal/metrics"
)

// ErrClassificationUnavailable wraps every absorbed inference failure.
var ErrClassificationUnavailable = errors.New("classification unavailable")

// Message is one chat message sent to the completion service.
type Message struct {
	Role    string
	Content string
}

// CompletionRequest is the bounded request sent for every classification.
type CompletionRequest struct {
	Model       string
	Temperature float32
	MaxTokens   int
	Messages    []Message
}

// Completer is the text-completion service. The returned choices are
// untrusted text.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) ([]string, error)
}

// Config tunes the classifier.
type Config struct {
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	// CacheSize of zero disables caching.
	CacheSize int
	CacheTTL  time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Model:       "gpt-3.5-turbo",
		Temperature: 0.1,
		MaxTokens:   4,
		Timeout:     10 * time.Second,
		CacheSize:   512,
		CacheTTL:    24 * time.Hour,
	}
}

// Result is the outcome of one classification. CategoryID is always usable;
// Outcome and Err are diagnostics.
type Result struct {
	CategoryID int64
	Outcome    string
	Err        error
}

// Classifier assigns categories to titles.
type Classifier struct {
	completer Completer
	cfg       Config
	cache     cache.Cache[int64]
	flight    singleflight.Group
	metrics   *metrics.Metrics
	logger    *applog.Logger
}

// Option customises a Classifier.
type Option func(*Classifier)

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Classifier) { c.metrics = m }
}

func WithLogger(l *applog.Logger) Option {
	return func(c *Classifier) { c.logger = l.WithComponent(applog.ComponentClassifier) }
}

// WithCache replaces the cache built from Config. Passing nil disables it.
func WithCache(ch cache.Cache[int64]) Option {
	return func(c *Classifier) { c.cache = ch }
}

// New creates a classifier. A nil completer is allowed and makes every
// classification fall back.
func New(completer Completer, cfg Config, opts ...Option) *Classifier {
	if cfg.MaxTokens < 1 {
		cfg.MaxTokens = 1
	}
	c := &Classifier{
		completer: completer,
		cfg:       cfg,
		logger:    applog.FromContext(context.Background()).WithComponent(applog.ComponentClassifier),
	}
	if cfg.CacheSize > 0 {
		c.cache = cache.NewLRUCache[int64](cfg.CacheSize, cfg.CacheTTL)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cleaner exposes the cache for periodic expiry sweeps, or nil when caching
// is off.
func (c *Classifier) Cleaner() cache.Cleaner {
	if cl, ok := c.cache.(cache.Cleaner); ok {
		return cl
	}
	return nil
}

type inference struct {
	id      int64
	outcome string
	err     error
}

// Classify returns the category for title. Only the first MaxTitleRunes
// characters are considered. At most one outbound call is made and it is
// never retried.
func (c *Classifier) Classify(ctx context.Context, title string, catalog []core.Category) Result {
	truncated := Truncate(title)

	if c.cache == nil {
		inf := c.infer(ctx, truncated, catalog)
		return c.finish(ctx, inf)
	}

	key := cacheKey(catalog, truncated)
	if id, ok := c.cache.Get(key); ok {
		c.metrics.Classification(metrics.OutcomeCacheHit)
		return Result{CategoryID: id, Outcome: metrics.OutcomeCacheHit}
	}

	// The shared call outlives any single caller; Config.Timeout bounds it.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(key, func() (any, error) {
		inf := c.infer(flightCtx, truncated, catalog)
		if inf.outcome == metrics.OutcomeOK {
			c.cache.Set(key, inf.id)
		}
		return inf, nil
	})

	select {
	case r := <-ch:
		return c.finish(ctx, r.Val.(inference))
	case <-ctx.Done():
		return c.finish(ctx, inference{
			id:      core.FallbackCategoryID,
			outcome: metrics.OutcomeFallbackError,
			err:     fmt.Errorf("%w: %w", ErrClassificationUnavailable, ctx.Err()),
		})
	}
}

func (c *Classifier) finish(ctx context.Context, inf inference) Result {
	c.metrics.Classification(inf.outcome)
	if inf.outcome != metrics.OutcomeOK {
		args := []any{applog.FieldOutcome, inf.outcome}
		if inf.err != nil {
			args = append(args, applog.FieldError, inf.err)
		}
		c.logger.WarnContext(ctx, "Classification fell back to default category", args...)
	}
	return Result{CategoryID: inf.id, Outcome: inf.outcome, Err: inf.err}
}

func (c *Classifier) infer(ctx context.Context, title string, catalog []core.Category) inference {
	if c.completer == nil {
		return inference{
			id:      core.FallbackCategoryID,
			outcome: metrics.OutcomeFallbackError,
			err:     fmt.Errorf("%w: no completion service configured", ErrClassificationUnavailable),
		}
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	req := CompletionRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Messages: []Message{
			{Role: "system", Content: BuildSystemPrompt(catalog)},
			{Role: "user", Content: title},
		},
	}

	start := time.Now()
	choices, err := c.completer.Complete(ctx, req)
	c.metrics.ObserveInference(time.Since(start))
	if err != nil {
		return inference{
			id:      core.FallbackCategoryID,
			outcome: metrics.OutcomeFallbackError,
			err:     fmt.Errorf("%w: %w", ErrClassificationUnavailable, err),
		}
	}

	if len(choices) == 0 {
		return inference{id: core.FallbackCategoryID, outcome: metrics.OutcomeFallbackUnparseable}
	}
	id, ok := ParseCategoryID(choices[0])
	if !ok {
		return inference{id: core.FallbackCategoryID, outcome: metrics.OutcomeFallbackUnparseable}
	}
	if !inCatalog(id, catalog) {
		return inference{id: core.FallbackCategoryID, outcome: metrics.OutcomeFallbackUnknownID}
	}
	return inference{id: id, outcome: metrics.OutcomeOK}
}

// cacheKey hashes the catalog together with the title, so any catalog change
// misses every earlier entry.
func cacheKey(catalog []core.Category, title string) string {
	h := sha256.New()
	var buf [8]byte
	for _, cat := range catalog {
		binary.BigEndian.PutUint64(buf[:], uint64(cat.ID))
		h.Write(buf[:])
		h.Write([]byte(cat.Grouping))
		h.Write([]byte{0})
		h.Write([]byte(cat.Name))
		h.Write([]byte{0})
	}
	h.Write([]byte{0xff})
	h.Write([]byte(title))
	return hex.EncodeToString(h.Sum(nil))
}
