// Package suggestion recommends the next training session. Suggestions come from an AI step, a deterministic rule
// engine or a static weekly rotation, in that order, and are always produced.
package suggestion

import (
	"context"
	"log/slog"
	"time"

	"github.com/myrjola/vitalplan/internal/catalog"
	"github.com/myrjola/vitalplan/internal/errors"
	"github.com/myrjola/vitalplan/internal/events"
	"github.com/myrjola/vitalplan/internal/metrics"
	"github.com/myrjola/vitalplan/internal/training"
)

// Status tells which step produced a suggestion.
type Status string

const (
	StatusValidated Status = "validated"
	StatusRuleBased Status = "rule-based"
	StatusFallback  Status = "fallback"
)

// Suggestion is a next-day training recommendation. An empty RecommendedFocus means rest.
type Suggestion struct {
	DayOfWeek          string             `json:"dayOfWeek"`
	RecommendedFocus   []training.Focus   `json:"recommendedFocus"`
	SuggestedExercises []catalog.Exercise `json:"suggestedExercises"`
	Reasoning          string             `json:"reasoning"`
	ValidationStatus   Status             `json:"validationStatus"`
	GeneratedAt        time.Time          `json:"generatedAt"`
}

// IsRest reports whether the suggestion recommends a rest day.
func (s Suggestion) IsRest() bool {
	return len(s.RecommendedFocus) == 0
}

// Analyzer analyses the stored week of a user. It must not fail.
type Analyzer interface {
	Analyze(ctx context.Context, userID int) training.Analysis
}

// WeekStore reads and extends weekly plans.
type WeekStore interface {
	WeeklyPlan(ctx context.Context, userID int) (training.Week, error)
	AddExercise(ctx context.Context, userID int, day time.Weekday, exercise training.PlannedExercise) error
}

// Searcher searches the exercise catalog.
type Searcher interface {
	Search(ctx context.Context, q catalog.Query) ([]catalog.Exercise, error)
}

// Credentials returns the per-user AI credential, or an empty string.
type Credentials interface {
	AICredential(ctx context.Context, userID int) (string, error)
}

// Config tunes the pipeline. Zero durations get defaults.
type Config struct {
	// AppAPIKey is used for users without their own credential.
	AppAPIKey      string
	AITimeout      time.Duration
	CatalogTimeout time.Duration
	CacheTTL       time.Duration
}

const (
	defaultAITimeout      = 8 * time.Second
	defaultCatalogTimeout = 4 * time.Second
	defaultCacheTTL       = 12 * time.Hour
)

// Pipeline produces and applies suggestions.
type Pipeline struct {
	analyzer    Analyzer
	weeks       WeekStore
	searcher    Searcher
	credentials Credentials
	provider    Provider
	cache       Cache
	publisher   events.Publisher
	cfg         Config
	logger      *slog.Logger
	now         func() time.Time
}

// Deps are the collaborators of a Pipeline. Cache and Publisher may be nil.
type Deps struct {
	Analyzer    Analyzer
	Weeks       WeekStore
	Searcher    Searcher
	Credentials Credentials
	Provider    Provider
	Cache       Cache
	Publisher   events.Publisher
}

func New(deps Deps, cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.AITimeout <= 0 {
		cfg.AITimeout = defaultAITimeout
	}
	if cfg.CatalogTimeout <= 0 {
		cfg.CatalogTimeout = defaultCatalogTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NoopPublisher{}
	}
	return &Pipeline{
		analyzer:    deps.Analyzer,
		weeks:       deps.Weeks,
		searcher:    deps.Searcher,
		credentials: deps.Credentials,
		provider:    deps.Provider,
		cache:       deps.Cache,
		publisher:   deps.Publisher,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Suggest returns the suggestion for tomorrow. A cached suggestion generated from the same week analysis is
// returned unless refresh is set. External failures only move generation to the next step, so Suggest never fails.
func (p *Pipeline) Suggest(ctx context.Context, userID int, refresh bool) Suggestion {
	analysis := p.analyzer.Analyze(ctx, userID)
	key := cacheKey(userID, analysis.Tomorrow)

	if !refresh {
		if cached, ok := p.readCache(ctx, key, analysis); ok {
			return cached
		}
	}

	s := p.generate(ctx, userID, analysis)
	metrics.RecordSuggestion(string(s.ValidationStatus))
	p.writeCache(ctx, key, analysis, s)
	return s
}

func (p *Pipeline) generate(ctx context.Context, userID int, analysis training.Analysis) (s Suggestion) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.LogAttrs(ctx, slog.LevelError, "recovered from panic while generating suggestion",
				slog.Int("user_id", userID), errors.SlogError(errors.DecoratePanic(r)))
			s = emergency(analysis.Tomorrow, p.now())
		}
	}()

	steps := []step[Suggestion]{
		{name: "ai", run: func(ctx context.Context) (Suggestion, error) { return p.fromAI(ctx, userID, analysis) }},
		{name: "rules", run: func(ctx context.Context) (Suggestion, error) { return p.fromRules(ctx, analysis) }},
	}
	result, ok := firstSuccessful(ctx, steps, func(name string, err error) {
		metrics.RecordTierFailure(name)
		level := slog.LevelWarn
		if errors.Is(err, errSkipped) {
			level = slog.LevelDebug
		}
		p.logger.LogAttrs(ctx, level, "suggestion step failed",
			slog.String("step", name), slog.Int("user_id", userID), errors.SlogError(err))
	})
	if !ok {
		return emergency(analysis.Tomorrow, p.now())
	}
	return result
}

func restSuggestion(tomorrow time.Weekday, reasoning string, status Status, now time.Time) Suggestion {
	return Suggestion{
		DayOfWeek:          tomorrow.String(),
		RecommendedFocus:   []training.Focus{},
		SuggestedExercises: []catalog.Exercise{},
		Reasoning:          reasoning,
		ValidationStatus:   status,
		GeneratedAt:        now,
	}
}
