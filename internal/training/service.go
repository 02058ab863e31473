package training

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/myrjola/vitalplan/internal/errors"
	"github.com/myrjola/vitalplan/internal/sqlite"
)

var (
	ErrNotFound       = errors.NewSentinel("planned exercise not found")
	ErrInvalidWeekday = errors.NewSentinel("invalid weekday")
	ErrInvalidVolume  = errors.NewSentinel("sets and reps must be positive")
)

// Service manages weekly workout plans.
type Service struct {
	repo   *sqliteRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new training service.
func NewService(db *sqlite.Database, logger *slog.Logger) *Service {
	return &Service{
		repo:   newSQLiteRepository(db, logger),
		logger: logger,
		now:    time.Now,
	}
}

// WeeklyPlan returns the weekly plan of the user. Days without exercises are missing from the map.
func (s *Service) WeeklyPlan(ctx context.Context, userID int) (Week, error) {
	week, err := s.repo.weeklyPlan(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("weekly plan: %w", err)
	}
	return week, nil
}

// AddExercise appends exercise to the plan of day.
func (s *Service) AddExercise(ctx context.Context, userID int, day time.Weekday, exercise PlannedExercise) error {
	if exercise.Sets <= 0 || exercise.Reps <= 0 {
		return errors.Wrap(ErrInvalidVolume, "add exercise",
			slog.Int("sets", exercise.Sets), slog.Int("reps", exercise.Reps))
	}
	if err := s.repo.addExercise(ctx, userID, day, exercise); err != nil {
		return fmt.Errorf("add exercise: %w", err)
	}
	return nil
}

// SetCompleted marks the exercises with exerciseID on day as completed or not.
func (s *Service) SetCompleted(
	ctx context.Context,
	userID int,
	day time.Weekday,
	exerciseID string,
	completed bool,
) error {
	if err := s.repo.setCompleted(ctx, userID, day, exerciseID, completed); err != nil {
		return fmt.Errorf("set completed: %w", err)
	}
	return nil
}

// Analyze analyses the stored week of the user. A plan that cannot be read is logged and analysed as an empty
// week so that suggestions stay available.
func (s *Service) Analyze(ctx context.Context, userID int) Analysis {
	today := s.now()
	week, err := s.repo.weeklyPlan(ctx, userID)
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "analysing empty week because the weekly plan is unreadable",
			errors.SlogError(err))
		return EmptyAnalysis(today)
	}
	return Analyze(week, today)
}

// ParseWeekday parses English weekday names case-insensitively.
func ParseWeekday(s string) (time.Weekday, error) {
	for _, day := range MondayFirst() {
		if strings.EqualFold(day.String(), strings.TrimSpace(s)) {
			return day, nil
		}
	}
	return 0, errors.Wrap(ErrInvalidWeekday, "parse weekday", slog.String("weekday", s))
}
