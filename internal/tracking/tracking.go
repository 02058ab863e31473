// Package tracking records what users actually ate, drank, slept and trained, and compares a day of it with the
// goals effective on that day.
package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/myrjola/vitalplan/internal/errors"
	"github.com/myrjola/vitalplan/internal/plan"
	"github.com/myrjola/vitalplan/internal/sqlite"
)

var ErrInvalidEntry = errors.NewSentinel("invalid log entry")

// MealType is the meal slot of a MealLog.
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

type MealLog struct {
	ID       int       `json:"id"`
	UserID   int       `json:"userId"`
	MealType MealType  `json:"mealType"`
	Calories int       `json:"calories"`
	Protein  int       `json:"protein"`
	Carbs    int       `json:"carbs"`
	Fat      int       `json:"fat"`
	LoggedAt time.Time `json:"loggedAt"`
}

type WaterLog struct {
	ID       int       `json:"id"`
	UserID   int       `json:"userId"`
	AmountMl int       `json:"amountMl"`
	LoggedAt time.Time `json:"loggedAt"`
}

type SleepLog struct {
	ID       int       `json:"id"`
	UserID   int       `json:"userId"`
	Hours    float64   `json:"hours"`
	LoggedAt time.Time `json:"loggedAt"`
}

type WorkoutLog struct {
	ID           int       `json:"id"`
	UserID       int       `json:"userId"`
	ExerciseName string    `json:"exerciseName"`
	DurationMin  int       `json:"durationMin"`
	LoggedAt     time.Time `json:"loggedAt"`
}

// Counts is the number of stored log entries per kind.
type Counts struct {
	Meals    int `json:"meals"`
	Water    int `json:"water"`
	Sleep    int `json:"sleep"`
	Workouts int `json:"workouts"`
}

// Total sums all kinds.
func (c Counts) Total() int {
	return c.Meals + c.Water + c.Sleep + c.Workouts
}

// Metric compares a consumed amount with its goal. Percent is capped at 1 and is 0 without a goal.
type Metric struct {
	Consumed float64 `json:"consumed"`
	Goal     float64 `json:"goal"`
	Percent  float64 `json:"percent"`
}

func newMetric(consumed, goal float64) Metric {
	m := Metric{Consumed: consumed, Goal: goal, Percent: 0}
	if goal > 0 {
		m.Percent = min(consumed/goal, 1)
	}
	return m
}

// Progress is one day of logs against the goals effective on that day.
type Progress struct {
	Date           time.Time `json:"date"`
	Calories       Metric    `json:"calories"`
	Protein        Metric    `json:"protein"`
	Carbs          Metric    `json:"carbs"`
	Fat            Metric    `json:"fat"`
	WaterMl        Metric    `json:"waterMl"`
	SleepHours     Metric    `json:"sleepHours"`
	Workouts       int       `json:"workouts"`
	WorkoutMinutes int       `json:"workoutMinutes"`
}

// GoalReader returns the goals effective on a date.
type GoalReader interface {
	GetGoals(ctx context.Context, userID int, date time.Time) (plan.Goals, error)
}

// Service stores log entries.
type Service struct {
	repo   *sqliteRepository
	goals  GoalReader
	logger *slog.Logger
	now    func() time.Time
}

func NewService(db *sqlite.Database, goals GoalReader, logger *slog.Logger) *Service {
	return &Service{
		repo:   newSQLiteRepository(db, logger),
		goals:  goals,
		logger: logger,
		now:    time.Now,
	}
}

// LogMeal stores entry. A zero LoggedAt means now.
func (s *Service) LogMeal(ctx context.Context, entry MealLog) (MealLog, error) {
	switch entry.MealType {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
	default:
		return MealLog{}, errors.Wrap(ErrInvalidEntry, "unknown meal type",
			slog.String("meal_type", string(entry.MealType)))
	}
	if entry.Calories < 0 || entry.Protein < 0 || entry.Carbs < 0 || entry.Fat < 0 {
		return MealLog{}, errors.Wrap(ErrInvalidEntry, "nutrients must not be negative")
	}
	entry.LoggedAt = s.stamp(entry.LoggedAt)
	id, err := s.repo.insert(ctx, `INSERT INTO meal_logs (user_id, meal_type, calories, protein, carbs, fat, logged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		entry.UserID, string(entry.MealType), entry.Calories, entry.Protein, entry.Carbs, entry.Fat,
		formatTime(entry.LoggedAt))
	if err != nil {
		return MealLog{}, fmt.Errorf("log meal: %w", err)
	}
	entry.ID = id
	return entry, nil
}

// LogWater stores entry. A zero LoggedAt means now.
func (s *Service) LogWater(ctx context.Context, entry WaterLog) (WaterLog, error) {
	if entry.AmountMl <= 0 {
		return WaterLog{}, errors.Wrap(ErrInvalidEntry, "amount must be positive", slog.Int("amount_ml", entry.AmountMl))
	}
	entry.LoggedAt = s.stamp(entry.LoggedAt)
	id, err := s.repo.insert(ctx, `INSERT INTO water_logs (user_id, amount_ml, logged_at) VALUES (?, ?, ?) RETURNING id`,
		entry.UserID, entry.AmountMl, formatTime(entry.LoggedAt))
	if err != nil {
		return WaterLog{}, fmt.Errorf("log water: %w", err)
	}
	entry.ID = id
	return entry, nil
}

// LogSleep stores entry. A zero LoggedAt means now.
func (s *Service) LogSleep(ctx context.Context, entry SleepLog) (SleepLog, error) {
	if entry.Hours <= 0 || entry.Hours > 24 { //nolint:mnd // hours in a day.
		return SleepLog{}, errors.Wrap(ErrInvalidEntry, "hours must be within a day", slog.Float64("hours", entry.Hours))
	}
	entry.LoggedAt = s.stamp(entry.LoggedAt)
	id, err := s.repo.insert(ctx, `INSERT INTO sleep_logs (user_id, hours, logged_at) VALUES (?, ?, ?) RETURNING id`,
		entry.UserID, entry.Hours, formatTime(entry.LoggedAt))
	if err != nil {
		return SleepLog{}, fmt.Errorf("log sleep: %w", err)
	}
	entry.ID = id
	return entry, nil
}

// LogWorkout stores entry. A zero LoggedAt means now.
func (s *Service) LogWorkout(ctx context.Context, entry WorkoutLog) (WorkoutLog, error) {
	if entry.ExerciseName == "" || entry.DurationMin <= 0 {
		return WorkoutLog{}, errors.Wrap(ErrInvalidEntry, "exercise name and duration are required")
	}
	entry.LoggedAt = s.stamp(entry.LoggedAt)
	id, err := s.repo.insert(ctx, `INSERT INTO workout_logs (user_id, exercise_name, duration_min, logged_at)
		VALUES (?, ?, ?, ?) RETURNING id`,
		entry.UserID, entry.ExerciseName, entry.DurationMin, formatTime(entry.LoggedAt))
	if err != nil {
		return WorkoutLog{}, fmt.Errorf("log workout: %w", err)
	}
	entry.ID = id
	return entry, nil
}

// CountEntries counts every stored log entry of the user.
func (s *Service) CountEntries(ctx context.Context, userID int) (Counts, error) {
	counts, err := s.repo.counts(ctx, userID)
	if err != nil {
		return Counts{}, fmt.Errorf("count entries: %w", err)
	}
	return counts, nil
}

// DailyProgress sums the logs of the UTC calendar day of date and compares them with the goals effective on it.
// Without goals every percentage is zero.
func (s *Service) DailyProgress(ctx context.Context, userID int, date time.Time) (Progress, error) {
	year, month, day := date.UTC().Date()
	start := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	totals, err := s.repo.dailyTotals(ctx, userID, start, end)
	if err != nil {
		return Progress{}, fmt.Errorf("daily totals: %w", err)
	}

	goals, err := s.goals.GetGoals(ctx, userID, start)
	if err != nil && !errors.Is(err, plan.ErrNotFound) {
		return Progress{}, fmt.Errorf("get goals: %w", err)
	}

	return Progress{
		Date:           start,
		Calories:       newMetric(totals.calories, float64(goals.Nutrition.CalorieGoal)),
		Protein:        newMetric(totals.protein, float64(goals.Nutrition.ProteinGoal)),
		Carbs:          newMetric(totals.carbs, float64(goals.Nutrition.CarbsGoal)),
		Fat:            newMetric(totals.fat, float64(goals.Nutrition.FatGoal)),
		WaterMl:        newMetric(totals.waterMl, float64(goals.Hydration.AmountMl)),
		SleepHours:     newMetric(totals.sleepHours, goals.Sleep.Hours),
		Workouts:       totals.workouts,
		WorkoutMinutes: totals.workoutMinutes,
	}, nil
}

func (s *Service) stamp(t time.Time) time.Time {
	if t.IsZero() {
		t = s.now()
	}
	return t.UTC().Truncate(time.Millisecond)
}
