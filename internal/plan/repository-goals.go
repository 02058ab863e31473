package plan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/myrjola/vitalplan/internal/health"
	"github.com/myrjola/vitalplan/internal/sqlite"
)

// GoalStore keeps one value per user and day. GetGoals returns the latest value on or before date.
type GoalStore[T any] interface {
	SetGoals(ctx context.Context, userID int, value T) error
	GetGoals(ctx context.Context, userID int, date time.Time) (T, error)
}

// goalSchema maps a goal type onto its table. fields returns pointers to the value columns in column order and
// key the user id and date pointers.
type goalSchema[T any] struct {
	table   string
	columns []string
	key     func(*T) (*int, *time.Time)
	fields  func(*T) []any
}

// sqliteGoalStore overwrites the row of the same day and keeps the rows of other days as history.
type sqliteGoalStore[T any] struct {
	db     *sqlite.Database
	schema goalSchema[T]
}

func newSQLiteGoalStore[T any](db *sqlite.Database, schema goalSchema[T]) *sqliteGoalStore[T] {
	return &sqliteGoalStore[T]{db: db, schema: schema}
}

func (s *sqliteGoalStore[T]) SetGoals(ctx context.Context, userID int, value T) error {
	_, date := s.schema.key(&value)
	updates := make([]string, len(s.schema.columns))
	for i, column := range s.schema.columns {
		updates[i] = fmt.Sprintf("%s = excluded.%s", column, column)
	}
	query := fmt.Sprintf(`INSERT INTO %s (user_id, goal_date, %s) VALUES (?, ?%s)
		ON CONFLICT (user_id, goal_date) DO UPDATE SET %s`,
		s.schema.table,
		strings.Join(s.schema.columns, ", "),
		strings.Repeat(", ?", len(s.schema.columns)),
		strings.Join(updates, ", "))
	args := append([]any{userID, date.Format(time.DateOnly)}, s.schema.fields(&value)...)
	if _, err := s.db.ReadWrite.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert %s: %w", s.schema.table, err)
	}
	return nil
}

func (s *sqliteGoalStore[T]) GetGoals(ctx context.Context, userID int, date time.Time) (T, error) {
	var (
		value T
		day   string
	)
	query := fmt.Sprintf(`SELECT goal_date, %s FROM %s
		WHERE user_id = ? AND goal_date <= ?
		ORDER BY goal_date DESC
		LIMIT 1`, strings.Join(s.schema.columns, ", "), s.schema.table)
	dest := append([]any{&day}, s.schema.fields(&value)...)
	err := s.db.ReadOnly.QueryRowContext(ctx, query, userID, date.Format(time.DateOnly)).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return value, ErrNotFound
	}
	if err != nil {
		return value, fmt.Errorf("query %s: %w", s.schema.table, err)
	}
	id, goalDate := s.schema.key(&value)
	*id = userID
	if *goalDate, err = time.Parse(time.DateOnly, day); err != nil {
		return value, fmt.Errorf("parse goal date: %w", err)
	}
	return value, nil
}

func newNutritionStore(db *sqlite.Database) *sqliteGoalStore[health.NutritionGoals] {
	return newSQLiteGoalStore(db, goalSchema[health.NutritionGoals]{
		table: "nutrition_goals",
		columns: []string{"calorie_goal", "protein_goal", "carbs_goal", "fat_goal",
			"breakfast_meals", "lunch_meals", "dinner_meals", "snack_meals"},
		key: func(g *health.NutritionGoals) (*int, *time.Time) { return &g.UserID, &g.Date },
		fields: func(g *health.NutritionGoals) []any {
			return []any{&g.CalorieGoal, &g.ProteinGoal, &g.CarbsGoal, &g.FatGoal,
				&g.TargetMeals.Breakfast, &g.TargetMeals.Lunch, &g.TargetMeals.Dinner, &g.TargetMeals.Snacks}
		},
	})
}

func newHydrationStore(db *sqlite.Database) *sqliteGoalStore[HydrationGoal] {
	return newSQLiteGoalStore(db, goalSchema[HydrationGoal]{
		table:   "hydration_goals",
		columns: []string{"amount_ml"},
		key:     func(g *HydrationGoal) (*int, *time.Time) { return &g.UserID, &g.Date },
		fields:  func(g *HydrationGoal) []any { return []any{&g.AmountMl} },
	})
}

func newSleepStore(db *sqlite.Database) *sqliteGoalStore[SleepGoal] {
	return newSQLiteGoalStore(db, goalSchema[SleepGoal]{
		table:   "sleep_goals",
		columns: []string{"hours"},
		key:     func(g *SleepGoal) (*int, *time.Time) { return &g.UserID, &g.Date },
		fields:  func(g *SleepGoal) []any { return []any{&g.Hours} },
	})
}
