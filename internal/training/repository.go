package training

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/myrjola/vitalplan/internal/sqlite"
)

// sqliteRepository stores weekly plans in the weekly_plan_exercises table.
type sqliteRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func newSQLiteRepository(db *sqlite.Database, logger *slog.Logger) *sqliteRepository {
	return &sqliteRepository{db: db, logger: logger}
}

func (r *sqliteRepository) weeklyPlan(ctx context.Context, userID int) (_ Week, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT day_of_week, exercise_id, name, body_part, target, sets, reps, rest_seconds, completed
		FROM weekly_plan_exercises
		WHERE user_id = ?
		ORDER BY day_of_week, position`, userID)
	if err != nil {
		return nil, fmt.Errorf("query weekly plan: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			r.logger.LogAttrs(ctx, slog.LevelError, "failed to close rows", slog.Any("error", closeErr))
		}
	}()

	week := make(Week)
	for rows.Next() {
		var (
			day      time.Weekday
			exercise PlannedExercise
		)
		if err = rows.Scan(&day, &exercise.ExerciseID, &exercise.Name, &exercise.BodyPart, &exercise.Target,
			&exercise.Sets, &exercise.Reps, &exercise.RestSeconds, &exercise.Completed); err != nil {
			return nil, fmt.Errorf("scan planned exercise: %w", err)
		}
		plan := week[day]
		plan.Day = day
		plan.Exercises = append(plan.Exercises, exercise)
		week[day] = plan
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return week, nil
}

func (r *sqliteRepository) addExercise(
	ctx context.Context,
	userID int,
	day time.Weekday,
	exercise PlannedExercise,
) error {
	_, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO weekly_plan_exercises (user_id, day_of_week, position, exercise_id, name, body_part, target,
		                                   sets, reps, rest_seconds, completed)
		VALUES (:user_id, :day, (SELECT COALESCE(MAX(position) + 1, 0)
		                         FROM weekly_plan_exercises
		                         WHERE user_id = :user_id AND day_of_week = :day),
		        :exercise_id, :name, :body_part, :target, :sets, :reps, :rest_seconds, :completed)`,
		sql.Named("user_id", userID),
		sql.Named("day", int(day)),
		sql.Named("exercise_id", exercise.ExerciseID),
		sql.Named("name", exercise.Name),
		sql.Named("body_part", exercise.BodyPart),
		sql.Named("target", exercise.Target),
		sql.Named("sets", exercise.Sets),
		sql.Named("reps", exercise.Reps),
		sql.Named("rest_seconds", exercise.RestSeconds),
		sql.Named("completed", exercise.Completed))
	if err != nil {
		return fmt.Errorf("insert planned exercise: %w", err)
	}
	return nil
}

func (r *sqliteRepository) setCompleted(
	ctx context.Context,
	userID int,
	day time.Weekday,
	exerciseID string,
	completed bool,
) error {
	result, err := r.db.ReadWrite.ExecContext(ctx, `
		UPDATE weekly_plan_exercises
		SET completed = ?
		WHERE user_id = ? AND day_of_week = ? AND exercise_id = ?`, completed, userID, int(day), exerciseID)
	if err != nil {
		return fmt.Errorf("update completed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
