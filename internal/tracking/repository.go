package tracking

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/myrjola/vitalplan/internal/sqlite"
)

const timestampFormat = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

type sqliteRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func newSQLiteRepository(db *sqlite.Database, logger *slog.Logger) *sqliteRepository {
	return &sqliteRepository{db: db, logger: logger}
}

func (r *sqliteRepository) insert(ctx context.Context, query string, args ...any) (int, error) {
	var id int
	if err := r.db.ReadWrite.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert: %w", err)
	}
	r.logger.LogAttrs(ctx, slog.LevelDebug, "logged entry", slog.Int("id", id))
	return id, nil
}

func (r *sqliteRepository) counts(ctx context.Context, userID int) (Counts, error) {
	var c Counts
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM meal_logs WHERE user_id = :user_id),
		       (SELECT COUNT(*) FROM water_logs WHERE user_id = :user_id),
		       (SELECT COUNT(*) FROM sleep_logs WHERE user_id = :user_id),
		       (SELECT COUNT(*) FROM workout_logs WHERE user_id = :user_id)`,
		sql.Named("user_id", userID)).Scan(&c.Meals, &c.Water, &c.Sleep, &c.Workouts)
	if err != nil {
		return Counts{}, fmt.Errorf("query counts: %w", err)
	}
	return c, nil
}

type dailyTotals struct {
	calories, protein, carbs, fat float64
	waterMl, sleepHours           float64
	workouts, workoutMinutes      int
}

func (r *sqliteRepository) dailyTotals(ctx context.Context, userID int, start, end time.Time) (dailyTotals, error) {
	var t dailyTotals
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		WITH meals AS (SELECT COALESCE(SUM(calories), 0) AS calories,
		                      COALESCE(SUM(protein), 0)  AS protein,
		                      COALESCE(SUM(carbs), 0)    AS carbs,
		                      COALESCE(SUM(fat), 0)      AS fat
		               FROM meal_logs
		               WHERE user_id = :user_id AND logged_at >= :start AND logged_at < :end)
		SELECT meals.calories, meals.protein, meals.carbs, meals.fat,
		       (SELECT COALESCE(SUM(amount_ml), 0) FROM water_logs
		        WHERE user_id = :user_id AND logged_at >= :start AND logged_at < :end),
		       (SELECT COALESCE(SUM(hours), 0.0) FROM sleep_logs
		        WHERE user_id = :user_id AND logged_at >= :start AND logged_at < :end),
		       (SELECT COUNT(*) FROM workout_logs
		        WHERE user_id = :user_id AND logged_at >= :start AND logged_at < :end),
		       (SELECT COALESCE(SUM(duration_min), 0) FROM workout_logs
		        WHERE user_id = :user_id AND logged_at >= :start AND logged_at < :end)
		FROM meals`,
		sql.Named("user_id", userID), sql.Named("start", formatTime(start)), sql.Named("end", formatTime(end))).Scan(
		&t.calories, &t.protein, &t.carbs, &t.fat, &t.waterMl, &t.sleepHours, &t.workouts, &t.workoutMinutes)
	if err != nil {
		return dailyTotals{}, fmt.Errorf("query daily totals: %w", err)
	}
	return t, nil
}
