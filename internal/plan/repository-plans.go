package plan

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/myrjola/vitalplan/internal/sqlite"
)

type sqlitePlanRepository struct {
	db *sqlite.Database
}

func newSQLitePlanRepository(db *sqlite.Database) *sqlitePlanRepository {
	return &sqlitePlanRepository{db: db}
}

// replace removes every plan of the user and inserts p in one transaction. The IDs are collected first so that the
// delete only touches rows seen by this transaction.
func (r *sqlitePlanRepository) replace(ctx context.Context, p HealthPlan) (int, error) {
	nutrition, err := json.Marshal(p.NutritionGoals)
	if err != nil {
		return 0, fmt.Errorf("marshal nutrition goals: %w", err)
	}
	focus, err := json.Marshal(p.WorkoutPlan.RecommendedFocus)
	if err != nil {
		return 0, fmt.Errorf("marshal recommended focus: %w", err)
	}

	var removed int
	err = r.db.WithTx(ctx, func(tx *sql.Tx) error {
		ids, txErr := collectPlanIDs(ctx, tx, p.UserID)
		if txErr != nil {
			return txErr
		}
		if len(ids) > 0 {
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
			args := make([]any, len(ids))
			for i, id := range ids {
				args[i] = id
			}
			query := fmt.Sprintf("DELETE FROM health_plans WHERE id IN (%s)", placeholders) //nolint:gosec // only placeholders.
			if _, txErr = tx.ExecContext(ctx, query, args...); txErr != nil {
				return fmt.Errorf("delete plans: %w", txErr)
			}
		}
		removed = len(ids)

		if _, txErr = tx.ExecContext(ctx, `
			INSERT INTO health_plans (id, user_id, health_goal, nutrition_goals, workouts_per_week, recommended_focus,
			                          hydration_goal_ml, sleep_goal_hours, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID.String(), p.UserID, p.HealthGoal, string(nutrition), p.WorkoutPlan.WorkoutsPerWeek, string(focus),
			p.HydrationGoalMl, p.SleepGoalHours,
			p.CreatedAt.UTC().Format(timestampFormat), p.UpdatedAt.UTC().Format(timestampFormat)); txErr != nil {
			return fmt.Errorf("insert plan: %w", txErr)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("replace plan: %w", err)
	}
	return removed, nil
}

func collectPlanIDs(ctx context.Context, tx *sql.Tx, userID int) (_ []string, err error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM health_plans WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("query plan ids: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close rows: %w", closeErr)
		}
	}()
	var ids []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan plan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return ids, nil
}

// latest returns the most recently created plan. Ties on created_at go to the last inserted row.
func (r *sqlitePlanRepository) latest(ctx context.Context, userID int) (HealthPlan, error) {
	var (
		p                    HealthPlan
		id                   string
		nutrition, focus     string
		createdAt, updatedAt string
	)
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT id, user_id, health_goal, nutrition_goals, workouts_per_week, recommended_focus, hydration_goal_ml,
		       sleep_goal_hours, created_at, updated_at
		FROM health_plans
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`, userID).Scan(&id, &p.UserID, &p.HealthGoal, &nutrition, &p.WorkoutPlan.WorkoutsPerWeek, &focus,
		&p.HydrationGoalMl, &p.SleepGoalHours, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return HealthPlan{}, ErrNotFound
	}
	if err != nil {
		return HealthPlan{}, fmt.Errorf("query plan: %w", err)
	}
	if p.ID, err = uuid.Parse(id); err != nil {
		return HealthPlan{}, fmt.Errorf("parse plan id: %w", err)
	}
	if err = json.Unmarshal([]byte(nutrition), &p.NutritionGoals); err != nil {
		return HealthPlan{}, fmt.Errorf("unmarshal nutrition goals: %w", err)
	}
	if err = json.Unmarshal([]byte(focus), &p.WorkoutPlan.RecommendedFocus); err != nil {
		return HealthPlan{}, fmt.Errorf("unmarshal recommended focus: %w", err)
	}
	if p.CreatedAt, err = time.Parse(timestampFormat, createdAt); err != nil {
		return HealthPlan{}, fmt.Errorf("parse created_at: %w", err)
	}
	if p.UpdatedAt, err = time.Parse(timestampFormat, updatedAt); err != nil {
		return HealthPlan{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return p, nil
}

func (r *sqlitePlanRepository) count(ctx context.Context, userID int) (int, error) {
	var n int
	if err := r.db.ReadOnly.QueryRowContext(ctx, `SELECT COUNT(*) FROM health_plans WHERE user_id = ?`,
		userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count plans: %w", err)
	}
	return n, nil
}
