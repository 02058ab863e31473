package plan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/myrjola/vitalplan/internal/health"
	"github.com/myrjola/vitalplan/internal/sqlite"
)

const timestampFormat = "2006-01-02T15:04:05.000Z"

type sqliteProfileRepository struct {
	db *sqlite.Database
}

func newSQLiteProfileRepository(db *sqlite.Database) *sqliteProfileRepository {
	return &sqliteProfileRepository{db: db}
}

func (r *sqliteProfileRepository) create(ctx context.Context, p Profile) (int, error) {
	var id int
	err := r.db.ReadWrite.QueryRowContext(ctx, `
		INSERT INTO users (name, weight_kg, height_cm, age_years, sex, activity_level, health_goal, ai_api_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		p.Name, p.WeightKg, p.HeightCm, p.AgeYears, string(p.Sex), string(p.ActivityLevel), p.HealthGoal,
		p.AIAPIKey).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

func (r *sqliteProfileRepository) get(ctx context.Context, userID int) (Profile, error) {
	var (
		p         Profile
		sex       string
		level     string
		createdAt string
	)
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT id, name, weight_kg, height_cm, age_years, sex, activity_level, health_goal, ai_api_key, created_at
		FROM users
		WHERE id = ?`, userID).Scan(
		&p.ID, &p.Name, &p.WeightKg, &p.HeightCm, &p.AgeYears, &sex, &level, &p.HealthGoal, &p.AIAPIKey, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("query user: %w", err)
	}
	p.Sex = health.Sex(sex)
	p.ActivityLevel = health.ActivityLevel(level)
	if p.CreatedAt, err = time.Parse(timestampFormat, createdAt); err != nil {
		return Profile{}, fmt.Errorf("parse created_at: %w", err)
	}
	return p, nil
}

func (r *sqliteProfileRepository) updateHealthGoal(ctx context.Context, userID int, goal string) error {
	result, err := r.db.ReadWrite.ExecContext(ctx, `UPDATE users SET health_goal = ? WHERE id = ?`, goal, userID)
	if err != nil {
		return fmt.Errorf("update health goal: %w", err)
	}
	if affected, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if affected == 0 {
		return ErrNotFound
	}
	return nil
}
