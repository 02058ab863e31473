// Package catalog searches the exercise catalog.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/myrjola/vitalplan/internal/sqlite"
)

const defaultLimit = 10

// Exercise is a catalog entry.
type Exercise struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	BodyPart   string `json:"bodyPart"`
	Target     string `json:"target"`
	Muscle     string `json:"muscle"`
	Difficulty string `json:"difficulty"`
}

// Query filters the catalog. Empty fields match everything and a non-positive Limit means the default limit.
type Query struct {
	BodyPart   string
	Difficulty string
	// Name matches a case-insensitive substring of the exercise name.
	Name  string
	Limit int
}

// Catalog searches exercises stored in SQLite.
type Catalog struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func New(db *sqlite.Database, logger *slog.Logger) *Catalog {
	return &Catalog{db: db, logger: logger}
}

// Search returns the exercises matching q ordered by name. Unknown body parts yield an empty slice.
func (c *Catalog) Search(ctx context.Context, q Query) (_ []Exercise, err error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := c.db.ReadOnly.QueryContext(ctx, `
		SELECT id, name, body_part, target, muscle, difficulty
		FROM exercises
		WHERE (:body_part = '' OR body_part = :body_part COLLATE NOCASE)
		  AND (:difficulty = '' OR difficulty = :difficulty COLLATE NOCASE)
		  AND (:name = '' OR INSTR(LOWER(name), LOWER(:name)) > 0)
		ORDER BY name
		LIMIT :limit`,
		sql.Named("body_part", strings.TrimSpace(q.BodyPart)),
		sql.Named("difficulty", strings.TrimSpace(q.Difficulty)),
		sql.Named("name", strings.TrimSpace(q.Name)),
		sql.Named("limit", limit))
	if err != nil {
		return nil, fmt.Errorf("query exercises: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			c.logger.LogAttrs(ctx, slog.LevelError, "failed to close rows", slog.Any("error", closeErr))
		}
	}()

	exercises := []Exercise{}
	for rows.Next() {
		var e Exercise
		if err = rows.Scan(&e.ID, &e.Name, &e.BodyPart, &e.Target, &e.Muscle, &e.Difficulty); err != nil {
			return nil, fmt.Errorf("scan exercise: %w", err)
		}
		exercises = append(exercises, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return exercises, nil
}
