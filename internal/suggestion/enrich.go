package suggestion

import (
	"context"
	"log/slog"
	"strings"

	"github.com/myrjola/vitalplan/internal/catalog"
	"github.com/myrjola/vitalplan/internal/errors"
	"github.com/myrjola/vitalplan/internal/training"
	"golang.org/x/sync/errgroup"
)

const (
	exercisesPerFocus = 3
	maxExercises      = 8
)

// bodyPart maps a focus area to the catalog body part.
func bodyPart(f training.Focus) string {
	return strings.ReplaceAll(string(f), "-", " ")
}

// enrich looks up exercises for every focus area concurrently under the catalog timeout. Lookups that fail or
// panic are logged and contribute nothing. The result keeps focus order, is deduplicated by ID and holds at most
// maxExercises entries.
func (p *Pipeline) enrich(ctx context.Context, focus []training.Focus) []catalog.Exercise {
	if len(focus) == 0 || p.searcher == nil {
		return []catalog.Exercise{}
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.CatalogTimeout)
	defer cancel()

	results := make([][]catalog.Exercise, len(focus))
	failures := make([]error, len(focus))
	var g errgroup.Group
	for i, f := range focus {
		g.Go(func() (err error) {
			// Searches run outside the caller's goroutine, so its recover cannot see their panics.
			defer func() {
				if r := recover(); r != nil {
					err = errors.DecoratePanic(r)
				}
				if err != nil {
					failures[i] = errors.Wrap(err, "search catalog", slog.String("focus", string(f)))
				}
			}()
			var exercises []catalog.Exercise
			if exercises, err = p.searcher.Search(ctx, catalog.Query{
				BodyPart: bodyPart(f), Limit: exercisesPerFocus,
			}); err != nil {
				return err
			}
			results[i] = exercises
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.logger.LogAttrs(ctx, slog.LevelWarn, "catalog search failed, continuing with partial results",
			errors.SlogError(errors.Join(failures...)))
	}

	merged := make([]catalog.Exercise, 0, maxExercises)
	seen := make(map[string]bool)
	for _, exercises := range results {
		for _, e := range exercises {
			if len(merged) == maxExercises {
				return merged
			}
			if seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			merged = append(merged, e)
		}
	}
	return merged
}
