package suggestion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/myrjola/vitalplan/internal/errors"
	"github.com/myrjola/vitalplan/internal/events"
	"github.com/myrjola/vitalplan/internal/training"
)

const (
	defaultSets        = 3
	defaultReps        = 12
	defaultRestSeconds = 60
)

// ApplyResult summarises an Apply call.
type ApplyResult struct {
	Added      int `json:"added"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
}

// Apply adds the suggested exercises to the suggestion's day. Exercises whose name already appears on that day
// are skipped as duplicates. Failing additions are counted and do not stop the rest.
func (p *Pipeline) Apply(ctx context.Context, userID int, s Suggestion) (ApplyResult, error) {
	day, err := training.ParseWeekday(s.DayOfWeek)
	if err != nil {
		return ApplyResult{}, err
	}
	week, err := p.weeks.WeeklyPlan(ctx, userID)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("read weekly plan: %w", err)
	}

	existing := make(map[string]bool)
	for _, e := range week[day].Exercises {
		existing[strings.ToLower(e.Name)] = true
	}

	var result ApplyResult
	for _, e := range s.SuggestedExercises {
		name := strings.ToLower(e.Name)
		if existing[name] {
			result.Duplicates++
			continue
		}
		if err = p.weeks.AddExercise(ctx, userID, day, training.PlannedExercise{
			ExerciseID:  e.ID,
			Name:        e.Name,
			BodyPart:    e.BodyPart,
			Target:      e.Target,
			Sets:        defaultSets,
			Reps:        defaultReps,
			RestSeconds: defaultRestSeconds,
			Completed:   false,
		}); err != nil {
			result.Failed++
			p.logger.LogAttrs(ctx, slog.LevelWarn, "failed to add suggested exercise",
				slog.Int("user_id", userID), slog.String("exercise", e.Name), errors.SlogError(err))
			continue
		}
		existing[name] = true
		result.Added++
	}

	if result.Added > 0 {
		p.invalidateCache(ctx, cacheKey(userID, day))
	}
	if err = p.publisher.Publish(ctx, events.New(events.TypeSuggestionApplied, userID, p.now(), result)); err != nil {
		p.logger.LogAttrs(ctx, slog.LevelWarn, "failed to publish event",
			slog.String("event_type", events.TypeSuggestionApplied), errors.SlogError(err))
	}
	p.logger.LogAttrs(ctx, slog.LevelInfo, "applied suggestion",
		slog.Int("user_id", userID), slog.String("day", day.String()),
		slog.Int("added", result.Added), slog.Int("duplicates", result.Duplicates), slog.Int("failed", result.Failed))
	return result, nil
}
