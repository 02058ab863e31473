package suggestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/myrjola/vitalplan/internal/errors"
	"github.com/myrjola/vitalplan/internal/training"
)

const maxRuleFocus = 2

// decide applies the rule engine to a weekly analysis. An empty focus means rest.
func decide(a training.Analysis) ([]training.Focus, string) {
	switch {
	case a.TomorrowExerciseCount >= restTomorrowThreshold:
		return []training.Focus{}, fmt.Sprintf(
			"%s already has %d exercises planned. Rest and recover instead of adding more.",
			a.Tomorrow, a.TomorrowExerciseCount)
	case a.TomorrowHasExercises:
		return []training.Focus{training.FocusWaist},
			"Tomorrow already has a light plan, so add some core work to round it off."
	case a.TotalWorkouts >= restWorkoutsThreshold:
		return []training.Focus{}, fmt.Sprintf(
			"You have completed %d workouts this week. Take a rest day to recover.", a.TotalWorkouts)
	case a.TotalWorkouts <= 1:
		return []training.Focus{training.FocusChest, training.FocusBack},
			"Few workouts so far this week. Start with a compound upper body session."
	}

	untrained := a.UntrainedGroups()
	if len(untrained) == 0 {
		return []training.Focus{training.FocusCardio, training.FocusWaist},
			"Every muscle group has been trained this week. Finish with cardio and core."
	}
	focus := untrained[:min(len(untrained), maxRuleFocus)]
	return focus, fmt.Sprintf("These muscle groups have not been trained this week: %s.", joinFocus(focus))
}

// fromRules builds a rule-based suggestion. A training day without catalog exercises is a failure.
func (p *Pipeline) fromRules(ctx context.Context, analysis training.Analysis) (Suggestion, error) {
	focus, reasoning := decide(analysis)
	if len(focus) == 0 {
		return restSuggestion(analysis.Tomorrow, reasoning, StatusRuleBased, p.now()), nil
	}
	exercises := p.enrich(ctx, focus)
	if len(exercises) == 0 {
		return Suggestion{}, errors.Wrap(errNoExercises, "validate rule focus", slog.Any("focus", focus))
	}
	return Suggestion{
		DayOfWeek:          analysis.Tomorrow.String(),
		RecommendedFocus:   focus,
		SuggestedExercises: exercises,
		Reasoning:          reasoning,
		ValidationStatus:   StatusRuleBased,
		GeneratedAt:        p.now(),
	}, nil
}

func joinFocus(focus []training.Focus) string {
	names := make([]string, 0, len(focus))
	for _, f := range focus {
		names = append(names, string(f))
	}
	return orNone(names)
}
