package suggestion

import (
	"fmt"
	"time"

	"github.com/myrjola/vitalplan/internal/catalog"
	"github.com/myrjola/vitalplan/internal/training"
)

// rotation is the static weekly focus pattern. Sunday is a rest day.
//
//nolint:gochecknoglobals // read-only lookup table.
var rotation = map[time.Weekday][]training.Focus{
	time.Monday:    {training.FocusChest, training.FocusUpperArms},
	time.Tuesday:   {training.FocusBack, training.FocusWaist},
	time.Wednesday: {training.FocusLowerLegs, training.FocusCardio},
	time.Thursday:  {training.FocusChest, training.FocusBack},
	time.Friday:    {training.FocusUpperArms, training.FocusWaist},
	time.Saturday:  {training.FocusLowerLegs, training.FocusCardio},
}

// emergency returns the rotation entry for tomorrow without looking up exercises.
func emergency(tomorrow time.Weekday, now time.Time) Suggestion {
	focus, ok := rotation[tomorrow]
	if !ok {
		return restSuggestion(tomorrow, "Sunday is a rest day in the default weekly rotation.", StatusFallback, now)
	}
	return Suggestion{
		DayOfWeek:          tomorrow.String(),
		RecommendedFocus:   append([]training.Focus{}, focus...),
		SuggestedExercises: []catalog.Exercise{},
		Reasoning:          fmt.Sprintf("Following the default weekly rotation: %s.", joinFocus(focus)),
		ValidationStatus:   StatusFallback,
		GeneratedAt:        now,
	}
}
