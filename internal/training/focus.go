package training

import "strings"

// Focus is a training focus area. The six values below are the only ones a suggestion may carry.
type Focus string

const (
	FocusChest     Focus = "chest"
	FocusBack      Focus = "back"
	FocusUpperArms Focus = "upper-arms"
	FocusLowerLegs Focus = "lower-legs"
	FocusWaist     Focus = "waist"
	FocusCardio    Focus = "cardio"
)

// Focuses returns the focus whitelist.
func Focuses() []Focus {
	return []Focus{FocusChest, FocusBack, FocusUpperArms, FocusLowerLegs, FocusWaist, FocusCardio}
}

// TrackedGroups returns the muscle groups the weekly analysis tracks, in recommendation order.
func TrackedGroups() []Focus {
	return []Focus{FocusChest, FocusBack, FocusUpperArms, FocusLowerLegs, FocusWaist}
}

// ParseFocus normalises s and reports whether it is on the whitelist. "Upper Arms" and "upper_arms" both parse to
// FocusUpperArms.
func ParseFocus(s string) (Focus, bool) {
	normalised := strings.ToLower(strings.TrimSpace(s))
	normalised = strings.NewReplacer(" ", "-", "_", "-").Replace(normalised)
	for _, f := range Focuses() {
		if string(f) == normalised {
			return f, true
		}
	}
	return "", false
}

// muscleKeywords is checked in order and the first group with a matching keyword wins. Core keywords go first so
// that "leg raise" counts as waist and not lower legs.
//
//nolint:gochecknoglobals // read-only lookup table.
var muscleKeywords = []struct {
	group    Focus
	keywords []string
}{
	{FocusWaist, []string{"crunch", "plank", "sit-up", "situp", "leg raise", "twist", "oblique", "abs", "core"}},
	{FocusLowerLegs, []string{"squat", "lunge", "calf", "leg", "glute", "hamstring", "step-up", "quad"}},
	{FocusUpperArms, []string{"curl", "bicep", "tricep", "skull", "hammer", "arm"}},
	{FocusChest, []string{"bench", "incline", "chest", "push-up", "pushup", "fly", "pec", "dip"}},
	{FocusBack, []string{"row", "pull-up", "pullup", "chin-up", "pulldown", "deadlift", "back"}},
}

// MuscleGroup maps an exercise name to the tracked muscle group it trains.
func MuscleGroup(exerciseName string) (Focus, bool) {
	name := strings.ToLower(exerciseName)
	for _, entry := range muscleKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(name, keyword) {
				return entry.group, true
			}
		}
	}
	return "", false
}
