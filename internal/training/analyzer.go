// Package training stores the weekly workout plan and reduces it into the analysis used for next-day suggestions.
package training

import (
	"slices"
	"time"
)

// PlannedExercise is an exercise scheduled on a weekday.
type PlannedExercise struct {
	ExerciseID  string `json:"exerciseId"`
	Name        string `json:"name"`
	BodyPart    string `json:"bodyPart"`
	Target      string `json:"target"`
	Sets        int    `json:"sets"`
	Reps        int    `json:"reps"`
	RestSeconds int    `json:"restSeconds"`
	Completed   bool   `json:"completed"`
}

// DayPlan is the ordered list of exercises planned for one weekday.
type DayPlan struct {
	Day       time.Weekday      `json:"-"`
	Exercises []PlannedExercise `json:"exercises"`
}

// Week maps weekdays to their plans. Days without exercises may be missing.
type Week map[time.Weekday]DayPlan

// Analysis summarises the training done this week relative to tomorrow.
type Analysis struct {
	// CompletedDays holds the days other than tomorrow with at least one completed exercise, Monday first.
	CompletedDays []time.Weekday
	// TrainedMuscleGroups is deduplicated and ordered like TrackedGroups.
	TrainedMuscleGroups   []Focus
	TotalWorkouts         int
	TomorrowHasExercises  bool
	TomorrowExerciseCount int
	Tomorrow              time.Weekday
}

// EmptyAnalysis is the analysis of a week without any training.
func EmptyAnalysis(today time.Time) Analysis {
	return Analysis{
		CompletedDays:         []time.Weekday{},
		TrainedMuscleGroups:   []Focus{},
		TotalWorkouts:         0,
		TomorrowHasExercises:  false,
		TomorrowExerciseCount: 0,
		Tomorrow:              Tomorrow(today),
	}
}

// Tomorrow returns the weekday after today.
func Tomorrow(today time.Time) time.Weekday {
	return (today.Weekday() + 1) % 7 //nolint:mnd // days in a week.
}

// MondayFirst lists the weekdays starting from Monday.
func MondayFirst() []time.Weekday {
	return []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
	}
}

// Analyze reduces week into an Analysis. Only exercises marked completed count as training; tomorrow only
// contributes its planned exercise count.
func Analyze(week Week, today time.Time) Analysis {
	analysis := EmptyAnalysis(today)
	tomorrow := analysis.Tomorrow

	analysis.TomorrowExerciseCount = len(week[tomorrow].Exercises)
	analysis.TomorrowHasExercises = analysis.TomorrowExerciseCount > 0

	trained := make(map[Focus]bool)
	for _, day := range MondayFirst() {
		if day == tomorrow {
			continue
		}
		completedAny := false
		for _, exercise := range week[day].Exercises {
			if !exercise.Completed {
				continue
			}
			completedAny = true
			if group, ok := MuscleGroup(exercise.Name); ok {
				trained[group] = true
			}
		}
		if completedAny {
			analysis.CompletedDays = append(analysis.CompletedDays, day)
		}
	}
	analysis.TotalWorkouts = len(analysis.CompletedDays)

	for _, group := range TrackedGroups() {
		if trained[group] {
			analysis.TrainedMuscleGroups = append(analysis.TrainedMuscleGroups, group)
		}
	}
	return analysis
}

// UntrainedGroups returns the tracked groups missing from the analysis in TrackedGroups order.
func (a Analysis) UntrainedGroups() []Focus {
	var untrained []Focus
	for _, group := range TrackedGroups() {
		if !slices.Contains(a.TrainedMuscleGroups, group) {
			untrained = append(untrained, group)
		}
	}
	return untrained
}
