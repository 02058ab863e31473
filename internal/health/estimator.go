// Package health turns body metrics and a declared health goal into daily nutrition, hydration, sleep and training
// targets.
package health

import (
	"strings"
)

// Sex selects the Mifflin-St Jeor constant.
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// ActivityLevel scales BMR into TDEE.
type ActivityLevel string

const (
	ActivitySedentary       ActivityLevel = "sedentary"
	ActivityLight           ActivityLevel = "light"
	ActivityModerate        ActivityLevel = "moderate"
	ActivityActive          ActivityLevel = "active"
	ActivityExtremelyActive ActivityLevel = "extremely active"
)

const (
	defaultActivityFactor = 1.2
	weightCoefficient     = 10
	heightCoefficient     = 6.25
	ageCoefficient        = 5
	maleConstant          = 5
	femaleConstant        = -161
)

//nolint:gochecknoglobals // read-only lookup table.
var activityFactors = map[ActivityLevel]float64{
	ActivitySedentary:       1.2,
	ActivityLight:           1.375,
	ActivityModerate:        1.55,
	ActivityActive:          1.725,
	ActivityExtremelyActive: 1.9,
}

// ActivityLevels lists the levels from least to most active.
func ActivityLevels() []ActivityLevel {
	return []ActivityLevel{
		ActivitySedentary, ActivityLight, ActivityModerate, ActivityActive, ActivityExtremelyActive,
	}
}

// ParseActivityLevel accepts the level names case-insensitively with either spaces, hyphens or underscores as
// separators. Unknown names are returned as-is and get the sedentary factor from TDEE.
func ParseActivityLevel(s string) ActivityLevel {
	normalised := strings.ToLower(strings.TrimSpace(s))
	normalised = strings.NewReplacer("_", " ", "-", " ").Replace(normalised)
	return ActivityLevel(normalised)
}

// BMR estimates the basal metabolic rate in kcal/day with the Mifflin-St Jeor equation.
//
// The inputs are not validated: NaN or negative metrics produce whatever the arithmetic yields.
func BMR(weightKg, heightCm float64, ageYears int, sex Sex) float64 {
	constant := float64(femaleConstant)
	if sex == SexMale {
		constant = maleConstant
	}
	return weightCoefficient*weightKg + heightCoefficient*heightCm - ageCoefficient*float64(ageYears) + constant
}

// TDEE scales bmr by the activity factor of level. Unknown levels count as sedentary.
func TDEE(bmr float64, level ActivityLevel) float64 {
	factor, ok := activityFactors[level]
	if !ok {
		factor = defaultActivityFactor
	}
	return bmr * factor
}
