package health

import (
	"log/slog"
	"math"
	"time"

	"github.com/myrjola/vitalplan/internal/errors"
)

// ErrInvalidSnapshot is returned for snapshots whose metrics are not finite positive numbers.
var ErrInvalidSnapshot = errors.NewSentinel("invalid user snapshot")

const (
	kcalPerGramCarbs = 4
	kcalPerGramFat   = 9
)

// UserSnapshot is a read-only view of the user at calculation time.
type UserSnapshot struct {
	WeightKg      float64
	HeightCm      float64
	AgeYears      int
	Sex           Sex
	ActivityLevel ActivityLevel
	HealthGoal    string
}

// MealTargets is the number of meals per slot.
type MealTargets struct {
	Breakfast int `json:"breakfast"`
	Lunch     int `json:"lunch"`
	Dinner    int `json:"dinner"`
	Snacks    int `json:"snacks"`
}

// NutritionGoals are the daily nutrition targets of one user.
type NutritionGoals struct {
	Date        time.Time   `json:"date"`
	UserID      int         `json:"userId"`
	CalorieGoal int         `json:"calorieGoal"`
	ProteinGoal int         `json:"proteinGoal"`
	CarbsGoal   int         `json:"carbsGoal"`
	FatGoal     int         `json:"fatGoal"`
	TargetMeals MealTargets `json:"targetMeals"`
}

// Targets is everything derived from a snapshot.
type Targets struct {
	HealthGoal       string
	Nutrition        NutritionGoals
	WaterGoalMl      int
	SleepGoalHours   float64
	WorkoutsPerWeek  int
	RecommendedFocus []string
}

// Calculator derives targets from snapshots with an injected policy table.
type Calculator struct {
	policies PolicyTable
}

func NewCalculator(policies PolicyTable) *Calculator {
	return &Calculator{policies: policies}
}

// Calculate derives the daily targets for snapshot. The result depends only on snapshot and date.
func (c *Calculator) Calculate(snapshot UserSnapshot, date time.Time) (Targets, error) {
	if err := validate(snapshot); err != nil {
		return Targets{}, err
	}

	policy, _ := c.policies.Lookup(snapshot.HealthGoal)
	level := snapshot.ActivityLevel
	if level == "" {
		level = ActivityModerate
	}

	tdee := TDEE(BMR(snapshot.WeightKg, snapshot.HeightCm, snapshot.AgeYears, snapshot.Sex), level)
	calorieGoal := round(tdee * policy.CalorieMultiplier)
	snacks := 2
	if policy.MassGain {
		snacks = 3
	}

	return Targets{
		HealthGoal: snapshot.HealthGoal,
		Nutrition: NutritionGoals{
			Date:        Day(date),
			UserID:      0,
			CalorieGoal: calorieGoal,
			ProteinGoal: round(snapshot.WeightKg * policy.ProteinPerKg),
			CarbsGoal:   round(float64(calorieGoal) * policy.CarbsPct / kcalPerGramCarbs),
			FatGoal:     round(float64(calorieGoal) * policy.FatPct / kcalPerGramFat),
			TargetMeals: MealTargets{Breakfast: 1, Lunch: 1, Dinner: 1, Snacks: snacks},
		},
		WaterGoalMl:      round(snapshot.WeightKg * policy.WaterPerKgMl),
		SleepGoalHours:   policy.SleepHours,
		WorkoutsPerWeek:  policy.WorkoutDaysPerWeek,
		RecommendedFocus: policy.RecommendedFocus,
	}, nil
}

// Policies exposes the injected policy table.
func (c *Calculator) Policies() PolicyTable {
	return c.policies
}

// Day truncates t to midnight of its UTC calendar date. Goal days are UTC days throughout the service.
func Day(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func validate(s UserSnapshot) error {
	positive := func(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0 }
	switch {
	case !positive(s.WeightKg):
		return errors.Wrap(ErrInvalidSnapshot, "weight must be positive", slog.Float64("weight_kg", s.WeightKg))
	case !positive(s.HeightCm):
		return errors.Wrap(ErrInvalidSnapshot, "height must be positive", slog.Float64("height_cm", s.HeightCm))
	case s.AgeYears <= 0:
		return errors.Wrap(ErrInvalidSnapshot, "age must be positive", slog.Int("age_years", s.AgeYears))
	}
	return nil
}

func round(v float64) int {
	return int(math.Round(v))
}
