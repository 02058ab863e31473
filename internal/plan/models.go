// Package plan derives, persists and switches the health plan of a user.
package plan

import (
	"time"

	"github.com/google/uuid"
	"github.com/myrjola/vitalplan/internal/health"
)

// Profile is the stored user. Snapshot turns it into calculator input.
type Profile struct {
	ID            int                  `json:"id"`
	Name          string               `json:"name"`
	WeightKg      float64              `json:"weightKg"`
	HeightCm      float64              `json:"heightCm"`
	AgeYears      int                  `json:"ageYears"`
	Sex           health.Sex           `json:"sex"`
	ActivityLevel health.ActivityLevel `json:"activityLevel"`
	HealthGoal    string               `json:"healthGoal"`
	// AIAPIKey is the per-user credential for AI suggestions. It is never serialised.
	AIAPIKey  string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// Snapshot returns the calculator input of the profile.
func (p Profile) Snapshot() health.UserSnapshot {
	return health.UserSnapshot{
		WeightKg:      p.WeightKg,
		HeightCm:      p.HeightCm,
		AgeYears:      p.AgeYears,
		Sex:           p.Sex,
		ActivityLevel: p.ActivityLevel,
		HealthGoal:    p.HealthGoal,
	}
}

// WorkoutPlan is the training part of a HealthPlan.
type WorkoutPlan struct {
	WorkoutsPerWeek  int      `json:"workoutsPerWeek"`
	RecommendedFocus []string `json:"recommendedFocus"`
}

// HealthPlan is the denormalised current plan of a user.
type HealthPlan struct {
	ID              uuid.UUID             `json:"id"`
	UserID          int                   `json:"userId"`
	HealthGoal      string                `json:"healthGoal"`
	NutritionGoals  health.NutritionGoals `json:"nutritionGoals"`
	WorkoutPlan     WorkoutPlan           `json:"workoutPlan"`
	HydrationGoalMl int                   `json:"hydrationGoalMl"`
	SleepGoalHours  float64               `json:"sleepGoalHours"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

// HydrationGoal is the daily water target.
type HydrationGoal struct {
	Date     time.Time `json:"date"`
	UserID   int       `json:"userId"`
	AmountMl int       `json:"amountMl"`
}

// SleepGoal is the nightly sleep target.
type SleepGoal struct {
	Date   time.Time `json:"date"`
	UserID int       `json:"userId"`
	Hours  float64   `json:"hours"`
}

// Goals are the goal store values effective on a date.
type Goals struct {
	Nutrition health.NutritionGoals `json:"nutrition"`
	Hydration HydrationGoal         `json:"hydration"`
	Sleep     SleepGoal             `json:"sleep"`
}
