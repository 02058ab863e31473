package main

import (
	"net/http"
	"time"

	"github.com/myrjola/vitalplan/internal/contexthelpers"
	"github.com/myrjola/vitalplan/internal/health"
	"github.com/myrjola/vitalplan/internal/plan"
)

type registerRequest struct {
	Name          string  `json:"name"`
	WeightKg      float64 `json:"weightKg"`
	HeightCm      float64 `json:"heightCm"`
	AgeYears      int     `json:"ageYears"`
	Sex           string  `json:"sex"`
	ActivityLevel string  `json:"activityLevel"`
	HealthGoal    string  `json:"healthGoal"`
	// AIAPIKey is stored for the AI suggestions of this user and never returned.
	AIAPIKey string `json:"aiApiKey"`
}

type registerResponse struct {
	Profile plan.Profile    `json:"profile"`
	Plan    plan.HealthPlan `json:"plan"`
}

func (app *application) usersPOST(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}
	profile, p, err := app.plans.RegisterUser(r.Context(), plan.Profile{
		ID:            0,
		Name:          req.Name,
		WeightKg:      req.WeightKg,
		HeightCm:      req.HeightCm,
		AgeYears:      req.AgeYears,
		Sex:           health.Sex(req.Sex),
		ActivityLevel: health.ActivityLevel(req.ActivityLevel),
		HealthGoal:    req.HealthGoal,
		AIAPIKey:      req.AIAPIKey,
		CreatedAt:     time.Time{},
	})
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, registerResponse{Profile: profile, Plan: p})
}

func (app *application) healthGoalsGET(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, r, http.StatusOK, app.plans.HealthGoals())
}

func (app *application) planGET(w http.ResponseWriter, r *http.Request) {
	p, err := app.plans.GetCurrentPlan(r.Context(), contexthelpers.UserID(r.Context()))
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, p)
}

type switchPlanRequest struct {
	HealthGoal string `json:"healthGoal"`
}

func (app *application) planSwitchPOST(w http.ResponseWriter, r *http.Request) {
	var req switchPlanRequest
	if err := decodeJSON(r, &req); err != nil {
		app.handleError(w, r, err)
		return
	}
	p, err := app.plans.SwitchPlan(r.Context(), contexthelpers.UserID(r.Context()), req.HealthGoal)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, p)
}

func (app *application) goalsGET(w http.ResponseWriter, r *http.Request) {
	date, err := dateQuery(r, time.Now())
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	goals, err := app.plans.GetGoals(r.Context(), contexthelpers.UserID(r.Context()), date)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, goals)
}
