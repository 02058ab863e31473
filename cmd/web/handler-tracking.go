package main

import (
	"net/http"
	"time"

	"github.com/myrjola/vitalplan/internal/contexthelpers"
	"github.com/myrjola/vitalplan/internal/errors"
	"github.com/myrjola/vitalplan/internal/tracking"
)

// logsPOST stores a log entry of the kind in the path: meals, water, sleep or workouts.
func (app *application) logsPOST(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := contexthelpers.UserID(ctx)

	var (
		stored any
		err    error
	)
	switch r.PathValue("kind") {
	case "meals":
		var entry tracking.MealLog
		if err = decodeJSON(r, &entry); err == nil {
			entry.UserID = userID
			stored, err = app.tracking.LogMeal(ctx, entry)
		}
	case "water":
		var entry tracking.WaterLog
		if err = decodeJSON(r, &entry); err == nil {
			entry.UserID = userID
			stored, err = app.tracking.LogWater(ctx, entry)
		}
	case "sleep":
		var entry tracking.SleepLog
		if err = decodeJSON(r, &entry); err == nil {
			entry.UserID = userID
			stored, err = app.tracking.LogSleep(ctx, entry)
		}
	case "workouts":
		var entry tracking.WorkoutLog
		if err = decodeJSON(r, &entry); err == nil {
			entry.UserID = userID
			stored, err = app.tracking.LogWorkout(ctx, entry)
		}
	default:
		app.writeError(w, r, http.StatusNotFound, "unknown log kind")
		return
	}
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, stored)
}

func (app *application) logsGET(w http.ResponseWriter, r *http.Request) {
	counts, err := app.tracking.CountEntries(r.Context(), contexthelpers.UserID(r.Context()))
	if err != nil {
		app.handleError(w, r, errors.Wrap(err, "count log entries"))
		return
	}
	app.writeJSON(w, r, http.StatusOK, counts)
}

func (app *application) progressGET(w http.ResponseWriter, r *http.Request) {
	date, err := dateQuery(r, time.Now())
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	progress, err := app.tracking.DailyProgress(r.Context(), contexthelpers.UserID(r.Context()), date)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, progress)
}
