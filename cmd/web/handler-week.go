package main

import (
	"net/http"

	"github.com/myrjola/vitalplan/internal/contexthelpers"
	"github.com/myrjola/vitalplan/internal/training"
)

type dayResponse struct {
	Day       string                     `json:"day"`
	Exercises []training.PlannedExercise `json:"exercises"`
}

// weekGET lists all seven days Monday first. Days without exercises have an empty list.
func (app *application) weekGET(w http.ResponseWriter, r *http.Request) {
	week, err := app.training.WeeklyPlan(r.Context(), contexthelpers.UserID(r.Context()))
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	days := make([]dayResponse, 0, len(training.MondayFirst()))
	for _, day := range training.MondayFirst() {
		exercises := week[day].Exercises
		if exercises == nil {
			exercises = []training.PlannedExercise{}
		}
		days = append(days, dayResponse{Day: day.String(), Exercises: exercises})
	}
	app.writeJSON(w, r, http.StatusOK, days)
}

func (app *application) weekExercisesPOST(w http.ResponseWriter, r *http.Request) {
	day, err := training.ParseWeekday(r.PathValue("day"))
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	var exercise training.PlannedExercise
	if err = decodeJSON(r, &exercise); err != nil {
		app.handleError(w, r, err)
		return
	}
	if err = app.training.AddExercise(r.Context(), contexthelpers.UserID(r.Context()), day, exercise); err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusCreated, exercise)
}

type completeRequest struct {
	Completed bool `json:"completed"`
}

// weekExerciseCompletePOST marks an exercise completed. A body of {"completed": false} reverts it.
func (app *application) weekExerciseCompletePOST(w http.ResponseWriter, r *http.Request) {
	day, err := training.ParseWeekday(r.PathValue("day"))
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	req := completeRequest{Completed: true}
	if r.ContentLength != 0 {
		if err = decodeJSON(r, &req); err != nil {
			app.handleError(w, r, err)
			return
		}
	}
	if err = app.training.SetCompleted(r.Context(), contexthelpers.UserID(r.Context()), day,
		r.PathValue("exerciseID"), req.Completed); err != nil {
		app.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
