package main

import (
	"net/http"

	"github.com/myrjola/vitalplan/internal/catalog"
)

func (app *application) exercisesGET(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	exercises, err := app.catalog.Search(r.Context(), catalog.Query{
		BodyPart:   query.Get("bodyPart"),
		Difficulty: query.Get("difficulty"),
		Name:       query.Get("name"),
		Limit:      0,
	})
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, exercises)
}
