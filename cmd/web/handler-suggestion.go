package main

import (
	"net/http"

	"github.com/myrjola/vitalplan/internal/contexthelpers"
	"github.com/myrjola/vitalplan/internal/suggestion"
)

// suggestionGET always answers with a suggestion. refresh=true skips the cached one.
func (app *application) suggestionGET(w http.ResponseWriter, r *http.Request) {
	refresh := r.URL.Query().Get("refresh") == "true"
	s := app.suggestions.Suggest(r.Context(), contexthelpers.UserID(r.Context()), refresh)
	app.writeJSON(w, r, http.StatusOK, s)
}

// suggestionApplyPOST adds the exercises of the suggestion in the request body to the plan of its day.
func (app *application) suggestionApplyPOST(w http.ResponseWriter, r *http.Request) {
	var s suggestion.Suggestion
	if err := decodeJSON(r, &s); err != nil {
		app.handleError(w, r, err)
		return
	}
	result, err := app.suggestions.Apply(r.Context(), contexthelpers.UserID(r.Context()), s)
	if err != nil {
		app.handleError(w, r, err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, result)
}
