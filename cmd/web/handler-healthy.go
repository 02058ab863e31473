package main

import (
	"net/http"
)

type healthResponse struct {
	Status string `json:"status"`
}

// healthy reports that the server accepts requests. e2etest.StartServer polls it before running tests.
func (app *application) healthy(w http.ResponseWriter, r *http.Request) {
	app.writeJSON(w, r, http.StatusOK, healthResponse{Status: "ok"})
}
