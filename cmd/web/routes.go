package main

import (
	"net/http"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	var (
		shared = func(next http.Handler) http.Handler {
			return app.recoverPanic(app.logAndTraceRequest(secureHeaders(app.timeout(next))))
		}
		user = func(next http.HandlerFunc) http.Handler {
			return shared(app.withUser(next))
		}
	)

	mux.Handle("GET /api/healthy", shared(http.HandlerFunc(app.healthy)))
	mux.Handle("GET /api/exercises", shared(http.HandlerFunc(app.exercisesGET)))
	mux.Handle("GET /api/health-goals", shared(http.HandlerFunc(app.healthGoalsGET)))
	mux.Handle("POST /api/users", shared(http.HandlerFunc(app.usersPOST)))

	mux.Handle("GET /api/users/{userID}/plan", user(app.planGET))
	mux.Handle("POST /api/users/{userID}/plan/switch", user(app.planSwitchPOST))
	mux.Handle("GET /api/users/{userID}/goals", user(app.goalsGET))

	mux.Handle("GET /api/users/{userID}/progress", user(app.progressGET))
	mux.Handle("GET /api/users/{userID}/logs", user(app.logsGET))
	mux.Handle("POST /api/users/{userID}/logs/{kind}", user(app.logsPOST))

	mux.Handle("GET /api/users/{userID}/week", user(app.weekGET))
	mux.Handle("POST /api/users/{userID}/week/{day}/exercises", user(app.weekExercisesPOST))
	mux.Handle("POST /api/users/{userID}/week/{day}/exercises/{exerciseID}/complete",
		user(app.weekExerciseCompletePOST))

	mux.Handle("GET /api/users/{userID}/suggestion", user(app.suggestionGET))
	mux.Handle("POST /api/users/{userID}/suggestion/apply", user(app.suggestionApplyPOST))

	mux.Handle("/", shared(http.HandlerFunc(app.notFound)))

	return mux
}

func (app *application) notFound(w http.ResponseWriter, r *http.Request) {
	app.writeError(w, r, http.StatusNotFound, http.StatusText(http.StatusNotFound))
}
