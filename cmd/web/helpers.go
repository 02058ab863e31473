package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/myrjola/vitalplan/internal/errors"
	"github.com/myrjola/vitalplan/internal/health"
	"github.com/myrjola/vitalplan/internal/plan"
	"github.com/myrjola/vitalplan/internal/tracking"
	"github.com/myrjola/vitalplan/internal/training"
)

const (
	dateLayout   = "2006-01-02"
	maxBodyBytes = 1 << 20
)

var errBadRequest = errors.NewSentinel("bad request")

type errorResponse struct {
	Error string `json:"error"`
}

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "marshal response"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (app *application) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	app.writeJSON(w, r, status, errorResponse{Error: message})
}

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error", errors.SlogError(err))
	app.writeError(w, r, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

// handleError maps domain errors to 404 and 400 responses and everything else to 500.
func (app *application) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, plan.ErrNotFound), errors.Is(err, training.ErrNotFound):
		app.writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, errBadRequest),
		errors.Is(err, plan.ErrInvalidInput),
		errors.Is(err, health.ErrInvalidSnapshot),
		errors.Is(err, tracking.ErrInvalidEntry),
		errors.Is(err, training.ErrInvalidWeekday),
		errors.Is(err, training.ErrInvalidVolume):
		app.logger.LogAttrs(r.Context(), slog.LevelDebug, "rejected request", errors.SlogError(err))
		app.writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		app.serverError(w, r, err)
	}
}

// decodeJSON decodes a single JSON object from the request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return errors.Wrap(errBadRequest, "decode request body", slog.String("cause", err.Error()))
	}
	return nil
}

// dateQuery parses the optional date query parameter. Today is used when it is missing.
func dateQuery(r *http.Request, now time.Time) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return health.Day(now), nil
	}
	date, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, errors.Wrap(errBadRequest, "invalid date", slog.String("date", raw))
	}
	return date, nil
}
