package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/kidpoints/internal/archive"
	"github.com/dukerupert/kidpoints/internal/calendar"
	"github.com/dukerupert/kidpoints/internal/engine"
	"github.com/dukerupert/kidpoints/internal/middleware"
	"github.com/dukerupert/kidpoints/internal/store"
)

const maxBodyBytes = 64 << 10

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code, RequestID: middleware.GetRequestID(r.Context())})
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeMessage(w, r, http.StatusBadRequest, "invalid_input", msg)
}

func notFound(w http.ResponseWriter, r *http.Request, what string) {
	writeMessage(w, r, http.StatusNotFound, "not_found", what+" not found")
}

var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{engine.ErrNotFound, http.StatusNotFound, "not_found"},
	{engine.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{engine.ErrAlreadyCompleted, http.StatusConflict, "already_completed"},
	{engine.ErrAlreadyGrantedBonus, http.StatusConflict, "already_granted_bonus"},
	{engine.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{engine.ErrDuplicateAssignment, http.StatusConflict, "duplicate_assignment"},
	{engine.ErrConcurrencyConflict, http.StatusConflict, "concurrency_conflict"},
	{store.ErrInUse, http.StatusConflict, "in_use"},
	{engine.ErrInsufficientBalance, http.StatusUnprocessableEntity, "insufficient_balance"},
	{engine.ErrNotEligible, http.StatusUnprocessableEntity, "not_eligible"},
	{engine.ErrRewardInactive, http.StatusUnprocessableEntity, "reward_inactive"},
	{archive.ErrDisabled, http.StatusServiceUnavailable, "export_disabled"},
}

// writeError maps a business error to its status code. Anything
// unrecognized is logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			writeMessage(w, r, e.status, e.code, err.Error())
			return
		}
	}
	logger.Error(op, "error", err, "request_id", middleware.GetRequestID(r.Context()))
	writeMessage(w, r, http.StatusInternalServerError, "internal", "internal server error")
}

// decodeJSON reads a bounded JSON body. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// parseDateQuery returns the zero date when the parameter is absent.
func parseDateQuery(r *http.Request, name string) (calendar.Date, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return calendar.Date{}, nil
	}
	return calendar.Parse(s)
}
