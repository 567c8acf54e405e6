package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/kidpoints/internal/auth"
	"github.com/dukerupert/kidpoints/internal/calendar"
	"github.com/dukerupert/kidpoints/internal/engine"
)

type TaskHandler struct {
	engine *engine.Engine
	guard  *Guard
	logger *slog.Logger
}

func NewTaskHandler(e *engine.Engine, g *Guard, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{engine: e, guard: g, logger: logger}
}

type dateRequest struct {
	Date calendar.Date `json:"date"`
}

type generateResponse struct {
	Date    calendar.Date `json:"date"`
	Created int           `json:"created"`
}

type completeResponse struct {
	KidID          int64         `json:"kid_id"`
	TaskTemplateID int64         `json:"task_template_id"`
	Date           calendar.Date `json:"date"`
	Balance        int           `json:"balance"`
}

// Generate materializes the family's tasks for a date (default today).
func (h *TaskHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if req.Date.IsZero() {
		req.Date = h.engine.Today()
	}

	created, err := h.engine.GenerateForDate(r.Context(), auth.FamilyID(r.Context()), req.Date)
	if err != nil {
		writeError(w, r, h.logger, "generate daily tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{Date: req.Date, Created: created})
}

func (h *TaskHandler) ListForDate(w http.ResponseWriter, r *http.Request) {
	kid, ok := h.guard.kid(w, r, "id")
	if !ok {
		return
	}
	date, err := parseDateQuery(r, "date")
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}

	tasks, err := h.engine.TasksForDate(r.Context(), kid.ID, date)
	if err != nil {
		writeError(w, r, h.logger, "list tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	kid, ok := h.guard.kid(w, r, "id")
	if !ok {
		return
	}
	start, err := parseDateQuery(r, "start")
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	end, err := parseDateQuery(r, "end")
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}

	tasks, err := h.engine.TasksCalendar(r.Context(), kid.ID, start, end)
	if err != nil {
		writeError(w, r, h.logger, "task calendar", err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// Complete marks one task done and credits its points exactly once.
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	kid, ok := h.guard.kid(w, r, "id")
	if !ok {
		return
	}
	tmpl, ok := h.guard.template(w, r, "template_id")
	if !ok {
		return
	}

	var req dateRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if req.Date.IsZero() {
		req.Date = h.engine.Today()
	}

	balance, err := h.engine.CompleteTask(r.Context(), kid.ID, tmpl.ID, req.Date)
	if err != nil {
		writeError(w, r, h.logger, "complete task", err)
		return
	}
	writeJSON(w, http.StatusOK, completeResponse{
		KidID:          kid.ID,
		TaskTemplateID: tmpl.ID,
		Date:           req.Date,
		Balance:        balance,
	})
}
