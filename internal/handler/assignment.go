package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/kidpoints/internal/auth"
	"github.com/dukerupert/kidpoints/internal/calendar"
	"github.com/dukerupert/kidpoints/internal/model"
	"github.com/dukerupert/kidpoints/internal/schedule"
	"github.com/dukerupert/kidpoints/internal/store"
)

type AssignmentHandler struct {
	assignments *store.AssignmentStore
	guard       *Guard
	today       func() calendar.Date
	logger      *slog.Logger
}

func NewAssignmentHandler(as *store.AssignmentStore, g *Guard, today func() calendar.Date, logger *slog.Logger) *AssignmentHandler {
	return &AssignmentHandler{assignments: as, guard: g, today: today, logger: logger}
}

type assignmentRequest struct {
	TaskTemplateID int64         `json:"task_template_id"`
	DaysOfWeek     []string      `json:"days_of_week"`
	PointsOverride *int          `json:"points_override"`
	StartDate      calendar.Date `json:"start_date"`
	EndDate        calendar.Date `json:"end_date"`
	Active         *bool         `json:"active"`
}

// toAssignment validates the request and fills defaults: a missing start
// date means today, a missing active flag means active.
func (req *assignmentRequest) toAssignment(kidID int64, today calendar.Date) (model.Assignment, error) {
	var fe fieldErrors
	if req.TaskTemplateID <= 0 {
		fe.addf("task_template_id is required")
	}
	days, err := schedule.ParseDays(req.DaysOfWeek)
	if err != nil {
		fe.addf("days_of_week: %v", err)
	}
	if req.PointsOverride != nil {
		fe.positive("points_override", *req.PointsOverride)
	}
	start := req.StartDate
	if start.IsZero() {
		start = today
	}
	if !req.EndDate.IsZero() && req.EndDate.Before(start) {
		fe.addf("end_date must not be before start_date")
	}
	if len(fe) > 0 {
		return model.Assignment{}, fe
	}
	return model.Assignment{
		KidID:          kidID,
		TaskTemplateID: req.TaskTemplateID,
		DaysOfWeek:     days,
		PointsOverride: req.PointsOverride,
		StartDate:      start,
		EndDate:        req.EndDate,
		Active:         req.Active == nil || *req.Active,
	}, nil
}

// owned loads the {id} assignment if its kid is in the caller's family.
func (h *AssignmentHandler) owned(w http.ResponseWriter, r *http.Request) (*model.Assignment, bool) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		badRequest(w, r, err.Error())
		return nil, false
	}
	a, err := h.assignments.GetByID(id)
	if err != nil {
		writeError(w, r, h.logger, "get assignment", err)
		return nil, false
	}
	if a == nil {
		notFound(w, r, "assignment")
		return nil, false
	}
	if !h.guard.ownsKidID(w, r, a.KidID, "assignment") {
		return nil, false
	}
	return a, true
}

// ownsTemplate rejects a body template ID from another family.
func (h *AssignmentHandler) ownsTemplate(w http.ResponseWriter, r *http.Request, templateID int64) bool {
	tmpl, err := h.guard.templates.GetByID(templateID)
	if err != nil {
		writeError(w, r, h.logger, "get task template", err)
		return false
	}
	if tmpl == nil || tmpl.FamilyID != auth.FamilyID(r.Context()) {
		notFound(w, r, "task template")
		return false
	}
	return true
}

func (h *AssignmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	kid, ok := h.guard.kid(w, r, "id")
	if !ok {
		return
	}

	var req assignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	a, err := req.toAssignment(kid.ID, h.today())
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if !h.ownsTemplate(w, r, a.TaskTemplateID) {
		return
	}

	created, err := h.assignments.Create(a)
	if err != nil {
		writeError(w, r, h.logger, "create assignment", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *AssignmentHandler) ListForKid(w http.ResponseWriter, r *http.Request) {
	kid, ok := h.guard.kid(w, r, "id")
	if !ok {
		return
	}
	list, err := h.assignments.ListByKid(kid.ID)
	if err != nil {
		writeError(w, r, h.logger, "list assignments", err)
		return
	}
	if list == nil {
		list = []model.Assignment{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *AssignmentHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.assignments.ListByFamily(auth.FamilyID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, "list assignments", err)
		return
	}
	if list == nil {
		list = []model.Assignment{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *AssignmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, ok := h.owned(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AssignmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.owned(w, r)
	if !ok {
		return
	}

	var req assignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if req.TaskTemplateID == 0 {
		req.TaskTemplateID = existing.TaskTemplateID
	}
	if req.StartDate.IsZero() {
		req.StartDate = existing.StartDate
	}
	a, err := req.toAssignment(existing.KidID, h.today())
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if a.TaskTemplateID != existing.TaskTemplateID && !h.ownsTemplate(w, r, a.TaskTemplateID) {
		return
	}
	a.ID = existing.ID

	updated, err := h.assignments.Update(a)
	if err != nil {
		writeError(w, r, h.logger, "update assignment", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *AssignmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.owned(w, r)
	if !ok {
		return
	}
	if err := h.assignments.Delete(existing.ID); err != nil {
		writeError(w, r, h.logger, "delete assignment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
