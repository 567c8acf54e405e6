package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/kidpoints/internal/auth"
	"github.com/dukerupert/kidpoints/internal/model"
	"github.com/dukerupert/kidpoints/internal/store"
)

type TemplateHandler struct {
	templates *store.TaskTemplateStore
	guard     *Guard
	logger    *slog.Logger
}

func NewTemplateHandler(ts *store.TaskTemplateStore, g *Guard, logger *slog.Logger) *TemplateHandler {
	return &TemplateHandler{templates: ts, guard: g, logger: logger}
}

type templateRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	IconEmoji   string           `json:"icon_emoji"`
	BasePoints  int              `json:"base_points"`
	Recurrence  model.Recurrence `json:"recurrence"`
	Active      *bool            `json:"active"`
}

func (req *templateRequest) validate() error {
	var fe fieldErrors
	req.Title = fe.requireText("title", req.Title, 100)
	req.Description = fe.optionalText("description", req.Description, 500)
	req.IconEmoji = fe.optionalText("icon_emoji", req.IconEmoji, 8)
	fe.positive("base_points", req.BasePoints)
	if req.Recurrence == "" {
		req.Recurrence = model.RecurrenceDaily
	}
	if !req.Recurrence.Valid() {
		fe.addf("recurrence must be daily, weekly or once")
	}
	if len(fe) > 0 {
		return fe
	}
	return nil
}

func (req *templateRequest) active() bool {
	return req.Active == nil || *req.Active
}

func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	tmpl, err := h.templates.Create(auth.FamilyID(r.Context()), req.Title, req.Description, req.IconEmoji, req.BasePoints, req.Recurrence, req.active())
	if err != nil {
		writeError(w, r, h.logger, "create task template", err)
		return
	}
	writeJSON(w, http.StatusCreated, tmpl)
}

func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templates.ListByFamily(auth.FamilyID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, "list task templates", err)
		return
	}
	if templates == nil {
		templates = []model.TaskTemplate{}
	}
	writeJSON(w, http.StatusOK, templates)
}

func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	tmpl, ok := h.guard.template(w, r, "id")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.guard.template(w, r, "id")
	if !ok {
		return
	}

	var req templateRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	tmpl, err := h.templates.Update(existing.ID, req.Title, req.Description, req.IconEmoji, req.BasePoints, req.Recurrence, req.active())
	if err != nil {
		writeError(w, r, h.logger, "update task template", err)
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.guard.template(w, r, "id")
	if !ok {
		return
	}
	if err := h.templates.Delete(existing.ID); err != nil {
		writeError(w, r, h.logger, "delete task template", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
