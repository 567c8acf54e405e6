package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/kidpoints/internal/auth"
	"github.com/dukerupert/kidpoints/internal/model"
	"github.com/dukerupert/kidpoints/internal/store"
)

type KidHandler struct {
	kids   *store.KidStore
	guard  *Guard
	logger *slog.Logger
}

func NewKidHandler(ks *store.KidStore, g *Guard, logger *slog.Logger) *KidHandler {
	return &KidHandler{kids: ks, guard: g, logger: logger}
}

type kidRequest struct {
	DisplayName string `json:"display_name"`
	Age         *int   `json:"age"`
	ColorHex    string `json:"color_hex"`
	AvatarURL   string `json:"avatar_url"`
}

func (req *kidRequest) validate() error {
	var fe fieldErrors
	req.DisplayName = fe.requireText("display_name", req.DisplayName, 50)
	if req.Age != nil && (*req.Age < 0 || *req.Age > 25) {
		fe.addf("age must be between 0 and 25")
	}
	req.ColorHex = fe.colorHex(req.ColorHex)
	req.AvatarURL = fe.avatarURL(req.AvatarURL)
	if len(fe) > 0 {
		return fe
	}
	return nil
}

func (h *KidHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req kidRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	kid, err := h.kids.Create(auth.FamilyID(r.Context()), req.DisplayName, req.Age, req.ColorHex, req.AvatarURL)
	if err != nil {
		writeError(w, r, h.logger, "create kid", err)
		return
	}
	writeJSON(w, http.StatusCreated, kid)
}

func (h *KidHandler) List(w http.ResponseWriter, r *http.Request) {
	kids, err := h.kids.ListByFamily(auth.FamilyID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, "list kids", err)
		return
	}
	if kids == nil {
		kids = []model.Kid{}
	}
	writeJSON(w, http.StatusOK, kids)
}

func (h *KidHandler) Get(w http.ResponseWriter, r *http.Request) {
	kid, ok := h.guard.kid(w, r, "id")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, kid)
}

func (h *KidHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.guard.kid(w, r, "id")
	if !ok {
		return
	}

	var req kidRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	kid, err := h.kids.Update(existing.ID, req.DisplayName, req.Age, req.ColorHex, req.AvatarURL)
	if err != nil {
		writeError(w, r, h.logger, "update kid", err)
		return
	}
	writeJSON(w, http.StatusOK, kid)
}

// Delete removes the kid with their tasks, ledger and redemptions.
func (h *KidHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.guard.kid(w, r, "id")
	if !ok {
		return
	}
	if err := h.kids.Delete(existing.ID); err != nil {
		writeError(w, r, h.logger, "delete kid", err)
		return
	}
	h.logger.Info("kid deleted", "kid_id", existing.ID, "actor", auth.Actor(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}
