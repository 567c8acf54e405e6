package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/kidpoints/internal/auth"
	"github.com/dukerupert/kidpoints/internal/model"
	"github.com/dukerupert/kidpoints/internal/store"
)

type FamilyHandler struct {
	families *store.FamilyStore
	logger   *slog.Logger
}

func NewFamilyHandler(fs *store.FamilyStore, logger *slog.Logger) *FamilyHandler {
	return &FamilyHandler{families: fs, logger: logger}
}

type familyRequest struct {
	Name     string `json:"name"`
	OwnerUID string `json:"owner_uid"`
}

type familyCreatedResponse struct {
	Family *model.Family `json:"family"`
	// Token is shown once; only its hash is stored.
	Token string `json:"token"`
}

func validFamilyName(name string) (string, string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "name is required"
	}
	if len(name) > 100 {
		return "", "name must be at most 100 characters"
	}
	return name, ""
}

// Create is the only unauthenticated endpoint: it provisions a family and
// returns its API token.
func (h *FamilyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req familyRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	name, msg := validFamilyName(req.Name)
	if msg != "" {
		badRequest(w, r, msg)
		return
	}

	family, err := h.families.Create(name, strings.TrimSpace(req.OwnerUID))
	if err != nil {
		writeError(w, r, h.logger, "create family", err)
		return
	}

	token, err := h.issueToken(family.ID)
	if err != nil {
		if delErr := h.families.Delete(family.ID); delErr != nil {
			h.logger.Error("delete family after token failure", "family_id", family.ID, "error", delErr)
		}
		writeError(w, r, h.logger, "issue token", err)
		return
	}

	h.logger.Info("family created", "family_id", family.ID)
	writeJSON(w, http.StatusCreated, familyCreatedResponse{Family: family, Token: token})
}

func (h *FamilyHandler) issueToken(familyID int64) (string, error) {
	token, hash, err := auth.NewToken(familyID)
	if err != nil {
		return "", err
	}
	if err := h.families.SetTokenHash(familyID, hash); err != nil {
		return "", err
	}
	return token, nil
}

func (h *FamilyHandler) Get(w http.ResponseWriter, r *http.Request) {
	family, err := h.families.GetByID(auth.FamilyID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, "get family", err)
		return
	}
	if family == nil {
		notFound(w, r, "family")
		return
	}
	writeJSON(w, http.StatusOK, family)
}

func (h *FamilyHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req familyRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	name, msg := validFamilyName(req.Name)
	if msg != "" {
		badRequest(w, r, msg)
		return
	}

	family, err := h.families.Update(auth.FamilyID(r.Context()), name)
	if err != nil {
		writeError(w, r, h.logger, "update family", err)
		return
	}
	if family == nil {
		notFound(w, r, "family")
		return
	}
	writeJSON(w, http.StatusOK, family)
}

// RotateToken replaces the family token; the old one stops working at once.
func (h *FamilyHandler) RotateToken(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	token, err := h.issueToken(familyID)
	if err != nil {
		writeError(w, r, h.logger, "rotate token", err)
		return
	}
	h.logger.Info("family token rotated", "family_id", familyID, "actor", auth.Actor(r.Context()))
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// Delete removes the family and, by cascade, every kid, ledger and
// redemption in it.
func (h *FamilyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	if err := h.families.Delete(familyID); err != nil {
		writeError(w, r, h.logger, "delete family", err)
		return
	}
	h.logger.Info("family deleted", "family_id", familyID, "actor", auth.Actor(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}
