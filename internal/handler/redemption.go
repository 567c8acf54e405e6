package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/kidpoints/internal/auth"
	"github.com/dukerupert/kidpoints/internal/engine"
	"github.com/dukerupert/kidpoints/internal/model"
	"github.com/dukerupert/kidpoints/internal/store"
)

type RedemptionHandler struct {
	engine  *engine.Engine
	rewards *store.RewardStore
	guard   *Guard
	logger  *slog.Logger
}

func NewRedemptionHandler(e *engine.Engine, rs *store.RewardStore, g *Guard, logger *slog.Logger) *RedemptionHandler {
	return &RedemptionHandler{engine: e, rewards: rs, guard: g, logger: logger}
}

type redemptionRequest struct {
	RewardID int64  `json:"reward_id"`
	Notes    string `json:"notes"`
}

type decisionRequest struct {
	Decision model.RedemptionStatus `json:"decision"`
	Notes    string                 `json:"notes"`
}

const maxNotes = 500

// Request files a pending redemption for the kid in the path.
func (h *RedemptionHandler) Request(w http.ResponseWriter, r *http.Request) {
	kid, ok := h.guard.kid(w, r, "id")
	if !ok {
		return
	}

	var req redemptionRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	var fe fieldErrors
	if req.RewardID <= 0 {
		fe.addf("reward_id is required")
	}
	req.Notes = fe.optionalText("notes", req.Notes, maxNotes)
	if len(fe) > 0 {
		badRequest(w, r, fe.Error())
		return
	}

	redemption, err := h.engine.RequestRedemption(r.Context(), kid.ID, req.RewardID, req.Notes)
	if err != nil {
		writeError(w, r, h.logger, "request redemption", err)
		return
	}
	writeJSON(w, http.StatusCreated, redemption)
}

// owned loads the {id} redemption if its kid is in the caller's family.
func (h *RedemptionHandler) owned(w http.ResponseWriter, r *http.Request) (*model.Redemption, bool) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		badRequest(w, r, err.Error())
		return nil, false
	}
	redemption, err := h.engine.GetRedemption(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, "get redemption", err)
		return nil, false
	}
	if !h.guard.ownsKidID(w, r, redemption.KidID, "redemption") {
		return nil, false
	}
	return redemption, true
}

func (h *RedemptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	redemption, ok := h.owned(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, redemption)
}

// Decide approves, rejects or delivers a redemption. The caller's actor
// label is recorded as the decider.
func (h *RedemptionHandler) Decide(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.owned(w, r)
	if !ok {
		return
	}

	var req decisionRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	req.Decision = model.RedemptionStatus(strings.ToLower(strings.TrimSpace(string(req.Decision))))
	var fe fieldErrors
	req.Notes = fe.optionalText("notes", req.Notes, maxNotes)
	if len(fe) > 0 {
		badRequest(w, r, fe.Error())
		return
	}

	redemption, err := h.engine.DecideRedemption(r.Context(), existing.ID, req.Decision, auth.Actor(r.Context()), req.Notes)
	if err != nil {
		writeError(w, r, h.logger, "decide redemption", err)
		return
	}
	writeJSON(w, http.StatusOK, redemption)
}

// List returns the family's redemptions newest first, optionally filtered
// by ?status=.
func (h *RedemptionHandler) List(w http.ResponseWriter, r *http.Request) {
	status := model.RedemptionStatus(r.URL.Query().Get("status"))
	switch status {
	case "", model.RedemptionPending, model.RedemptionApproved, model.RedemptionRejected, model.RedemptionDelivered:
	default:
		badRequest(w, r, "status must be pending, approved, rejected or delivered")
		return
	}

	list, err := h.rewards.ListRedemptionsByFamily(auth.FamilyID(r.Context()), status)
	if err != nil {
		writeError(w, r, h.logger, "list redemptions", err)
		return
	}
	if list == nil {
		list = []model.RedemptionDetail{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *RedemptionHandler) ListForKid(w http.ResponseWriter, r *http.Request) {
	kid, ok := h.guard.kid(w, r, "id")
	if !ok {
		return
	}
	list, err := h.rewards.ListRedemptionsByKid(kid.ID)
	if err != nil {
		writeError(w, r, h.logger, "list redemptions", err)
		return
	}
	if list == nil {
		list = []model.RedemptionDetail{}
	}
	writeJSON(w, http.StatusOK, list)
}
