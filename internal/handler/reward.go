package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/kidpoints/internal/auth"
	"github.com/dukerupert/kidpoints/internal/model"
	"github.com/dukerupert/kidpoints/internal/store"
)

type RewardHandler struct {
	rewards *store.RewardStore
	guard   *Guard
	logger  *slog.Logger
}

func NewRewardHandler(rs *store.RewardStore, g *Guard, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{rewards: rs, guard: g, logger: logger}
}

type rewardRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	IconEmoji   string `json:"icon_emoji"`
	CostPoints  int    `json:"cost_points"`
	Active      *bool  `json:"active"`
}

func (req *rewardRequest) validate() error {
	var fe fieldErrors
	req.Title = fe.requireText("title", req.Title, 100)
	req.Description = fe.optionalText("description", req.Description, 500)
	req.IconEmoji = fe.optionalText("icon_emoji", req.IconEmoji, 8)
	fe.positive("cost_points", req.CostPoints)
	if len(fe) > 0 {
		return fe
	}
	return nil
}

func (req *rewardRequest) active() bool {
	return req.Active == nil || *req.Active
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	reward, err := h.rewards.Create(auth.FamilyID(r.Context()), req.Title, req.Description, req.IconEmoji, req.CostPoints, req.active())
	if err != nil {
		writeError(w, r, h.logger, "create reward", err)
		return
	}
	writeJSON(w, http.StatusCreated, reward)
}

func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.rewards.ListByFamily(auth.FamilyID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, "list rewards", err)
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

// ListForKid returns the active rewards a kid can pick from, cheapest first.
func (h *RewardHandler) ListForKid(w http.ResponseWriter, r *http.Request) {
	kid, ok := h.guard.kid(w, r, "id")
	if !ok {
		return
	}
	rewards, err := h.rewards.ListActiveForKid(kid.ID)
	if err != nil {
		writeError(w, r, h.logger, "list rewards for kid", err)
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (h *RewardHandler) Get(w http.ResponseWriter, r *http.Request) {
	reward, ok := h.guard.reward(w, r, "id")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, reward)
}

func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.guard.reward(w, r, "id")
	if !ok {
		return
	}

	var req rewardRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		badRequest(w, r, err.Error())
		return
	}

	// Pending redemptions keep the cost captured when they were requested.
	reward, err := h.rewards.Update(existing.ID, req.Title, req.Description, req.IconEmoji, req.CostPoints, req.active())
	if err != nil {
		writeError(w, r, h.logger, "update reward", err)
		return
	}
	writeJSON(w, http.StatusOK, reward)
}

func (h *RewardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.guard.reward(w, r, "id")
	if !ok {
		return
	}
	if err := h.rewards.Delete(existing.ID); err != nil {
		writeError(w, r, h.logger, "delete reward", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
