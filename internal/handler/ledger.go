package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/kidpoints/internal/archive"
	"github.com/dukerupert/kidpoints/internal/auth"
	"github.com/dukerupert/kidpoints/internal/engine"
	"github.com/dukerupert/kidpoints/internal/model"
)

type LedgerHandler struct {
	engine   *engine.Engine
	exporter *archive.Exporter
	guard    *Guard
	logger   *slog.Logger
}

func NewLedgerHandler(e *engine.Engine, exp *archive.Exporter, g *Guard, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{engine: e, exporter: exp, guard: g, logger: logger}
}

type balanceResponse struct {
	KidID   int64 `json:"kid_id"`
	Balance int   `json:"balance"`
}

type adjustmentRequest struct {
	EntryType   model.EntryType `json:"entry_type"`
	Points      int             `json:"points"`
	Description string          `json:"description"`
}

func (h *LedgerHandler) Balance(w http.ResponseWriter, r *http.Request) {
	kid, ok := h.guard.kid(w, r, "id")
	if !ok {
		return
	}
	pb, err := h.engine.PointBalance(r.Context(), kid.ID)
	if err != nil {
		writeError(w, r, h.logger, "get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, pb)
}

// History returns the newest ?limit= entries (default 50).
func (h *LedgerHandler) History(w http.ResponseWriter, r *http.Request) {
	kid, ok := h.guard.kid(w, r, "id")
	if !ok {
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			badRequest(w, r, "limit must be an integer")
			return
		}
		limit = n
	}

	entries, err := h.engine.History(r.Context(), kid.ID, limit)
	if err != nil {
		writeError(w, r, h.logger, "points history", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *LedgerHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.engine.Leaderboard(r.Context(), auth.FamilyID(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, "leaderboard", err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// Adjust appends a manual credit or debit.
func (h *LedgerHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	kid, ok := h.guard.kid(w, r, "id")
	if !ok {
		return
	}
	var req adjustmentRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	var fe fieldErrors
	req.Description = fe.requireText("description", req.Description, 200)
	if len(fe) > 0 {
		badRequest(w, r, fe.Error())
		return
	}

	balance, err := h.engine.AdjustPoints(r.Context(), kid.ID, req.EntryType, req.Points, req.Description)
	if err != nil {
		writeError(w, r, h.logger, "adjust points", err)
		return
	}
	h.logger.Info("points adjusted", "kid_id", kid.ID, "entry_type", req.EntryType,
		"points", req.Points, "actor", auth.Actor(r.Context()))
	writeJSON(w, http.StatusCreated, balanceResponse{KidID: kid.ID, Balance: balance})
}

func (h *LedgerHandler) BonusEligibility(w http.ResponseWriter, r *http.Request) {
	kid, ok := h.guard.kid(w, r, "id")
	if !ok {
		return
	}
	el, err := h.engine.CheckEligibility(r.Context(), kid.ID, model.Period(r.PathValue("period")))
	if err != nil {
		writeError(w, r, h.logger, "check bonus eligibility", err)
		return
	}
	writeJSON(w, http.StatusOK, el)
}

func (h *LedgerHandler) GrantBonus(w http.ResponseWriter, r *http.Request) {
	kid, ok := h.guard.kid(w, r, "id")
	if !ok {
		return
	}
	balance, err := h.engine.GrantBonus(r.Context(), kid.ID, model.Period(r.PathValue("period")))
	if err != nil {
		writeError(w, r, h.logger, "grant bonus", err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{KidID: kid.ID, Balance: balance})
}

// Export uploads the kid's full ledger to object storage.
func (h *LedgerHandler) Export(w http.ResponseWriter, r *http.Request) {
	kid, ok := h.guard.kid(w, r, "id")
	if !ok {
		return
	}
	exp, err := h.exporter.Export(r.Context(), kid.FamilyID, kid.ID)
	if err != nil {
		writeError(w, r, h.logger, "export ledger", err)
		return
	}
	writeJSON(w, http.StatusCreated, exp)
}
