package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/kidpoints/internal/auth"
	"github.com/dukerupert/kidpoints/internal/model"
	"github.com/dukerupert/kidpoints/internal/store"
)

// Guard resolves path IDs to records owned by the caller's family. A record
// of another family is reported as not found so IDs do not leak.
type Guard struct {
	kids      *store.KidStore
	templates *store.TaskTemplateStore
	rewards   *store.RewardStore
	logger    *slog.Logger
}

func NewGuard(ks *store.KidStore, ts *store.TaskTemplateStore, rs *store.RewardStore, logger *slog.Logger) *Guard {
	return &Guard{kids: ks, templates: ts, rewards: rs, logger: logger}
}

func (g *Guard) kid(w http.ResponseWriter, r *http.Request, param string) (*model.Kid, bool) {
	id, err := parseIDParam(r, param)
	if err != nil {
		badRequest(w, r, err.Error())
		return nil, false
	}
	k, err := g.kids.GetByID(id)
	if err != nil {
		writeError(w, r, g.logger, "get kid", err)
		return nil, false
	}
	if k == nil || k.FamilyID != auth.FamilyID(r.Context()) {
		notFound(w, r, "kid")
		return nil, false
	}
	return k, true
}

func (g *Guard) template(w http.ResponseWriter, r *http.Request, param string) (*model.TaskTemplate, bool) {
	id, err := parseIDParam(r, param)
	if err != nil {
		badRequest(w, r, err.Error())
		return nil, false
	}
	t, err := g.templates.GetByID(id)
	if err != nil {
		writeError(w, r, g.logger, "get task template", err)
		return nil, false
	}
	if t == nil || t.FamilyID != auth.FamilyID(r.Context()) {
		notFound(w, r, "task template")
		return nil, false
	}
	return t, true
}

func (g *Guard) reward(w http.ResponseWriter, r *http.Request, param string) (*model.Reward, bool) {
	id, err := parseIDParam(r, param)
	if err != nil {
		badRequest(w, r, err.Error())
		return nil, false
	}
	rw, err := g.rewards.GetByID(id)
	if err != nil {
		writeError(w, r, g.logger, "get reward", err)
		return nil, false
	}
	if rw == nil || rw.FamilyID != auth.FamilyID(r.Context()) {
		notFound(w, r, "reward")
		return nil, false
	}
	return rw, true
}

// ownsKidID checks the kid behind a record reached by its own ID; what
// names that record in the 404.
func (g *Guard) ownsKidID(w http.ResponseWriter, r *http.Request, kidID int64, what string) bool {
	k, err := g.kids.GetByID(kidID)
	if err != nil {
		writeError(w, r, g.logger, "get kid", err)
		return false
	}
	if k == nil || k.FamilyID != auth.FamilyID(r.Context()) {
		notFound(w, r, what)
		return false
	}
	return true
}
