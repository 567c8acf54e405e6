package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/kidpoints/internal/auth"
	"github.com/dukerupert/kidpoints/internal/store"
)

const (
	actorHeader  = "X-Actor"
	defaultActor = "parent"
)

// RequireFamily authenticates "Authorization: Bearer <familyID>.<secret>"
// against the family's stored token hash and puts the Principal into the
// request context. The WebSocket endpoint may pass the token as ?token=
// since browsers cannot set headers on the upgrade request.
func RequireFamily(families *store.FamilyStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w)
				return
			}

			familyID, secret, err := auth.ParseToken(token)
			if err != nil {
				unauthorized(w)
				return
			}

			hash, err := families.GetTokenHash(familyID)
			if err != nil {
				logger.Error("lookup token hash", "family_id", familyID, "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			if !auth.CheckSecret(hash, secret) {
				unauthorized(w)
				return
			}

			actor := strings.TrimSpace(r.Header.Get(actorHeader))
			if actor == "" {
				actor = defaultActor
			}
			if len(actor) > 64 {
				actor = actor[:64]
			}

			p := auth.Principal{FamilyID: familyID, Actor: actor}
			annotatePrincipal(r.Context(), p)
			ctx := auth.WithPrincipal(r.Context(), p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("token")
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="kidpoints"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}
