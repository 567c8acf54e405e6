package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/kidpoints/internal/auth"
	"github.com/dukerupert/kidpoints/internal/database"
	"github.com/dukerupert/kidpoints/internal/store"
)

func setupAuthMiddlewareDB(t *testing.T) (*store.FamilyStore, int64, string) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	fs := store.NewFamilyStore(db)
	f, err := fs.Create("Hobbs", "owner-1")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	token, hash, err := auth.NewToken(f.ID)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if err := fs.SetTokenHash(f.ID, hash); err != nil {
		t.Fatalf("set token hash: %v", err)
	}
	return fs, f.ID, token
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRequireFamilyNoToken(t *testing.T) {
	fs, _, _ := setupAuthMiddlewareDB(t)

	handler := RequireFamily(fs, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireFamilyInvalidToken(t *testing.T) {
	fs, _, token := setupAuthMiddlewareDB(t)

	handler := RequireFamily(fs, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	_, secret, _ := auth.ParseToken(token)
	cases := []string{
		"Bearer not-a-token",
		"Bearer " + token + "x",
		"Bearer 999." + secret,
		"Basic " + token,
	}
	for _, h := range cases {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", h)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Authorization %q: status = %d, want %d", h, rec.Code, http.StatusUnauthorized)
		}
	}
}

func TestRequireFamilyValidToken(t *testing.T) {
	fs, familyID, token := setupAuthMiddlewareDB(t)

	var got auth.Principal
	handler := RequireFamily(fs, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.FromContext(r.Context())
		if !ok {
			t.Fatal("expected Principal in request context")
		}
		got = p
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Actor", "mom")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got.FamilyID != familyID {
		t.Errorf("FamilyID = %d, want %d", got.FamilyID, familyID)
	}
	if got.Actor != "mom" {
		t.Errorf("Actor = %q, want %q", got.Actor, "mom")
	}
}

func TestRequireFamilyDefaultActorAndQueryToken(t *testing.T) {
	fs, _, token := setupAuthMiddlewareDB(t)

	var actor string
	handler := RequireFamily(fs, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor = auth.Actor(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/ws?token="+token, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if actor != "parent" {
		t.Errorf("Actor = %q, want %q", actor, "parent")
	}
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if seen == "" {
		t.Fatal("expected a generated request id")
	}
	if rec.Header().Get("X-Request-ID") != seen {
		t.Errorf("header = %q, want %q", rec.Header().Get("X-Request-ID"), seen)
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "upstream-42")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if seen != "upstream-42" {
		t.Errorf("request id = %q, want upstream-42", seen)
	}
}
