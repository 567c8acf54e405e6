package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/kidpoints/internal/archive"
	"github.com/dukerupert/kidpoints/internal/engine"
	"github.com/dukerupert/kidpoints/internal/handler"
	"github.com/dukerupert/kidpoints/internal/middleware"
	"github.com/dukerupert/kidpoints/internal/store"
	ws "github.com/dukerupert/kidpoints/internal/websocket"
)

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	familyStore  *store.FamilyStore
	familyH      *handler.FamilyHandler
	kidH         *handler.KidHandler
	templateH    *handler.TemplateHandler
	assignmentH  *handler.AssignmentHandler
	rewardH      *handler.RewardHandler
	redemptionH  *handler.RedemptionHandler
	taskH        *handler.TaskHandler
	ledgerH      *handler.LedgerHandler
	rateLimiter  *middleware.RateLimiter
	authFailures *middleware.RateLimiter
	logger       *slog.Logger
}

func New(db *sql.DB, eng *engine.Engine, hub *ws.Hub, exporter *archive.Exporter, logger *slog.Logger) *Server {
	familyStore := store.NewFamilyStore(db)
	kidStore := store.NewKidStore(db)
	templateStore := store.NewTaskTemplateStore(db)
	assignmentStore := store.NewAssignmentStore(db)
	rewardStore := store.NewRewardStore(db)

	guard := handler.NewGuard(kidStore, templateStore, rewardStore, logger.With("component", "guard"))

	return &Server{
		db:           db,
		hub:          hub,
		familyStore:  familyStore,
		familyH:      handler.NewFamilyHandler(familyStore, logger.With("component", "family")),
		kidH:         handler.NewKidHandler(kidStore, guard, logger.With("component", "kid")),
		templateH:    handler.NewTemplateHandler(templateStore, guard, logger.With("component", "template")),
		assignmentH:  handler.NewAssignmentHandler(assignmentStore, guard, eng.Today, logger.With("component", "assignment")),
		rewardH:      handler.NewRewardHandler(rewardStore, guard, logger.With("component", "reward")),
		redemptionH:  handler.NewRedemptionHandler(eng, rewardStore, guard, logger.With("component", "redemption")),
		taskH:        handler.NewTaskHandler(eng, guard, logger.With("component", "task")),
		ledgerH:      handler.NewLedgerHandler(eng, exporter, guard, logger.With("component", "ledger")),
		rateLimiter:  middleware.NewRateLimiter(),
		authFailures: middleware.NewRateLimiter(),
		logger:       logger,
	}
}

// RateLimiters returns the limiters so the caller can run their cleanup.
func (s *Server) RateLimiters() []*middleware.RateLimiter {
	return []*middleware.RateLimiter{s.rateLimiter, s.authFailures}
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("POST /api/families", s.rateLimitedHandler(s.familyH.Create))

	// Protected routes, wrapped with RequireFamily
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireFamily(s.familyStore, s.logger.With("component", "auth"))
	outerMux.Handle("/", s.limitAuthFailures(authMiddleware(protectedMux)))

	return middleware.RequestID(middleware.RequestLogger(s.logger.With("component", "http"))(outerMux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{"status": status, "ws_clients": s.hub.ClientCount()})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

// limitAuthFailures blocks a client IP after repeated 401s so tokens cannot
// be guessed at full speed.
func (s *Server) limitAuthFailures(next http.Handler) http.Handler {
	const (
		maxFailures = 20
		window      = 5 * time.Minute
	)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := middleware.RealIP(r)
		if s.authFailures.Count(ip) >= maxFailures {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": "too many failed attempts"})
			return
		}
		rec := &failureRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == http.StatusUnauthorized {
			s.authFailures.Allow(ip, maxFailures, window)
		}
	})
}

type failureRecorder struct {
	http.ResponseWriter
	status int
}

func (r *failureRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets the websocket upgrade reach the underlying connection.
func (r *failureRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Family
	mux.HandleFunc("GET /api/family", s.familyH.Get)
	mux.HandleFunc("PUT /api/family", s.familyH.Update)
	mux.HandleFunc("DELETE /api/family", s.familyH.Delete)
	mux.HandleFunc("POST /api/family/token", s.familyH.RotateToken)
	mux.HandleFunc("GET /api/leaderboard", s.ledgerH.Leaderboard)

	// Kids
	mux.HandleFunc("POST /api/kids", s.kidH.Create)
	mux.HandleFunc("GET /api/kids", s.kidH.List)
	mux.HandleFunc("GET /api/kids/{id}", s.kidH.Get)
	mux.HandleFunc("PUT /api/kids/{id}", s.kidH.Update)
	mux.HandleFunc("DELETE /api/kids/{id}", s.kidH.Delete)

	// Task templates
	mux.HandleFunc("POST /api/templates", s.templateH.Create)
	mux.HandleFunc("GET /api/templates", s.templateH.List)
	mux.HandleFunc("GET /api/templates/{id}", s.templateH.Get)
	mux.HandleFunc("PUT /api/templates/{id}", s.templateH.Update)
	mux.HandleFunc("DELETE /api/templates/{id}", s.templateH.Delete)

	// Assignments
	mux.HandleFunc("POST /api/kids/{id}/assignments", s.assignmentH.Create)
	mux.HandleFunc("GET /api/kids/{id}/assignments", s.assignmentH.ListForKid)
	mux.HandleFunc("GET /api/assignments", s.assignmentH.List)
	mux.HandleFunc("GET /api/assignments/{id}", s.assignmentH.Get)
	mux.HandleFunc("PUT /api/assignments/{id}", s.assignmentH.Update)
	mux.HandleFunc("DELETE /api/assignments/{id}", s.assignmentH.Delete)

	// Daily tasks
	mux.HandleFunc("POST /api/tasks/generate", s.taskH.Generate)
	mux.HandleFunc("GET /api/kids/{id}/tasks", s.taskH.ListForDate)
	mux.HandleFunc("GET /api/kids/{id}/calendar", s.taskH.Calendar)
	mux.HandleFunc("POST /api/kids/{id}/tasks/{template_id}/complete", s.taskH.Complete)

	// Ledger and bonuses
	mux.HandleFunc("GET /api/kids/{id}/balance", s.ledgerH.Balance)
	mux.HandleFunc("GET /api/kids/{id}/history", s.ledgerH.History)
	mux.HandleFunc("POST /api/kids/{id}/adjustments", s.ledgerH.Adjust)
	mux.HandleFunc("POST /api/kids/{id}/export", s.ledgerH.Export)
	mux.HandleFunc("GET /api/kids/{id}/bonus/{period}", s.ledgerH.BonusEligibility)
	mux.HandleFunc("POST /api/kids/{id}/bonus/{period}", s.ledgerH.GrantBonus)

	// Rewards
	mux.HandleFunc("POST /api/rewards", s.rewardH.Create)
	mux.HandleFunc("GET /api/rewards", s.rewardH.List)
	mux.HandleFunc("GET /api/rewards/{id}", s.rewardH.Get)
	mux.HandleFunc("PUT /api/rewards/{id}", s.rewardH.Update)
	mux.HandleFunc("DELETE /api/rewards/{id}", s.rewardH.Delete)
	mux.HandleFunc("GET /api/kids/{id}/rewards", s.rewardH.ListForKid)

	// Redemptions
	mux.HandleFunc("POST /api/kids/{id}/redemptions", s.redemptionH.Request)
	mux.HandleFunc("GET /api/kids/{id}/redemptions", s.redemptionH.ListForKid)
	mux.HandleFunc("GET /api/redemptions", s.redemptionH.List)
	mux.HandleFunc("GET /api/redemptions/{id}", s.redemptionH.Get)
	mux.HandleFunc("POST /api/redemptions/{id}/decide", s.redemptionH.Decide)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))
}
