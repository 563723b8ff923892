// Package api provides the HTTP API server for the time capsule daemon.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/timecapsule/timecapsule/internal/core"
	"github.com/timecapsule/timecapsule/internal/delivery"
	"github.com/timecapsule/timecapsule/internal/logging"
	"github.com/timecapsule/timecapsule/internal/nudge"
	"github.com/timecapsule/timecapsule/internal/scheduler"
	"github.com/timecapsule/timecapsule/internal/storage"
)

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server

	// Components
	sched         *scheduler.Scheduler
	planner       *nudge.Planner
	hub           *delivery.Hub
	contextEngine core.ContextEngine

	// Stores
	reminders *storage.ReminderStore
	capsules  *storage.CapsuleStore
	nudges    *storage.NudgeStore
	timeline  *storage.TimelineStore

	log *logging.Logger
}

// Config for the server
type Config struct {
	Host          string
	Port          int
	DB            *storage.DB
	Scheduler     *scheduler.Scheduler
	Planner       *nudge.Planner
	Hub           *delivery.Hub // optional; enables /ws
	ContextEngine core.ContextEngine
}

// New creates a new API server
func New(cfg Config) *Server {
	engine := cfg.ContextEngine
	if engine == nil {
		engine = core.NeutralContext{}
	}

	s := &Server{
		sched:         cfg.Scheduler,
		planner:       cfg.Planner,
		hub:           cfg.Hub,
		contextEngine: engine,
		reminders:     storage.NewReminderStore(cfg.DB),
		capsules:      storage.NewCapsuleStore(cfg.DB),
		nudges:        storage.NewNudgeStore(cfg.DB),
		timeline:      storage.NewTimelineStore(cfg.DB),
		log:           logging.Component("api"),
	}

	s.setupRouter()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRouter configures all routes
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Scheduler
		r.Get("/scheduler/stats", s.handleSchedulerStats)
		r.Post("/scheduler/sweep", s.handleSweep)

		// Reminders
		r.Post("/reminders", s.handleCreateReminder)
		r.Get("/reminders/{reminderID}", s.handleGetReminder)
		r.Put("/reminders/{reminderID}/status", s.handleUpdateReminderStatus)
		r.Post("/reminders/{reminderID}/response", s.handleReminderResponse)

		// Time capsules
		r.Post("/capsules", s.handleCreateCapsule)
		r.Get("/capsules/{capsuleID}", s.handleGetCapsule)
		r.Get("/capsules/missed", s.handleMissedCapsules)

		// Nudges
		r.Post("/nudges/plan", s.handlePlanNudges)
		r.Get("/nudges/upcoming", s.handleUpcomingNudges)

		// Messages (timeline + contextual triggers)
		r.Post("/messages", s.handleMessage)
	})

	// WebSocket delivery stream
	if s.hub != nil {
		r.Get("/ws", s.hub.ServeHTTP)
	}

	s.router = r
}

// Router exposes the handler tree for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.log.Info("API server listening on http://%s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}
	return s.httpServer.Shutdown(ctx)
}

// --- Response helpers ---

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ok",
		"scheduler_running": s.sched.IsRunning(),
	})
}

func (s *Server) handleSchedulerStats(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.sched.GetStats())
}

// handleSweep runs one synchronous sweep cycle, the manual trigger used by
// operators and integration tests
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	s.sched.RunAllSweeps(r.Context())
	s.respondJSON(w, http.StatusOK, s.sched.GetStats())
}
