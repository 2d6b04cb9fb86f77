package mockserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/telearc/archive-console/internal/logger"
)

// Version is reported by the health and system-info endpoints.
const Version = "0.9.0-mock"

// Server is the mock archive backend.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	listener   net.Listener
	data       *Dataset
	hub        *Hub
	log        *logger.Logger

	// progressTick paces simulated task runs; tests shorten it.
	progressTick time.Duration
}

// NewServer wires the router around a dataset and a running hub.
func NewServer(data *Dataset, hub *Hub, log *logger.Logger) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		data:         data,
		hub:          hub,
		log:          log.Component("mockserver"),
		progressTick: 400 * time.Millisecond,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	// lets browser-based API tools poke the mock during development
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/api/health", s.handleHealth)

	s.router.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Route("/api/groups", func(r chi.Router) {
			r.Get("/", s.handleListGroups)
			r.Post("/", s.handleAddGroup)
			r.Patch("/{groupID}", s.handleUpdateGroup)
			r.Post("/{groupID}/sync", s.handleSyncGroup)
			r.Get("/{groupID}/messages", s.handleListMessages)
			r.Post("/{groupID}/messages", s.handleSendMessage)
			r.Delete("/{groupID}/messages/{messageID}", s.handleDeleteMessage)
		})

		r.Route("/api/rules", func(r chi.Router) {
			r.Get("/", s.handleListRules)
			r.Post("/", s.handleCreateRule)
			r.Get("/{ruleID}", s.handleGetRule)
			r.Put("/{ruleID}", s.handleUpdateRule)
			r.Delete("/{ruleID}", s.handleDeleteRule)
		})

		r.Route("/api/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/", s.handleCreateTask)
			r.Get("/{taskID}", s.handleGetTask)
			r.Put("/{taskID}", s.handleUpdateTask)
			r.Delete("/{taskID}", s.handleDeleteTask)
			r.Post("/{taskID}/start", s.handleStartTask)
			r.Post("/{taskID}/pause", s.handlePauseTask)
			r.Post("/{taskID}/stop", s.handleStopTask)
			r.Get("/{taskID}/runs", s.handleTaskRuns)
		})

		r.Route("/api/logs", func(r chi.Router) {
			r.Get("/", s.handleListLogs)
			r.Delete("/", s.handleClearLogs)
		})

		r.Route("/api/dashboard", func(r chi.Router) {
			r.Get("/overview", s.handleOverview)
			r.Get("/groups", s.handleGroupSummaries)
			r.Get("/activity", s.handleRecentActivity)
			r.Get("/downloads", s.handleDownloadStats)
			r.Get("/system", s.handleSystemInfo)
		})

		r.Get("/api/media/{messageID}/file", s.handleMediaFile)

		r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
			ServeWs(s.hub, w, r)
		})
	})
}

// requestLogger traces every request at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

// requireAuth accepts any non-empty bearer token. Verifying tokens against
// an account store is the production backend's job, not the mock's.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || token == "" || token == header {
			respondError(w, http.StatusUnauthorized, "missing or malformed bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Router exposes the handler tree for httptest servers.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start listens on the given port and serves until Stop.
func (s *Server) Start(port int) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.Serve(listener)
}

// Stop shuts the HTTP server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// BaseURL returns the address the server is reachable at.
func (s *Server) BaseURL() string {
	if s.listener != nil {
		return fmt.Sprintf("http://%s", s.listener.Addr().String())
	}
	return ""
}
