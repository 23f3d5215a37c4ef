package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/aegislabs/aegis/pkg/audit"
	"github.com/aegislabs/aegis/pkg/breaker"
	"github.com/aegislabs/aegis/pkg/bus"
	"github.com/aegislabs/aegis/pkg/events"
	"github.com/aegislabs/aegis/pkg/healing"
	"github.com/aegislabs/aegis/pkg/log"
	"github.com/aegislabs/aegis/pkg/memory"
	"github.com/aegislabs/aegis/pkg/metrics"
	"github.com/aegislabs/aegis/pkg/orchestrator"
	"github.com/aegislabs/aegis/pkg/scheduler"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Deps wires the gateway to the subsystems it exposes.
type Deps struct {
	Scheduler    *scheduler.Scheduler
	Orchestrator *orchestrator.Orchestrator
	Ledger       *audit.Ledger
	Memory       *memory.Memory
	Breakers     *breaker.Registry
	Supervisor   *healing.Supervisor
	Broker       *events.Broker
	Bus          *bus.Bus
}

// Server is the HTTP and websocket control surface of the daemon.
type Server struct {
	addr    string
	secret  string
	version string
	deps    Deps

	hub      *hub
	limiter  *rate.Limiter
	upgrader websocket.Upgrader
	srv      *http.Server
	logger   zerolog.Logger
	started  time.Time
}

// NewServer creates the gateway. A non-empty secret enables bearer auth on
// every route except /healthz.
func NewServer(addr, secret, version string, deps Deps) *Server {
	return &Server{
		addr:    addr,
		secret:  secret,
		version: version,
		deps:    deps,
		hub:     newHub(deps.Broker),
		limiter: rate.NewLimiter(rate.Limit(20), 40),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: log.WithComponent("gateway"),
	}
}

// Start begins serving. Non-blocking; errors after bind are logged.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", s.authenticated(metrics.Handler().ServeHTTP))
	mux.Handle("GET /v1/events", s.authenticated(s.handleEvents))

	mux.Handle("POST /v1/tasks", s.authenticated(s.handleCreateTask))
	mux.Handle("GET /v1/tasks", s.authenticated(s.handleListTasks))
	mux.Handle("GET /v1/tasks/{id}", s.authenticated(s.handleGetTask))
	mux.Handle("POST /v1/tasks/{id}/cancel", s.authenticated(s.handleCancelTask))
	mux.Handle("POST /v1/tasks/{id}/priority", s.authenticated(s.handleReprioritize))

	mux.Handle("GET /v1/jobs", s.authenticated(s.handleListJobs))
	mux.Handle("POST /v1/jobs/{id}/toggle", s.authenticated(s.handleToggleJob))
	mux.Handle("POST /v1/jobs/{id}/run", s.authenticated(s.handleRunJob))

	mux.Handle("GET /v1/status", s.authenticated(s.handleStatus))
	mux.Handle("GET /v1/memory/stats", s.authenticated(s.handleMemoryStats))
	mux.Handle("POST /v1/audit/verify", s.authenticated(s.handleAuditVerify))
	mux.Handle("GET /v1/audit/recent", s.authenticated(s.handleAuditRecent))

	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket connections are long-lived
	}
	s.started = time.Now()
	s.hub.run()

	go func() {
		s.logger.Info().Str("addr", s.addr).Msg("gateway listening")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("gateway server failed")
		}
	}()
	return nil
}

// Stop shuts the server down, closing websocket clients first.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.shutdown()
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// authenticated wraps a handler with rate limiting and bearer auth.
func (s *Server) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		if s.secret != "" && !s.authorized(r) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	})
}

func (s *Server) authorized(r *http.Request) bool {
	token := r.URL.Query().Get("token")
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		token = strings.TrimPrefix(auth, "Bearer ")
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.secret)) == 1
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if report := s.deps.Supervisor.LastReport(); report != nil {
		if report.Unhealthy > 0 {
			status = "unhealthy"
		} else if report.Degraded > 0 {
			status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": s.version,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	if !s.hub.add(conn) {
		conn.Close()
		return
	}

	// Read pump: discard client frames, detect disconnect.
	go func() {
		defer s.hub.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
