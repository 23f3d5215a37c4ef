package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/aegislabs/aegis/pkg/metrics"
	"github.com/aegislabs/aegis/pkg/types"
)

type createTaskRequest struct {
	Type         string         `json:"type"`
	Priority     string         `json:"priority"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Payload      map[string]any `json:"payload"`
	Dependencies []string       `json:"dependencies"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		metrics.GatewayRequests.WithLabelValues("task:create", "400").Inc()
		return
	}
	if req.Title == "" || req.Type == "" {
		writeError(w, http.StatusBadRequest, "type and title are required")
		metrics.GatewayRequests.WithLabelValues("task:create", "400").Inc()
		return
	}

	task, err := s.deps.Orchestrator.CreateTask(
		types.TaskType(req.Type), types.ParsePriority(req.Priority),
		req.Title, req.Description, req.Payload, req.Dependencies...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		metrics.GatewayRequests.WithLabelValues("task:create", "500").Inc()
		return
	}
	s.deps.Scheduler.Enqueue(task)

	metrics.GatewayRequests.WithLabelValues("task:create", "202").Inc()
	writeJSON(w, http.StatusAccepted, task)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	metrics.GatewayRequests.WithLabelValues("task:list", "200").Inc()
	writeJSON(w, http.StatusOK, s.deps.Orchestrator.Tasks())
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, ok := s.deps.Orchestrator.GetTask(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Scheduler.Cancel(r.PathValue("id")); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		metrics.GatewayRequests.WithLabelValues("task:cancel", "409").Inc()
		return
	}
	metrics.GatewayRequests.WithLabelValues("task:cancel", "200").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleReprioritize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Priority string `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.deps.Scheduler.Reprioritize(r.PathValue("id"), types.ParsePriority(req.Priority)); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reprioritized"})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	metrics.GatewayRequests.WithLabelValues("job:list", "200").Inc()
	writeJSON(w, http.StatusOK, s.deps.Scheduler.Jobs())
}

func (s *Server) handleToggleJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !s.deps.Scheduler.ToggleJob(r.PathValue("id"), req.Enabled) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	metrics.GatewayRequests.WithLabelValues("job:toggle", "200").Inc()
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Scheduler.RunJob(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	metrics.GatewayRequests.WithLabelValues("job:run", "202").Inc()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	processed, failed := s.deps.Scheduler.Stats()
	status := map[string]any{
		"version":         s.version,
		"uptime":          time.Since(s.started).Round(time.Second).String(),
		"queue_depth":     s.deps.Scheduler.QueueDepth(),
		"tasks_processed": processed,
		"tasks_failed":    failed,
		"ws_clients":      s.hub.clientCount(),
		"breakers":        s.deps.Breakers.States(),
	}
	if report := s.deps.Supervisor.LastReport(); report != nil {
		status["health"] = report
	}
	metrics.GatewayRequests.WithLabelValues("daemon:status", "200").Inc()
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleMemoryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Memory.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.GatewayRequests.WithLabelValues("memory:stats", "200").Inc()
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAuditVerify(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Ledger.VerifyChain()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		metrics.GatewayRequests.WithLabelValues("audit:verify", "500").Inc()
		return
	}
	metrics.GatewayRequests.WithLabelValues("audit:verify", "200").Inc()
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAuditRecent(w http.ResponseWriter, r *http.Request) {
	n := 50
	if raw := r.URL.Query().Get("n"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 1000 {
			n = parsed
		}
	}
	entries, err := s.deps.Ledger.Recent(n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.GatewayRequests.WithLabelValues("audit:recent", "200").Inc()
	writeJSON(w, http.StatusOK, entries)
}
