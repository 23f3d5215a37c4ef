package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aegislabs/aegis/pkg/audit"
	"github.com/aegislabs/aegis/pkg/breaker"
	"github.com/aegislabs/aegis/pkg/bus"
	"github.com/aegislabs/aegis/pkg/events"
	"github.com/aegislabs/aegis/pkg/healing"
	"github.com/aegislabs/aegis/pkg/memory"
	"github.com/aegislabs/aegis/pkg/orchestrator"
	"github.com/aegislabs/aegis/pkg/scheduler"
	"github.com/aegislabs/aegis/pkg/storage"
	"github.com/aegislabs/aegis/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, secret string) (*Server, *orchestrator.Orchestrator) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	orch := orchestrator.New(store, broker, nil, memory.New(store, broker), nil)
	sched := scheduler.New(orch, store, broker, scheduler.Config{Workers: 1})
	sched.InstallDefaultJobs()
	breakers := breaker.NewRegistry()
	supervisor := healing.NewSupervisor(nil, breakers, broker, healing.Config{})

	s := NewServer("127.0.0.1:0", secret, "test", Deps{
		Scheduler:    sched,
		Orchestrator: orch,
		Ledger:       audit.NewLedger(store),
		Memory:       memory.New(store, broker),
		Breakers:     breakers,
		Supervisor:   supervisor,
		Broker:       broker,
		Bus:          bus.New(broker),
	})
	s.started = time.Now()
	return s, orch
}

func TestHealthzOpen(t *testing.T) {
	s, _ := newTestServer(t, "sekrit")

	rec := httptest.NewRecorder()
	s.handleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestAuthenticatedRejectsMissingBearer(t *testing.T) {
	s, _ := newTestServer(t, "sekrit")
	handler := s.authenticated(s.handleStatus)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticatedAcceptsQueryToken(t *testing.T) {
	s, _ := newTestServer(t, "sekrit")
	handler := s.authenticated(s.handleStatus)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status?token=sekrit", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNoSecretDisablesAuth(t *testing.T) {
	s, _ := newTestServer(t, "")
	handler := s.authenticated(s.handleStatus)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateTask(t *testing.T) {
	s, orch := newTestServer(t, "")

	body := `{"type":"research","priority":"high","title":"survey vendors"}`
	rec := httptest.NewRecorder()
	s.handleCreateTask(rec, httptest.NewRequest(http.MethodPost, "/v1/tasks", strings.NewReader(body)))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	var task types.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, types.PriorityHigh, task.Priority)

	_, ok := orch.GetTask(task.ID)
	assert.True(t, ok)
}

func TestCreateTaskValidation(t *testing.T) {
	s, _ := newTestServer(t, "")

	rec := httptest.NewRecorder()
	s.handleCreateTask(rec, httptest.NewRequest(http.MethodPost, "/v1/tasks", strings.NewReader(`{"type":"research"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	s.handleCreateTask(rec, httptest.NewRequest(http.MethodPost, "/v1/tasks", strings.NewReader("not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTaskNotFound(t *testing.T) {
	s, _ := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/v1/tasks/missing", nil)
	req.SetPathValue("id", "missing")
	rec := httptest.NewRecorder()
	s.handleGetTask(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAndToggleJobs(t *testing.T) {
	s, _ := newTestServer(t, "")

	rec := httptest.NewRecorder()
	s.handleListJobs(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var jobs []*types.ScheduledJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	assert.Len(t, jobs, 7)

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/health-check/toggle", strings.NewReader(`{"enabled":false}`))
	req.SetPathValue("id", "health-check")
	rec = httptest.NewRecorder()
	s.handleToggleJob(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/jobs/nope/toggle", strings.NewReader(`{"enabled":true}`))
	req.SetPathValue("id", "nope")
	rec = httptest.NewRecorder()
	s.handleToggleJob(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusReportsQueueAndBreakers(t *testing.T) {
	s, _ := newTestServer(t, "")

	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "test", status["version"])
	assert.EqualValues(t, 0, status["queue_depth"])
	assert.Contains(t, status, "breakers")
}

func TestAuditVerifyAndRecent(t *testing.T) {
	s, _ := newTestServer(t, "")

	_, err := s.deps.Ledger.Record("daemon", "daemon.start", "aegisd", nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.handleAuditVerify(rec, httptest.NewRequest(http.MethodPost, "/v1/audit/verify", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var verify audit.VerifyResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verify))
	assert.True(t, verify.Valid)
	assert.EqualValues(t, 1, verify.TotalEntries)

	rec = httptest.NewRecorder()
	s.handleAuditRecent(rec, httptest.NewRequest(http.MethodGet, "/v1/audit/recent?n=5", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var entries []*types.AuditEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Len(t, entries, 1)
}
