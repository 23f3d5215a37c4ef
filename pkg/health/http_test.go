package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aegislabs/aegis/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestHTTPCheckerHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := NewHTTPChecker(srv.URL).Check(context.Background())
	assert.Equal(t, types.StatusHealthy, result.Status)
	assert.Equal(t, "api:"+srv.URL, result.Component)
}

func TestHTTPCheckerUnhealthyStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	result := NewHTTPChecker(srv.URL).Check(context.Background())
	assert.Equal(t, types.StatusUnhealthy, result.Status)
	assert.Contains(t, result.Message, "500")
}

func TestHTTPCheckerConnectionRefused(t *testing.T) {
	result := NewHTTPChecker("http://127.0.0.1:1").WithTimeout(time.Second).Check(context.Background())
	assert.Equal(t, types.StatusUnhealthy, result.Status)
}

func TestHTTPCheckerDegradedOnSlowResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	checker := NewHTTPChecker(srv.URL)
	checker.Degraded = 10 * time.Millisecond

	result := checker.Check(context.Background())
	assert.Equal(t, types.StatusDegraded, result.Status)
}

func TestProcessAndMemoryCheckers(t *testing.T) {
	// A small test process should report healthy on both probes.
	result := NewProcessChecker().Check(context.Background())
	assert.Equal(t, "process", result.Component)
	assert.Equal(t, types.StatusHealthy, result.Status)

	result = NewMemoryChecker().Check(context.Background())
	assert.Equal(t, "memory_pressure", result.Component)
	assert.Equal(t, types.StatusHealthy, result.Status)
}

func TestMemoryCheckerWithLimit(t *testing.T) {
	c := NewMemoryCheckerWithLimit(400 << 20)
	assert.Equal(t, uint64(400<<20), c.UnhealthyBytes)
	assert.Equal(t, uint64(300<<20), c.DegradedBytes)

	// A zero limit keeps the defaults.
	c = NewMemoryCheckerWithLimit(0)
	assert.Equal(t, uint64(512<<20), c.UnhealthyBytes)
	assert.Equal(t, uint64(384<<20), c.DegradedBytes)
}

func TestSchedChecker(t *testing.T) {
	result := NewSchedChecker().Check(context.Background())
	assert.Equal(t, "event_loop", result.Component)
	assert.NotEqual(t, types.StatusUnhealthy, result.Status)
}
