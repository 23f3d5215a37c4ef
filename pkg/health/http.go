package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aegislabs/aegis/pkg/types"
)

// HTTPChecker probes an external HTTP endpoint.
type HTTPChecker struct {
	// URL is the full URL to probe.
	URL string

	// Degraded marks a successful but slow response.
	Degraded time.Duration

	// Client is the HTTP client to use (allows custom configuration).
	Client *http.Client
}

// NewHTTPChecker creates an endpoint probe with a 5 s timeout. Non-2xx or a
// transport error is unhealthy; a 2xx slower than 2 s is degraded.
func NewHTTPChecker(url string) *HTTPChecker {
	return &HTTPChecker{
		URL:      url,
		Degraded: 2 * time.Second,
		Client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (h *HTTPChecker) Component() string {
	return "api:" + h.URL
}

func (h *HTTPChecker) Check(ctx context.Context) types.HealthResult {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return types.HealthResult{
			Component: h.Component(),
			Status:    types.StatusUnhealthy,
			Latency:   time.Since(start),
			Message:   fmt.Sprintf("failed to create request: %v", err),
			CheckedAt: start,
		}
	}

	resp, err := h.Client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return types.HealthResult{
			Component: h.Component(),
			Status:    types.StatusUnhealthy,
			Latency:   latency,
			Message:   fmt.Sprintf("request failed: %v", err),
			CheckedAt: start,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return types.HealthResult{
			Component: h.Component(),
			Status:    types.StatusUnhealthy,
			Latency:   latency,
			Message:   fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			CheckedAt: start,
		}
	}

	status := types.StatusHealthy
	message := fmt.Sprintf("HTTP %d in %v", resp.StatusCode, latency)
	if latency > h.Degraded {
		status = types.StatusDegraded
	}

	return types.HealthResult{
		Component: h.Component(),
		Status:    status,
		Latency:   latency,
		Message:   message,
		CheckedAt: start,
	}
}

// WithTimeout sets the HTTP client timeout.
func (h *HTTPChecker) WithTimeout(timeout time.Duration) *HTTPChecker {
	h.Client.Timeout = timeout
	return h
}
