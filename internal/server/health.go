package server

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/meetsched/meetsched/internal/session"
)

// Health status constants for probe responses.
const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
)

// HealthChecker serves the Kubernetes-style liveness and readiness
// probes for the main listener.
type HealthChecker struct {
	// ready indicates whether the server is ready to receive traffic
	ready atomic.Bool
	// isShutdown reports whether a graceful shutdown is in progress
	isShutdown func() bool
	// sessions is inspected by the detailed endpoint
	sessions *session.Manager
	// startTime tracks when the server started
	startTime time.Time
}

// NewHealthChecker creates a HealthChecker. The server starts not ready
// and is flipped by Start once the listener is up.
func NewHealthChecker(sessions *session.Manager, isShutdown func() bool) *HealthChecker {
	return &HealthChecker{
		isShutdown: isShutdown,
		sessions:   sessions,
		startTime:  time.Now(),
	}
}

// SetReady sets the readiness state of the server.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns whether the server is ready to receive traffic.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

func (h *HealthChecker) shuttingDown() bool {
	return h.isShutdown != nil && h.isShutdown()
}

// HealthResponse represents the JSON response for health endpoints.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse provides comprehensive health information.
type DetailedHealthResponse struct {
	Status         string `json:"status"`
	Uptime         string `json:"uptime"`
	ActiveSessions int    `json:"activeSessions"`
}

// HandleHealthz is the liveness probe. It only confirms the process is
// serving requests.
func (h *HealthChecker) HandleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(HealthResponse{Status: healthStatusOK})
}

// HandleReadyz is the readiness probe: ready and not shutting down.
func (h *HealthChecker) HandleReadyz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	checks := make(map[string]string)
	allOk := true

	if h.ready.Load() {
		checks["ready"] = healthStatusOK
	} else {
		checks["ready"] = healthStatusNotReady
		allOk = false
	}

	if h.shuttingDown() {
		checks["shutdown"] = healthStatusShuttingDown
		allOk = false
	} else {
		checks["shutdown"] = healthStatusOK
	}

	response := HealthResponse{Checks: checks}
	if allOk {
		response.Status = healthStatusOK
		w.WriteHeader(http.StatusOK)
	} else {
		response.Status = healthStatusNotReady
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	_ = json.NewEncoder(w).Encode(response)
}

// HandleDetailed reports overall status plus uptime and the live
// session count.
func (h *HealthChecker) HandleDetailed(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	response := DetailedHealthResponse{
		Status: healthStatusOK,
		Uptime: time.Since(h.startTime).Truncate(time.Second).String(),
	}
	if h.sessions != nil {
		response.ActiveSessions = h.sessions.ActiveSessions()
	}

	if !h.ready.Load() {
		response.Status = healthStatusNotReady
		w.WriteHeader(http.StatusServiceUnavailable)
	} else if h.shuttingDown() {
		response.Status = healthStatusShuttingDown
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	_ = json.NewEncoder(w).Encode(response)
}
