package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/backmon-io/backmon/pkg/backupfs"
	"github.com/backmon-io/backmon/pkg/catalog/store"
)

// HealthCheckTimeout is the maximum time allowed for health check operations.
// This timeout applies to catalogue and storage checks to prevent a slow
// database or a hung NFS mount from blocking health probes indefinitely.
const HealthCheckTimeout = 5 * time.Second

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness probe: Is the server process running?
//   - Readiness probe: Is the catalogue reachable?
//   - Storage health: Detailed status of the catalogue and both storage roots
type HealthHandler struct {
	store     store.Store
	staging   *backupfs.Gateway
	validated *backupfs.Gateway
	startTime time.Time
}

// NewHealthHandler creates a new health handler.
//
// Any dependency may be nil, in which case the corresponding readiness
// and storage checks report unhealthy.
func NewHealthHandler(st store.Store, staging, validated *backupfs.Gateway) *HealthHandler {
	return &HealthHandler{
		store:     st,
		staging:   staging,
		validated: validated,
		startTime: time.Now(),
	}
}

// Liveness handles GET /health - simple liveness probe.
//
// Returns 200 OK if the server process is running. This endpoint is designed
// for Kubernetes liveness probes and should always succeed as long as the
// HTTP server is responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startTime)
	writeJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{
		"service":    "backmon",
		"started_at": h.startTime.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
		"uptime_sec": int64(uptime.Seconds()),
	}))
}

// Readiness handles GET /health/ready - readiness probe.
// Returns 200 OK if the catalogue store answers a health check.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("catalogue store not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	if err := h.store.Healthcheck(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{
		"catalogue": "healthy",
	}))
}

// ComponentHealth represents the health status of a single component.
type ComponentHealth struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Status  string `json:"status"`
	Path    string `json:"path,omitempty"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// StorageResponse represents the detailed storage health response.
type StorageResponse struct {
	Catalogue ComponentHealth   `json:"catalogue"`
	Storage   []ComponentHealth `json:"storage"`
}

// Storage handles GET /health/storage - detailed component health.
//
// Checks the catalogue store plus the staging and validated storage
// roots. Returns 200 OK when everything is healthy, 503 Service
// Unavailable otherwise.
func (h *HealthHandler) Storage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	allHealthy := true

	catalogue := ComponentHealth{Name: "catalogue", Type: "database"}
	if h.store == nil {
		catalogue.Status = "unhealthy"
		catalogue.Error = "not initialized"
		allHealthy = false
	} else {
		start := time.Now()
		err := h.store.Healthcheck(ctx)
		catalogue.Latency = time.Since(start).String()
		if err != nil {
			catalogue.Status = "unhealthy"
			catalogue.Error = err.Error()
			allHealthy = false
		} else {
			catalogue.Status = "healthy"
		}
	}

	response := StorageResponse{
		Catalogue: catalogue,
		Storage:   make([]ComponentHealth, 0, 2),
	}

	for _, root := range []struct {
		name string
		gw   *backupfs.Gateway
	}{
		{"staging", h.staging},
		{"validated", h.validated},
	} {
		health := ComponentHealth{Name: root.name, Type: "filesystem"}
		if root.gw == nil {
			health.Status = "unhealthy"
			health.Error = "not initialized"
			allHealthy = false
			response.Storage = append(response.Storage, health)
			continue
		}

		health.Path = root.gw.Root()
		start := time.Now()
		_, err := root.gw.Stat(ctx, ".")
		health.Latency = time.Since(start).String()
		if err != nil {
			health.Status = "unhealthy"
			health.Error = err.Error()
			allHealthy = false
		} else {
			health.Status = "healthy"
		}

		response.Storage = append(response.Storage, health)
	}

	if allHealthy {
		writeJSON(w, http.StatusOK, healthyResponse(response))
	} else {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponseWithData(response))
	}
}
