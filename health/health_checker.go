// Package health provides health checking for the PBS authority API.
// Health is derived from the upstream probe snapshot: the service
// itself holds no data, so "healthy" means the catalog was reachable
// recently.
package health

import (
	"net/http"
	"runtime"
	"time"

	"github.com/giygas/pbs-authority-api/interfaces"
)

// Staleness thresholds for the last successful probe.
const (
	degradedAfter  = 2 * time.Hour
	unhealthyAfter = 12 * time.Hour
)

// HealthChecker reports service health from the probe status store.
type HealthChecker struct {
	statusStore interfaces.StatusStore
}

// NewHealthChecker creates a health checker with injected dependencies.
func NewHealthChecker(statusStore interfaces.StatusStore) *HealthChecker {
	return &HealthChecker{statusStore: statusStore}
}

// HealthCheck returns the health status, detail payload and HTTP status
// code for the /health endpoint.
func (h *HealthChecker) HealthCheck() (string, map[string]any, int) {
	snapshot := h.statusStore.GetSnapshot()
	lastSuccess := h.statusStore.GetLastSuccess()
	uptime := time.Since(h.statusStore.GetServerStartTime())

	var status string
	var httpStatus int
	switch {
	case lastSuccess.IsZero():
		// No successful probe yet; the service still works because
		// lookups talk to the catalog directly, so report degraded
		// rather than failing the check outright.
		status = "degraded"
		httpStatus = http.StatusOK
	case time.Since(lastSuccess) > unhealthyAfter:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	case time.Since(lastSuccess) > degradedAfter:
		status = "degraded"
		httpStatus = http.StatusOK
	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	details := map[string]any{
		"uptime_seconds": uptime.Seconds(),
		"system": map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       int(m.Alloc / 1024 / 1024),
				"total_alloc_mb": int(m.TotalAlloc / 1024 / 1024),
				"sys_mb":         int(m.Sys / 1024 / 1024),
				"num_gc":         m.NumGC,
			},
		},
		"upstream": map[string]any{
			"schedule_code":  snapshot.Schedule.Code,
			"effective_date": snapshot.Schedule.EffectiveDate,
			"last_probe":     snapshot.CheckedAt.Format(time.RFC3339),
			"last_success":   lastSuccess.Format(time.RFC3339),
			"probe_latency":  snapshot.Latency.String(),
			"probe_error":    snapshot.Error,
			"probe_running":  h.statusStore.IsProbing(),
		},
	}

	return status, details, httpStatus
}
