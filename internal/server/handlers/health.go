package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/Praises003/aether/internal/database"
	"github.com/Praises003/aether/internal/metrics"
	"github.com/Praises003/aether/internal/realtime"
)

// Check probes one dependency. A nil error means healthy.
type Check func(ctx context.Context) error

type HealthHandlers struct {
	db      *database.DB
	broker  *realtime.Broker
	checks  map[string]Check
	version string
}

// NewHealthHandlers creates health handlers. db and broker may be nil.
func NewHealthHandlers(db *database.DB, broker *realtime.Broker, version string) *HealthHandlers {
	return &HealthHandlers{
		db:      db,
		broker:  broker,
		checks:  make(map[string]Check),
		version: version,
	}
}

// AddCheck registers an extra component check. A failing check degrades
// overall health without making the service unavailable.
func (h *HealthHandlers) AddCheck(name string, check Check) {
	h.checks[name] = check
}

type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

type ComponentHealth struct {
	Status  HealthStatus `json:"status"`
	Latency string       `json:"latency,omitempty"`
	Message string       `json:"message,omitempty"`
}

type HealthResponse struct {
	Status     HealthStatus               `json:"status"`
	Version    string                     `json:"version"`
	Uptime     string                     `json:"uptime"`
	Timestamp  string                     `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
}

var startTime = time.Now()

const healthCheckTimeout = 5 * time.Second

// Health handles GET /health.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	components := make(map[string]ComponentHealth)
	overallStatus := HealthStatusHealthy

	if h.db != nil {
		dbHealth := runCheck(ctx, h.db.Ping)
		if dbHealth.Status != HealthStatusHealthy {
			dbHealth.Status = HealthStatusUnhealthy
			dbHealth.Message = "database ping failed"
			overallStatus = HealthStatusUnhealthy
		}
		components["database"] = dbHealth

		stats := h.db.Stats()
		metrics.UpdateDBStats(stats.OpenConnections, stats.InUse)
	}

	for name, check := range h.checks {
		c := runCheck(ctx, check)
		components[name] = c
		if c.Status != HealthStatusHealthy && overallStatus == HealthStatusHealthy {
			overallStatus = HealthStatusDegraded
		}
	}

	if h.broker != nil {
		components["receipt_stream"] = ComponentHealth{Status: HealthStatusHealthy}
	}

	resp := HealthResponse{
		Status:     overallStatus,
		Version:    h.version,
		Uptime:     time.Since(startTime).Round(time.Second).String(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: components,
	}

	status := http.StatusOK
	if overallStatus == HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	JSON(w, status, resp)
}

func runCheck(ctx context.Context, check Check) ComponentHealth {
	start := time.Now()
	err := check(ctx)
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  HealthStatusDegraded,
			Latency: latency.String(),
			Message: err.Error(),
		}
	}
	return ComponentHealth{
		Status:  HealthStatusHealthy,
		Latency: latency.String(),
	}
}

type RuntimeStats struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc_bytes"`
	MemSys       uint64 `json:"mem_sys_bytes"`
	NumGC        uint32 `json:"num_gc"`
}

// Stats handles GET /health/stats.
func (h *HealthHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	resp := map[string]any{
		"runtime": RuntimeStats{
			GoVersion:    runtime.Version(),
			NumGoroutine: runtime.NumGoroutine(),
			NumCPU:       runtime.NumCPU(),
			MemAlloc:     m.Alloc,
			MemSys:       m.Sys,
			NumGC:        m.NumGC,
		},
		"uptime": time.Since(startTime).Round(time.Second).String(),
	}

	if h.db != nil {
		dbStats := h.db.Stats()
		resp["database"] = map[string]any{
			"open_connections": dbStats.OpenConnections,
			"in_use":           dbStats.InUse,
			"idle":             dbStats.Idle,
			"max_open":         dbStats.MaxOpenConnections,
		}
	}

	if h.broker != nil {
		resp["receipt_stream"] = map[string]any{
			"connections":   h.broker.ClientCount(),
			"subscriptions": h.broker.SubscriptionCount(),
		}
	}

	JSON(w, http.StatusOK, resp)
}
