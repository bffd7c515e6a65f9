package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthStatus represents the overall health of the system
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentStatus represents the health of an individual component
type ComponentStatus string

const (
	ComponentStatusUp       ComponentStatus = "up"
	ComponentStatusDown     ComponentStatus = "down"
	ComponentStatusDegraded ComponentStatus = "degraded"
)

// Health represents the complete health check response
type Health struct {
	Status     HealthStatus               `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents the health of a single system component
type ComponentHealth struct {
	Status    ComponentStatus `json:"status"`
	Message   string          `json:"message,omitempty"`
	LatencyMs float64         `json:"latency_ms,omitempty"`
	Details   any             `json:"details,omitempty"`
}

const (
	healthCheckTimeout   = 5 * time.Second
	storageSlowThreshold = 2 * time.Second
	dbSlowThreshold      = time.Second
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// HandleHealth reports per-component health. Degraded still answers 200.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.checkHealth(r.Context())

	statusCode := http.StatusOK
	if health.Status == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, health)
}

// HandleReady answers 200 once the Storage Root (and database, when
// configured) respond.
func (s *Server) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := s.root.List(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "not_ready",
			"message": "storage unavailable",
		})
		return
	}
	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "not_ready",
				"message": "database unavailable",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// HandleLive provides a liveness probe (is the process running?)
func (s *Server) HandleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) checkHealth(ctx context.Context) Health {
	health := Health{
		Timestamp:  time.Now(),
		Version:    s.build.Version,
		Components: make(map[string]ComponentHealth),
	}

	health.Components["storage"] = s.checkStorageHealth(ctx)
	if s.db != nil {
		health.Components["database"] = s.checkDatabaseHealth(ctx)
	}

	health.Status = determineOverallHealth(health.Components)
	return health
}

// checkStorageHealth lists the Storage Root and reports how long it took.
func (s *Server) checkStorageHealth(ctx context.Context) ComponentHealth {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	entries, err := s.root.List(ctx)
	if err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDown,
			Message: "storage list failed: " + err.Error(),
		}
	}

	latency := time.Since(start)
	status := ComponentStatusUp
	message := "storage healthy"
	if latency > storageSlowThreshold {
		status = ComponentStatusDegraded
		message = "storage latency high"
	}

	return ComponentHealth{
		Status:    status,
		Message:   message,
		LatencyMs: float64(latency.Milliseconds()),
		Details:   map[string]any{"entries": len(entries)},
	}
}

// checkDatabaseHealth checks PostgreSQL connectivity
func (s *Server) checkDatabaseHealth(ctx context.Context) ComponentHealth {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return ComponentHealth{
			Status:  ComponentStatusDown,
			Message: "database ping failed: " + err.Error(),
		}
	}

	latency := time.Since(start)
	stats := s.db.Stats()
	details := map[string]any{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"wait_count":       stats.WaitCount,
		"wait_duration_ms": stats.WaitDuration.Milliseconds(),
	}

	status := ComponentStatusUp
	message := "database healthy"
	if latency > dbSlowThreshold {
		status = ComponentStatusDegraded
		message = "database latency high"
	}

	return ComponentHealth{
		Status:    status,
		Message:   message,
		LatencyMs: float64(latency.Milliseconds()),
		Details:   details,
	}
}

// determineOverallHealth calculates overall health from component statuses
func determineOverallHealth(components map[string]ComponentHealth) HealthStatus {
	var downCount, degradedCount int
	for _, component := range components {
		switch component.Status {
		case ComponentStatusDown:
			downCount++
		case ComponentStatusDegraded:
			degradedCount++
		}
	}

	if downCount > 0 {
		return HealthStatusUnhealthy
	}
	if degradedCount > 0 {
		return HealthStatusDegraded
	}
	return HealthStatusHealthy
}
