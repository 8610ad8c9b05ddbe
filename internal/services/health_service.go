package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/tomdowns/cbatool/internal/config"
	"github.com/tomdowns/cbatool/internal/operations"
	"github.com/tomdowns/cbatool/internal/websocket"
)

const (
	healthOK       = "ok"
	healthDegraded = "degraded"
)

// HealthService aggregates component health for the monitoring
// endpoints. Missing collaborators degrade the report instead of
// failing it, so a partially wired test server still answers.
type HealthService struct {
	cfg       *config.Config
	manager   *operations.Manager
	hub       *websocket.Hub
	startTime time.Time
	logger    *slog.Logger
}

// NewHealthService creates a health service over the given
// collaborators. Any of them may be nil.
func NewHealthService(cfg *config.Config, manager *operations.Manager, hub *websocket.Hub, logger *slog.Logger) *HealthService {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &HealthService{
		cfg:       cfg,
		manager:   manager,
		hub:       hub,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthStatus is the health endpoint response.
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Uptime    string                   `json:"uptime"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth reports one component's health.
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// SystemStats is the stats endpoint response.
type SystemStats struct {
	UptimeSeconds    float64 `json:"uptime_seconds"`
	WebSocketClients int     `json:"websocket_clients"`
	ActiveOperations int     `json:"active_operations"`
	TotalOperations  int     `json:"total_operations"`
	GoVersion        string  `json:"go_version"`
	OS               string  `json:"os"`
	Arch             string  `json:"arch"`
}

// HealthCheck returns the overall health status. The status is ok only
// when every component check passes.
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	components := map[string]ServiceHealth{
		"operations": hs.checkOperations(),
		"websocket":  hs.checkWebSocket(),
		"storage":    hs.checkStorage(),
	}

	status := healthOK
	for _, c := range components {
		if c.Status != healthOK {
			status = healthDegraded
			break
		}
	}

	hs.logger.DebugContext(ctx, "health check completed",
		slog.String("status", status))

	return HealthStatus{
		Status:    status,
		Timestamp: time.Now(),
		Version:   config.AppVersion,
		Uptime:    time.Since(hs.startTime).Truncate(time.Second).String(),
		Services:  components,
	}
}

// Version returns build identification for the version endpoint.
func (hs *HealthService) Version() map[string]any {
	return map[string]any{
		"name":       config.AppName,
		"version":    config.AppVersion,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	}
}

// SystemStats returns runtime counters for the stats endpoint.
func (hs *HealthService) SystemStats(ctx context.Context) SystemStats {
	stats := SystemStats{
		UptimeSeconds: time.Since(hs.startTime).Seconds(),
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
	}
	if hs.hub != nil {
		stats.WebSocketClients = hs.hub.ClientCount()
	}
	if hs.manager != nil {
		snaps := hs.manager.List()
		stats.TotalOperations = len(snaps)
		for _, snap := range snaps {
			if !snap.Status.Terminal() {
				stats.ActiveOperations++
			}
		}
	}
	return stats
}

func (hs *HealthService) checkOperations() ServiceHealth {
	if hs.manager == nil {
		return ServiceHealth{
			Status:  healthDegraded,
			Message: "operations manager not configured",
		}
	}

	running := 0
	for _, snap := range hs.manager.List() {
		if !snap.Status.Terminal() {
			running++
		}
	}
	return ServiceHealth{
		Status:  healthOK,
		Message: fmt.Sprintf("%d operation(s) running", running),
	}
}

func (hs *HealthService) checkWebSocket() ServiceHealth {
	if hs.hub == nil {
		return ServiceHealth{
			Status:  healthDegraded,
			Message: "websocket hub not configured",
		}
	}
	return ServiceHealth{
		Status:  healthOK,
		Message: fmt.Sprintf("%d client(s) connected", hs.hub.ClientCount()),
	}
}

func (hs *HealthService) checkStorage() ServiceHealth {
	dir := hs.cfg.GetOutputDir()
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		if mkErr := os.MkdirAll(dir, 0755); mkErr != nil {
			return ServiceHealth{
				Status:  healthDegraded,
				Message: fmt.Sprintf("cannot create output directory %s: %v", dir, mkErr),
			}
		}
		return ServiceHealth{Status: healthOK, Message: "output directory created"}
	}
	if err != nil {
		return ServiceHealth{
			Status:  healthDegraded,
			Message: fmt.Sprintf("cannot stat output directory %s: %v", dir, err),
		}
	}
	if !info.IsDir() {
		return ServiceHealth{
			Status:  healthDegraded,
			Message: fmt.Sprintf("output path %s is not a directory", dir),
		}
	}
	return ServiceHealth{Status: healthOK, Message: "output directory available"}
}
