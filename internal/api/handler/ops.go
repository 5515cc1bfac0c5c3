package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/loyaltywallet/walletsync/internal/api/models"
	"github.com/loyaltywallet/walletsync/internal/api/response"
	"github.com/loyaltywallet/walletsync/internal/provider/resilience"
)

// Pinger checks a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// UpstreamHealth reports breaker state of outbound clients.
type UpstreamHealth interface {
	Health() []resilience.Health
}

// OpsHandler serves the probes.
type OpsHandler struct {
	version   string
	db        Pinger
	upstreams UpstreamHealth
}

// NewOpsHandler creates an OpsHandler. db and upstreams may be nil.
func NewOpsHandler(version string, db Pinger, upstreams UpstreamHealth) *OpsHandler {
	return &OpsHandler{version: version, db: db, upstreams: upstreams}
}

// HealthCheck handles GET /health.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status:  models.HealthStatusOK,
		Time:    time.Now().UTC(),
		Version: h.version,
	})
}

// ReadinessCheck handles GET /ready. An unreachable database fails the probe;
// an open circuit only degrades it.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status:  models.HealthStatusOK,
		Time:    time.Now().UTC(),
		Version: h.version,
	}
	code := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		sub := models.SubsystemStatus{Name: "database", Status: models.HealthStatusOK}
		if err := h.db.Ping(ctx); err != nil {
			sub.Status = models.HealthStatusDown
			sub.Detail = "ping failed"
			health.Status = models.HealthStatusDown
			code = http.StatusServiceUnavailable
		}
		health.Subsystems = append(health.Subsystems, sub)
	}

	if h.upstreams != nil {
		for _, u := range h.upstreams.Health() {
			sub := models.SubsystemStatus{Name: u.Name, Status: models.HealthStatusOK}
			if u.State != "closed" {
				sub.Status = models.HealthStatusDegraded
				sub.Detail = "circuit " + u.State
				if health.Status == models.HealthStatusOK {
					health.Status = models.HealthStatusDegraded
				}
			}
			health.Subsystems = append(health.Subsystems, sub)
		}
	}

	response.JSON(w, r, code, health)
}
