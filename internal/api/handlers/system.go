package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wonny/stockread/internal/supervisor"
	"github.com/wonny/stockread/pkg/logger"
)

const (
	healthHealthy   = "healthy"
	healthDegraded  = "degraded"
	healthUnhealthy = "unhealthy"

	healthCheckTimeout = 3 * time.Second
)

// StatusSource reports supervised service status
type StatusSource interface {
	Status() map[string]supervisor.ServiceStatus
}

// RedisStatus reports the cache connection state
type RedisStatus interface {
	Status(ctx context.Context) string
}

// Pinger checks a dependency
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemInfo is the static part of the health report
type SystemInfo struct {
	Env        string
	AIProvider string
	AIKey      string
}

// SystemHandler serves /services and /healthz
type SystemHandler struct {
	services StatusSource
	redis    RedisStatus
	db       Pinger
	info     SystemInfo
	logger   *logger.Logger
}

// NewSystemHandler creates a new system handler. redis and db may be nil.
func NewSystemHandler(services StatusSource, redis RedisStatus, db Pinger, info SystemInfo, log *logger.Logger) *SystemHandler {
	return &SystemHandler{
		services: services,
		redis:    redis,
		db:       db,
		info:     info,
		logger:   log.WithComponent("api"),
	}
}

// ServicesResponse lists every supervised service
type ServicesResponse struct {
	Services        map[string]supervisor.ServiceStatus `json:"services"`
	TotalServices   int                                 `json:"total_services"`
	RunningServices int                                 `json:"running_services"`
	FailedServices  int                                 `json:"failed_services"`
	Timestamp       int64                               `json:"timestamp"`
}

// Services returns per-service status and totals
// GET /services
func (h *SystemHandler) Services(w http.ResponseWriter, r *http.Request) {
	status := h.status()
	sum := supervisor.Summarize(status)
	respondJSON(w, http.StatusOK, ServicesResponse{
		Services:        status,
		TotalServices:   sum.Total,
		RunningServices: sum.Running,
		FailedServices:  sum.Failed,
		Timestamp:       time.Now().Unix(),
	})
}

func (h *SystemHandler) status() map[string]supervisor.ServiceStatus {
	if h.services == nil {
		return map[string]supervisor.ServiceStatus{}
	}
	return h.services.Status()
}

// AIStatus never carries the key itself
type AIStatus struct {
	Provider      string `json:"provider"`
	KeyConfigured bool   `json:"key_configured"`
	KeyLength     int    `json:"key_length"`
}

// HealthResponse is the /healthz body
type HealthResponse struct {
	Status    string          `json:"status"`
	Env       string          `json:"env"`
	Redis     string          `json:"redis"`
	Database  string          `json:"database"`
	AI        AIStatus        `json:"ai"`
	Services  map[string]bool `json:"services"`
	Timestamp int64           `json:"timestamp"`
}

// Healthz reports dependency and service health.
// Database failure → unhealthy (503); a dead service → degraded (200).
// GET /healthz
func (h *SystemHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status: healthHealthy,
		Env:    h.info.Env,
		Redis:  "not_configured",
		AI: AIStatus{
			Provider:      h.info.AIProvider,
			KeyConfigured: h.info.AIKey != "",
			KeyLength:     len(h.info.AIKey),
		},
		Services:  make(map[string]bool),
		Timestamp: time.Now().Unix(),
	}

	if h.redis != nil {
		resp.Redis = h.redis.Status(ctx)
	}

	resp.Database = "not_configured"
	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			h.logger.WithError(err).Warn("Health check: database ping failed")
			resp.Database = "error"
			resp.Status = healthUnhealthy
		} else {
			resp.Database = "connected"
		}
	}

	for name, st := range h.status() {
		alive := st.Initialized && st.Running
		resp.Services[name] = alive
		if !alive && resp.Status == healthHealthy {
			resp.Status = healthDegraded
		}
	}

	code := http.StatusOK
	if resp.Status == healthUnhealthy {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, resp)
}
