package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-order-backend/internal/http/middleware"
)

// Checker is a dependency the service needs in order to serve traffic.
type Checker interface {
	Ping(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

// Ping calls f(ctx).
func (f CheckerFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthResponse reports overall status and, for readiness, one entry per dependency.
type HealthResponse struct {
	Status string            `json:"status" example:"ok"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Readiness states reported per dependency and overall.
const (
	healthOK          = "ok"
	healthDegraded    = "degraded"
	healthUnavailable = "unavailable"
)

// Health serves liveness and readiness probes.
type Health struct {
	required map[string]Checker
	advisory map[string]Checker
	timeout  time.Duration
}

// NewHealth builds probes over the named dependencies. A failing required
// dependency makes the service unready (503). A failing advisory one only
// marks it degraded and readiness stays 200. Each ping gets timeout (2s
// when <= 0).
func NewHealth(required, advisory map[string]Checker, timeout time.Duration) *Health {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Health{required: required, advisory: advisory, timeout: timeout}
}

// Live godoc
// @ID       health
// @Summary  Liveness probe
// @Tags     Health
// @Produce  json
// @Success  200  {object}  handlers.HealthResponse
// @Router   /health [get]
func (h *Health) Live(c *gin.Context) {
	ok(c, http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready godoc
// @ID       ready
// @Summary  Readiness probe
// @Description Pings the record store and the idempotency cache. A store failure yields 503.
// @Description A cache failure yields 200 with status "degraded".
// @Tags     Health
// @Produce  json
// @Success  200  {object}  handlers.HealthResponse
// @Failure  503  {object}  handlers.HealthResponse
// @Router   /health/ready [get]
func (h *Health) Ready(c *gin.Context) {
	resp := HealthResponse{Status: healthOK, Checks: make(map[string]string, len(h.required)+len(h.advisory))}
	status := http.StatusOK

	for _, name := range sortedNames(h.required) {
		if !h.ping(c, name, h.required[name]) {
			resp.Checks[name] = healthUnavailable
			resp.Status = healthUnavailable
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = healthOK
	}
	for _, name := range sortedNames(h.advisory) {
		if !h.ping(c, name, h.advisory[name]) {
			resp.Checks[name] = healthUnavailable
			if resp.Status == healthOK {
				resp.Status = healthDegraded
			}
			continue
		}
		resp.Checks[name] = healthOK
	}
	ok(c, status, resp)
}

// ping runs one check under the probe timeout. The cause is logged, never
// returned to the caller.
func (h *Health) ping(c *gin.Context, name string, chk Checker) bool {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	if err := chk.Ping(ctx); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Str("dependency", name).Msg("readiness check failed")
		return false
	}
	return true
}

func sortedNames(m map[string]Checker) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
