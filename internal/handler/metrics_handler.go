package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/prepdeck-marketing-api/internal/service"
)

type readiness interface {
	Ready() bool
}

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	content readiness
}

// NewMetricsHandler constructs a metrics handler. content may be nil.
func NewMetricsHandler(metrics *service.MetricsService, content readiness) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, content: content}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for liveness probes.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports whether every content section has settled at least once.
func (h *MetricsHandler) Ready(c *gin.Context) {
	if h.content != nil && !h.content.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "warming"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "metrics": h.metrics.Snapshot()})
}
