package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ConnectionChecker es la parte del BrokerClient que consulta el health check.
type ConnectionChecker interface {
	Connected() bool
}

type HealthHandler struct {
	broker  ConnectionChecker
	started time.Time
}

func NewHealthHandler(broker ConnectionChecker) *HealthHandler {
	return &HealthHandler{broker: broker, started: time.Now()}
}

// Health devuelve 503 mientras el broker no esté conectado.
func (h *HealthHandler) Health(c *gin.Context) {
	connected := h.broker.Connected()
	uptime := time.Since(h.started)

	status, state := http.StatusOK, "ok"
	if !connected {
		status, state = http.StatusServiceUnavailable, "degraded"
	}
	c.JSON(status, gin.H{
		"status":         state,
		"uptime":         uptime.Round(time.Second).String(),
		"uptime_seconds": int64(uptime.Seconds()),
		"broker":         gin.H{"connected": connected},
	})
}
