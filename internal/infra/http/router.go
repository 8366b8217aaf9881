package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter crea el engine con los middlewares comunes.
func NewRouter(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), Logging(log))
	return r
}

// RegisterPlatformRoutes monta /health, /metrics y, si hay replayer, las rutas de admin.
func RegisterPlatformRoutes(r *gin.Engine, health *HealthHandler, admin *AdminHandler, gatherer prometheus.Gatherer) {
	r.GET("/health", health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	if admin != nil {
		deadLetters := r.Group("/admin/dead-letters")
		{
			deadLetters.GET("", admin.ListDeadLetters)
			deadLetters.POST("/replay", admin.ReplayDeadLetters)
		}
	}
}
