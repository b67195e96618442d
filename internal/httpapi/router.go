package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TejasGoyal/test-tinyb-skillora/internal/common"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/config"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/httpapi/handlers"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/httpapi/middleware"
)

// NewRouter mounts every endpoint on a fresh engine. gatherer backs /metrics;
// nil means the default registry.
func NewRouter(h *handlers.Handler, cfg config.Config, gatherer prometheus.Gatherer) *gin.Engine {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.Recovery(h.Log))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(h.Log))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.GET("/ping", h.Ping)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// chat validates messages before it checks the credential
	r.POST("/api/chat", h.Chat)
	r.POST("/api/route", h.Route)

	fn := r.Group("/functions/v1")
	fn.POST("/pplx-chat", h.PplxChat)

	admin := fn.Group("/")
	admin.Use(middleware.AdminToken(cfg.AdminToken, cfg.AdminTokenHash))
	admin.POST("/rag-ingest", h.RagIngest)
	admin.GET("/rag-ingest/jobs/:job_id", h.GetIngestJob)

	authGroup := fn.Group("/")
	authGroup.Use(middleware.BearerAuth(h.Auth, middleware.MsgMissingAuthHeader))
	authGroup.POST("/rag-answer", h.RagAnswer)
	authGroup.POST("/db-query", h.DBQuery)

	return r
}
