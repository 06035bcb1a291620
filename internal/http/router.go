// Package httpapi wires the Gin transport to the webhook and admin handlers
// and owns the cross-cutting middleware chain: tracing, correlation IDs,
// redacted access logs, panic recovery, body limits, metrics and security
// headers. The admin group adds CORS, gzip and the shared-token guard.
//
// The webhook route carries the platform signature check and nothing that
// could reject a verified delivery, so every signed batch is acknowledged.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-coach-bot/internal/config"
	"github.com/tbourn/go-coach-bot/internal/http/handlers"
	"github.com/tbourn/go-coach-bot/internal/http/middleware"
)

// RegisterRoutes attaches middleware and endpoints to r.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs, credentials and PII scrubbed
//  4. Recovery: capture panics after the logger is attached
//  5. Body size limiter
//  6. Metrics
//  7. Security headers
func RegisterRoutes(r *gin.Engine, h *handlers.Handlers, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(cfg.MaxBodyBytes))
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Platform webhook
	r.GET("/webhook", h.WebhookVerify)
	r.POST("/webhook", middleware.LineSignature(cfg.Line.ChannelSecret), h.Webhook)

	// Operator API. CORS runs first so preflights are answered before the
	// token check.
	admin := r.Group("/admin",
		adminCORS(cfg.CORS.AllowedOrigins),
		middleware.AdminToken(cfg.AdminToken),
		gzip.Gzip(gzip.DefaultCompression),
	)
	{
		admin.POST("/subscriptions", h.RegisterSubscription)
		admin.GET("/subscriptions/:user_id", h.GetSubscription)
		admin.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	}
}

// adminCORS allows every origin when none are configured; credentials are
// never allowed since the admin token travels in a header.
func adminCORS(origins []string) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.AdminTokenHeader},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
	}
	return cors.New(cc)
}

// limitBody caps the request body at maxBytes using http.MaxBytesReader.
// Oversized bodies make downstream reads fail; the webhook handler still
// acknowledges them. A non-positive cap disables the limit.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
