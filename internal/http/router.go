// Package httpapi wires the HTTP transport (Gin) to the application
// services, middleware, and route handlers. It centralizes cross-cutting
// concerns: tracing, correlation IDs, structured logging, panic recovery,
// metrics, rate limiting, CORS, and security headers.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs with the request-scoped logger
//  4. Recovery: capture panics after the logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (after metrics so rejections are counted)
//  8. CORS and security headers
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerfiles "github.com/swaggo/files"
	ginswagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/answerbase/go-knowledge-bot/internal/config"
	"github.com/answerbase/go-knowledge-bot/internal/http/handlers"
	"github.com/answerbase/go-knowledge-bot/internal/http/middleware"
)

// Deps are the constructed collaborators the router mounts.
type Deps struct {
	Handler *handlers.Handler
}

// RegisterRoutes attaches all middleware and endpoints to the given Gin
// engine: the Slack webhook at /slack/events, the reviewer API under the
// configured base path, plus /health, /metrics, and optional Swagger docs.
func RegisterRoutes(r *gin.Engine, d Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured access logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (8 MiB; CSV uploads need headroom)
	r.Use(limitBody(8 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Fixed-window rate limiter per client IP
	rl := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateWindow, middleware.KeyByClientIP())
	r.Use(rl.Handler())

	// 8) CORS posture (allow all when no origins configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Swagger (opt-in, never in production by default)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginswagger.WrapHandler(swaggerfiles.Handler))
	}

	// Slack Events API webhook. No gzip here: payloads are small and the
	// 3-second ack deadline leaves no room for middleware overhead.
	r.POST("/slack/events", d.Handler.SlackEvents)

	// Reviewer API
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(gzip.Gzip(gzip.DefaultCompression))
	{
		api.GET("/questions", d.Handler.ListQuestions)
		api.POST("/questions/:id/answer", d.Handler.SubmitAnswer)
		api.POST("/questions/:id/dislike", d.Handler.Dislike)
		api.POST("/knowledge/import", d.Handler.ImportKnowledge)
	}
}

// limitBody caps the request body for all endpoints using
// http.MaxBytesReader; oversized bodies fail on read downstream.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
