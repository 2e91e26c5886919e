// Package httpapi wires the HTTP transport (Gin) to the order service,
// middleware and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, access logging, panic recovery, metrics,
// compression, CORS, security headers, idempotency key validation and rate
// limiting.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-order-backend/internal/cache"
	"github.com/tbourn/go-order-backend/internal/config"
	"github.com/tbourn/go-order-backend/internal/http/handlers"
	"github.com/tbourn/go-order-backend/internal/http/middleware"
	"github.com/tbourn/go-order-backend/internal/repo"
	"github.com/tbourn/go-order-backend/internal/services"
)

// maxBodyBytes caps request bodies. A create payload is a single integer.
const maxBodyBytes = 64 << 10

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the order API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access log
//  4. Recovery: capture panics after logger
//  5. Body size limiter and gzip
//  6. Metrics
//  7. Idempotency-Key validation
//  8. Rate limiter (per client IP, probes exempt)
//  9. CORS and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, store cache.Store, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: services.MaxTokenLen}))

	if cfg.RateRPS > 0 {
		rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, 0, middleware.KeyByClientIP())
		rl.Skip = isProbe
		r.Use(rl.Handler())
	}

	exposed := []string{"ETag", "Location", middleware.HeaderIdempotencyReplayed}
	r.Use(cors.New(corsConfig(cfg.CORS, exposed)))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		CacheControl: "no-cache",
		EnablePolicy: true,
		Expose:       exposed,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// The idempotency cache is advisory: orders keep flowing without it.
	health := handlers.NewHealth(
		map[string]handlers.Checker{
			"database": handlers.CheckerFunc(func(ctx context.Context) error { return repo.Ping(ctx, db) }),
		},
		map[string]handlers.Checker{"cache": store},
		2*time.Second,
	)
	r.GET("/health", health.Live)
	r.GET("/health/ready", health.Ready)

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: service <- repo/db/cache
	orderSvc := services.NewOrderService(db, repo.Orders{}, store)
	if cfg.Cache.TTL > 0 {
		orderSvc.CacheTTL = cfg.Cache.TTL
	}
	if cfg.ReadyDelay > 0 {
		orderSvc.ReadyDelay = cfg.ReadyDelay
	}
	orderSvc.MaxListLimit = int64(cfg.ListMaxLimit)
	h := handlers.New(orderSvc)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.POST("/tables/:table_id/orders", h.CreateOrder)
		api.GET("/tables/:table_id/orders", h.ListOrders)
		api.GET("/tables/:table_id/orders/:order_id", h.GetOrder)
		api.DELETE("/tables/:table_id/orders/:order_id", h.DeleteOrder)
	}
}

// corsConfig allows every origin when none are configured. Credentials stay
// off in both modes.
func corsConfig(c config.CORSConfig, exposed []string) cors.Config {
	cc := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept",
			middleware.HeaderIdempotencyKey, "If-None-Match", "X-Request-ID",
		},
		ExposeHeaders: append([]string{"X-Request-ID", "Content-Length"}, exposed...),
		MaxAge:        12 * time.Hour,
	}
	if len(c.AllowedOrigins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = c.AllowedOrigins
	}
	return cc
}

func isProbe(c *gin.Context) bool {
	p := c.Request.URL.Path
	return p == "/metrics" || p == "/health" || strings.HasPrefix(p, "/health/")
}

// limitBody caps the request body size using http.MaxBytesReader.
// Oversized bodies surface as read errors in the handlers.
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
