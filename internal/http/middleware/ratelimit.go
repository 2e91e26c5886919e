// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements a process-local token-bucket rate limiter with one
// bucket per client key. Buckets live in a bounded LRU, so memory stays
// flat under many distinct clients; an evicted client simply starts over
// with a full bucket.
//
// The limiter is edge-level abuse control for a single instance. It is not
// shared across replicas.
package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// DefaultMaxClients bounds the number of tracked buckets.
const DefaultMaxClients = 10000

var rateLimited = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "http_rate_limited_total",
	Help: "Requests rejected by the rate limiter.",
})

func init() {
	prometheus.MustRegister(rateLimited)
}

// KeyFunc maps a request to a bucket identity.
type KeyFunc func(*gin.Context) string

// KeyByClientIP buckets requests by gin's resolved client IP.
func KeyByClientIP() KeyFunc {
	return func(c *gin.Context) string { return "ip:" + c.ClientIP() }
}

// RateLimiter enforces per-key token-bucket limits. Safe for concurrent use.
type RateLimiter struct {
	rps     rate.Limit
	burst   int
	keyFn   KeyFunc
	buckets *lru.Cache[string, *rate.Limiter]
	// Skip exempts requests, e.g. health probes, from limiting.
	Skip func(*gin.Context) bool
}

// NewRateLimiter builds a limiter refilling rps tokens per second up to
// burst (coerced to >= 1), tracking at most maxClients keys
// (DefaultMaxClients when <= 0).
func NewRateLimiter(rps float64, burst, maxClients int, keyFn KeyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if maxClients <= 0 {
		maxClients = DefaultMaxClients
	}
	if keyFn == nil {
		keyFn = KeyByClientIP()
	}
	buckets, _ := lru.New[string, *rate.Limiter](maxClients) // size > 0 never errors
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		keyFn:   keyFn,
		buckets: buckets,
	}
}

// limiter returns the bucket for key, creating it on first use.
func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	if lim, ok := rl.buckets.Get(key); ok {
		return lim
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	// Two racing first requests may each add a bucket; the later one wins
	// and at most one extra token is granted.
	if prev, ok, _ := rl.buckets.PeekOrAdd(key, lim); ok {
		return prev
	}
	return lim
}

// Handler returns the Gin middleware. Rejected requests get 429 with a
// Retry-After hint and the standard error envelope:
//
//	{ "request_id": "<id>", "code": "too_many_requests", "message": "rate limit exceeded" }
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.Skip != nil && rl.Skip(c) {
			c.Next()
			return
		}
		lim := rl.limiter(rl.keyFn(c))
		if lim.Allow() {
			c.Next()
			return
		}

		rateLimited.Inc()
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(lim)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}

// retryAfterSeconds estimates when one token is available again, at least 1s.
func retryAfterSeconds(lim *rate.Limiter) int {
	if lim.Limit() <= 0 {
		return 1
	}
	secs := int(1/float64(lim.Limit()) + 0.999)
	if secs < 1 {
		secs = 1
	}
	return secs
}
