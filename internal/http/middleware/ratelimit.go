// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements fixed-window request admission control. Each client
// identity gets a counter that lives for one window; when the counter passes
// the capacity the client is rejected until the window entry expires.
//
// The fixed window is an approximation: a burst straddling a window boundary
// can admit up to twice the capacity in a short interval. That is accepted
// for this service; a sliding window or token bucket would cost more state
// for little gain at these limits.
package middleware

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/answerbase/go-knowledge-bot/internal/cache"
)

// rlRejected counts requests rejected by the rate limiter.
var rlRejected = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "rate_limit_rejected_total",
	Help: "Total requests rejected by the rate limiter.",
})

func init() {
	prometheus.MustRegister(rlRejected)
}

// KeyFunc derives the client identity a counter is kept for.
type KeyFunc func(c *gin.Context) string

// KeyByClientIP identifies clients by remote IP. Suitable when the service
// sits behind a proxy that sets the forwarding headers Gin trusts.
func KeyByClientIP() KeyFunc {
	return func(c *gin.Context) string { return c.ClientIP() }
}

// RateLimiter admits up to limit requests per client per window.
type RateLimiter struct {
	limit   int
	windows *cache.TTL[*int64]
	keyFn   KeyFunc
}

// NewRateLimiter constructs a fixed-window limiter. The counter map is
// capacity-bounded well above any realistic client population so the TTL is
// the operative bound.
func NewRateLimiter(limit int, window time.Duration, keyFn KeyFunc) *RateLimiter {
	if limit < 1 {
		limit = 1
	}
	if keyFn == nil {
		keyFn = KeyByClientIP()
	}
	return &RateLimiter{
		limit:   limit,
		windows: cache.NewTTL[*int64](1<<16, window),
		keyFn:   keyFn,
	}
}

// Check records one request for clientID and reports whether it is admitted.
// The counter for a fresh window is installed atomically, so concurrent
// first requests share one counter instead of racing to create two.
func (rl *RateLimiter) Check(clientID string) bool {
	fresh := new(int64)
	counter, _ := rl.windows.GetOrSet(clientID, fresh)
	return atomic.AddInt64(counter, 1) <= int64(rl.limit)
}

// Handler returns the Gin middleware enforcing the limit. Rejections are
// immediate 429s with the standard error envelope and no side effects.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Check(rl.keyFn(c)) {
			rlRejected.Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "rate_limited",
				"message":    "too many requests, slow down",
			})
			return
		}
		c.Next()
	}
}
