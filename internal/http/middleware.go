package http

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"

	"github.com/jptrhost/pelican-dns/internal/models"
	"github.com/jptrhost/pelican-dns/internal/service"
)

const (
	webhookSecretHeader = "X-Webhook-Secret"
	limiterIdleTTL      = 10 * time.Minute
	limiterCapacity     = 10000
)

// WebhookAuthMiddleware accepts either the shared secret in X-Webhook-Secret
// or a HS256 bearer JWT signed with it. An empty secret disables the check.
func WebhookAuthMiddleware(secret string, log logr.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		if authorized(c.Request, secret) {
			c.Next()
			return
		}

		log.Info("rejected unauthenticated request", "kind", service.KindUnauthorized, "path", c.Request.URL.Path, "ip", c.ClientIP())
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.WebhookAck{OK: false, Error: "unauthorized"})
	}
}

func authorized(r *http.Request, secret string) bool {
	if got := r.Header.Get(webhookSecretHeader); got != "" {
		return subtle.ConstantTimeCompare([]byte(got), []byte(secret)) == 1
	}

	authHeader := r.Header.Get("Authorization")
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if authHeader == "" || tokenString == authHeader {
		return false
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return err == nil && token.Valid
}

// RateLimiter hands out one token bucket per key. Idle buckets expire and the
// number of tracked keys is capped.
type RateLimiter struct {
	limiters *ttlcache.Cache[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

// NewRateLimiter allows perMinute requests per key per minute, with bursts of
// the same size.
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		limiters: ttlcache.New[string, *rate.Limiter](
			ttlcache.WithTTL[string, *rate.Limiter](limiterIdleTTL),
			ttlcache.WithCapacity[string, *rate.Limiter](limiterCapacity),
		),
		limit: rate.Limit(float64(perMinute) / time.Minute.Seconds()),
		burst: perMinute,
	}
}

// Allow reports whether a request for key may proceed now.
func (rl *RateLimiter) Allow(key string) bool {
	item, _ := rl.limiters.GetOrSet(key, rate.NewLimiter(rl.limit, rl.burst))
	return item.Value().Allow()
}

// RateLimitMiddleware limits requests per client IP. A nil limiter disables it.
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl != nil && !rl.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded, please try again later",
			})
			return
		}
		c.Next()
	}
}

// RequestLogger logs one line per request through logr.
func RequestLogger(log logr.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.V(1).Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"ip", c.ClientIP(),
			"latency", time.Since(start),
		)
	}
}
