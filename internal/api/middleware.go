package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"grape-store/internal/models"
	"grape-store/internal/service"
	"grape-store/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	ctxUserID = "userID"
	ctxRole   = "role"
)

// TokenParser validates access tokens
type TokenParser interface {
	ParseToken(token string) (*service.Claims, error)
}

// RateLimiter counts requests per fixed window
type RateLimiter interface {
	Allow(ctx context.Context, scope, id string, limit int, window time.Duration) (bool, error)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Inc()
	}
}

// authMiddleware requires a valid bearer token and stores the caller's id
// and role in the context.
func authMiddleware(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if header == "" || token == "" || token == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token required"})
			return
		}

		claims, err := tokens.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

// adminOnly rejects callers without the admin role. Must run after
// authMiddleware.
func adminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxRole) != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

// rateLimit allows limit requests per window per client IP. If the limiter
// itself fails the request is let through.
func rateLimit(limiter RateLimiter, scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || limit <= 0 || window < time.Second {
			c.Next()
			return
		}

		allowed, err := limiter.Allow(c.Request.Context(), scope, c.ClientIP(), limit, window)
		if err != nil {
			util.GetLogger().Warn("Rate limiter unavailable",
				zap.String("scope", scope),
				zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			util.RateLimitedTotal.WithLabelValues(scope).Inc()
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, please try again later"})
			return
		}
		c.Next()
	}
}

// currentUserID returns the authenticated caller's id
func currentUserID(c *gin.Context) int64 {
	return c.GetInt64(ctxUserID)
}
