package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/trialbridge/trialbridge/internal/platform/observability"
	db "github.com/trialbridge/trialbridge/internal/storage"
)

const (
	ctxUserID   = "user_id"
	ctxUserType = "user_type"
)

// requestLogger emits one structured line per request and records metrics.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		elapsed := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		observability.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		observability.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(elapsed.Seconds())

		evt := s.logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			evt = s.logger.Error()
		}

		evt.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", elapsed).
			Msg("http request")
	}
}

// rateLimiter applies a global token bucket to the API.
func (s *Server) rateLimiter() gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.RateBurst)

	return func(c *gin.Context) {
		if !limiter.Allow() {
			respondError(c, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}

		c.Next()
	}
}

// authRequired validates the bearer token and loads claims into the context.
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := s.bearerClaims(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, "unauthorized", "missing or invalid access token")
			return
		}

		c.Set(ctxUserID, claims.Subject)
		c.Set(ctxUserType, claims.UserType)
		c.Next()
	}
}

// authOptional loads claims when a valid token is present but lets anonymous
// requests through.
func (s *Server) authOptional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := s.bearerClaims(c); ok {
			c.Set(ctxUserID, claims.Subject)
			c.Set(ctxUserType, claims.UserType)
		}

		c.Next()
	}
}

// adminRequired gates admin-only routes. Runs after authRequired.
func adminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxUserType) != db.UserTypeAdmin {
			respondError(c, http.StatusForbidden, "forbidden", "admin access required")
			return
		}

		c.Next()
	}
}

func (s *Server) bearerClaims(c *gin.Context) (claims *authClaims, ok bool) {
	header := c.GetHeader("Authorization")

	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return nil, false
	}

	parsed, err := s.tokens.Verify(token)
	if err != nil {
		return nil, false
	}

	return parsed, true
}

func currentUserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

func isAdmin(c *gin.Context) bool {
	return c.GetString(ctxUserType) == db.UserTypeAdmin
}
