package middleware

import (
	"net/http"
	"strings"
	"time"
	"triage_service/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const sessionKey = "session"

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(c *gin.Context) (string, bool) {
	parts := strings.Fields(c.GetHeader("Authorization"))
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", false
	}
	return parts[1], true
}

// AuthMiddleware resolves the bearer token to a session and aborts with 401
// when there is none.
func AuthMiddleware(auth domain.AuthUseCase, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			log.Warn("Middleware: Authorization header is missing")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		token, ok := BearerToken(c)
		if !ok {
			log.Warn("Middleware: Invalid Authorization header format")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid Authorization header format"})
			return
		}

		sess, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			log.Warnf("Middleware: Token %s... rejected: %v", token[:min(8, len(token))], err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
			return
		}

		log.Debugf("Middleware: Request authenticated for user %s", sess.UserID())
		c.Set(sessionKey, sess)
		c.Next()
	}
}

// SessionFromContext returns the session AuthMiddleware stored, or nil.
func SessionFromContext(c *gin.Context) *domain.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*domain.Session)
	return sess
}

func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		entry := logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"remote_ip":  c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		})
		entry.Debug("Incoming request")

		c.Next()

		statusCode := c.Writer.Status()
		completed := logger.WithFields(logrus.Fields{
			"status_code": statusCode,
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"remote_ip":   c.ClientIP(),
			"latency_ms":  time.Since(startTime).Milliseconds(),
		})
		if sess := SessionFromContext(c); sess != nil {
			completed = completed.WithField("user_id", sess.UserID())
		}

		switch {
		case len(c.Errors) > 0:
			completed.Error(c.Errors.ByType(gin.ErrorTypePrivate).String())
		case statusCode >= 500:
			completed.Error("Request completed with server error")
		case statusCode >= 400:
			completed.Warn("Request completed with client error")
		default:
			completed.Info("Request completed successfully")
		}
	}
}
