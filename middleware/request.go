package middleware

import (
	"fmt"
	"net/http"
	"time"

	"storefront-backend/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

// RequestID tags the request context (and so every log line) with an id,
// reusing the caller's X-Request-Id when present.
func RequestID(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(requestIDHeader, reqID)
		c.Request = c.Request.WithContext(log.WithRequestID(c.Request.Context(), reqID))
		c.Next()
	}
}

func Logging(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := log.WithFields(c.Request.Context(), map[string]any{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		})
		c.Request = c.Request.WithContext(ctx)
		start := time.Now()

		log.Debug(ctx, "request.start")
		c.Next()

		ctx = log.WithFields(ctx, map[string]any{
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if uid, ok := UserID(c); ok {
			ctx = log.WithField(ctx, "user_id", uid)
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Warn(ctx, "request.complete")
			return
		}
		log.Info(ctx, "request.complete")
	}
}

// Recoverer turns a panic into a logged 500 envelope.
func Recoverer(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				ctx := log.WithField(c.Request.Context(), "panic", fmt.Sprint(rec))
				log.Error(ctx, "panic.recovered", fmt.Errorf("panic: %v", rec))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"status":  http.StatusInternalServerError,
					"message": "Internal server error",
				})
			}
		}()
		c.Next()
	}
}
