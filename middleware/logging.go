package middleware

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const slowRequest = 2 * time.Second

// RequestLogger writes one zap entry per request, replacing gin's text logger.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			fields := []zap.Field{
				zap.String("method", param.Method),
				zap.String("path", param.Path),
				zap.Int("status", param.StatusCode),
				zap.Int64("latency_ms", param.Latency.Milliseconds()),
				zap.String("client_ip", param.ClientIP),
				zap.String("user_agent", param.Request.UserAgent()),
			}
			if param.ErrorMessage != "" {
				fields = append(fields, zap.String("error", param.ErrorMessage))
			}

			switch {
			case param.StatusCode >= http.StatusInternalServerError:
				log.Error("request", fields...)
			case param.StatusCode >= http.StatusBadRequest:
				log.Warn("request", fields...)
			default:
				log.Info("request", fields...)
			}

			if param.Latency > slowRequest {
				log.Warn("slow request", zap.String("path", param.Path), zap.Duration("latency", param.Latency))
			}
			return ""
		},
		Output:    io.Discard,
		SkipPaths: []string{"/ping", "/metrics"},
	})
}

// Recovery logs panics with zap and answers 500 in the usual error shape.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Stack("stack"),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "internal server error"})
	})
}
