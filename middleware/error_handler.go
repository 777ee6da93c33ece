package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/princinho/eventhub/apperrors"
	"go.uber.org/zap"
)

// ErrorHandler renders the last error a handler attached with c.Error as
// {"detail": ...}. Errors that are not *apperrors.Error become a 500 and
// are logged, never echoed.
func ErrorHandler(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		status := apperrors.Status(last.Err)
		appErr, ok := apperrors.As(last.Err)
		if !ok || status == http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Error(last.Err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal server error"})
			return
		}

		c.JSON(status, gin.H{"detail": appErr.Body()})
	}
}
