package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pavitra93/go-multi-tenant-saas/shared/apperror"
	"github.com/pavitra93/go-multi-tenant-saas/shared/utils"
	"github.com/sirupsen/logrus"
)

// ErrorHandler renders the last error attached to the context as the JSON envelope.
// Handlers attach errors with c.Error and return without writing.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := apperror.StatusCode(err)
		if status >= http.StatusInternalServerError {
			logrus.WithFields(logrus.Fields{
				"method":     c.Request.Method,
				"path":       c.Request.URL.Path,
				"request_id": c.GetString(RequestIDKey),
				"error":      err,
			}).Error("request failed")
		}
		utils.ErrorResponse(c, status, apperror.PublicMessage(err))
	}
}

// Recovery turns panics into a 500 envelope instead of dropping the connection
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logrus.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"panic":  recovered,
		}).Error("panic recovered")
		utils.InternalServerErrorResponse(c, "Internal server error")
		c.Abort()
	})
}
