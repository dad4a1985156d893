package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"tenant-console/internal/api"
	"tenant-console/internal/app"
	"tenant-console/internal/logging"
	"tenant-console/internal/services/asana"
	"tenant-console/internal/services/comments"
	"tenant-console/internal/services/csvimport"
)

// statusFor maps a service error to an HTTP status
func statusFor(err error) int {
	var apiErr *api.APIError
	switch {
	case errors.Is(err, app.ErrSessionNotFound),
		errors.Is(err, asana.ErrSessionClosed),
		errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, errLockNotFound):
		return http.StatusNotFound
	case errors.Is(err, asana.ErrGuard):
		return http.StatusConflict
	case errors.Is(err, asana.ErrInvalidRequest),
		errors.Is(err, csvimport.ErrMissingColumn),
		errors.Is(err, csvimport.ErrEmptyFile),
		errors.Is(err, csvimport.ErrNoRows),
		errors.Is(err, comments.ErrEmptyComment),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrNoTenant):
		return http.StatusPreconditionFailed
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": api.ExtractErrorMessage(err)}
	if requestID := api.RequestID(err); requestID != "" {
		body["upstream_request_id"] = requestID
	}
	if status >= http.StatusInternalServerError {
		logger(c).Error("Request failed", zap.Int("status", status), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, body)
}

func logger(c *gin.Context) *zap.Logger {
	return logging.Log.With(zap.String("request_id", c.GetString(logging.RequestIDKey)))
}
