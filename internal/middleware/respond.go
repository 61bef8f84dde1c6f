package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/ttsgate/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/logging"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/quota"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success  bool            `json:"success"`
	Code     apperrors.Code  `json:"code"`
	Message  string          `json:"message"`
	APIUsage *quota.Snapshot `json:"apiUsage,omitempty"`
}

// AbortWithError writes err as an ErrorResponse and aborts the chain.
// Errors that are not AppErrors are reported as a generic 500 and logged.
func AbortWithError(c *gin.Context, logger *logging.Logger, err error, usage *quota.Snapshot) {
	appErr := apperrors.From(err)

	if appErr.HTTPCode >= 500 && appErr.Code == apperrors.CodeInternal {
		metrics.RecordError("api", string(appErr.Code))
		if logger != nil {
			l := logger.WithField("path", c.Request.URL.Path)
			if userID, ok := GetUserID(c); ok {
				l = l.WithUserID(userID)
			}
			l.ErrorWithErr("Request failed", appErr.Err)
		}
	}

	c.AbortWithStatusJSON(appErr.HTTPCode, ErrorResponse{
		Success:  false,
		Code:     appErr.Code,
		Message:  appErr.Message,
		APIUsage: usage,
	})
}
