package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/ttsgate/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/middleware"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/quota"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/tts"
)

type synthesizeResponse struct {
	Success          bool          `json:"success"`
	AudioBase64      string        `json:"audio_base64"`
	SampleRate       int           `json:"sample_rate,omitempty"`
	Format           string        `json:"format,omitempty"`
	APIUsage         usageSnapshot `json:"apiUsage"`
	APILimitExceeded bool          `json:"apiLimitExceeded"`
	Warning          string        `json:"warning,omitempty"`
}

type usageResponse struct {
	Success          bool          `json:"success"`
	Message          string        `json:"message,omitempty"`
	APIUsage         usageSnapshot `json:"apiUsage"`
	APILimitExceeded bool          `json:"apiLimitExceeded"`
	Warning          string        `json:"warning,omitempty"`
}

// Synthesize endpoint
func (api *API) synthesize(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	var in tts.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		var snap *usageSnapshot
		if s, qerr := api.quota.CheckLimit(ctx, user.ID); qerr == nil {
			snap = &s
		}
		api.fail(c, apperrors.Validation("Invalid request body"), snap)
		return
	}

	out, err := api.proxy.Synthesize(ctx, user.ID, in)
	if err != nil {
		var snap *usageSnapshot
		if out != nil {
			snap = &out.Usage
		}
		api.fail(c, err, snap)
		return
	}

	c.JSON(http.StatusOK, synthesizeResponse{
		Success:          true,
		AudioBase64:      out.Result.AudioBase64,
		SampleRate:       out.Result.SampleRate,
		Format:           out.Result.Format,
		APIUsage:         out.Usage,
		APILimitExceeded: out.Exceeded,
		Warning:          out.Warning,
	})

	api.recordUsage(c, user.ID, out.Language, out.Result)
}

// Usage snapshot endpoint
func (api *API) getUsage(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	snap, err := api.quota.CheckLimit(c.Request.Context(), user.ID)
	if err != nil {
		api.fail(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, usageResponse{
		Success:          true,
		APIUsage:         snap,
		APILimitExceeded: snap.Exceeded,
		Warning:          snap.Warning(),
	})
}

// Increment endpoint, registered only when test routes are enabled
func (api *API) incrementUsage(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	before, err := api.quota.CheckLimit(ctx, user.ID)
	if err != nil {
		api.fail(c, err, nil)
		return
	}
	if api.quota.Blocks(before) {
		api.fail(c, apperrors.QuotaExceeded(quota.LimitWarning), &before)
		return
	}

	snap, err := api.quota.Increment(ctx, user.ID)
	if err != nil {
		api.fail(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, usageResponse{
		Success:          true,
		Message:          "API usage incremented",
		APIUsage:         snap,
		APILimitExceeded: snap.Exceeded,
		Warning:          snap.Warning(),
	})

	api.recordUsage(c, user.ID, "", nil)
}
