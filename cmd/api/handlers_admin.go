package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/ttsgate/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/middleware"
)

// Add admin endpoint
func (api *API) addAdmin(c *gin.Context) {
	creds, ok := bindCredentials(c)
	if !ok {
		api.fail(c, apperrors.Validation("Email and password are required"), nil)
		return
	}

	user, err := api.accounts.CreateAdmin(c.Request.Context(), creds)
	if err != nil {
		api.fail(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Admin created successfully",
		"userId":  user.ID,
	})
}

// Dashboard endpoint
func (api *API) dashboard(c *gin.Context) {
	dash, err := api.admin.Dashboard(c.Request.Context())
	if err != nil {
		api.fail(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"users":         dash.Users,
		"endpointStats": dash.EndpointStats,
	})
}

// Delete user endpoint
func (api *API) deleteUser(c *gin.Context) {
	requester, _ := middleware.CurrentUser(c)
	targetID := c.Param("id")

	if err := api.admin.DeleteUser(c.Request.Context(), targetID, requester.ID); err != nil {
		api.fail(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "User deleted successfully",
	})
}

// Reset usage endpoint
func (api *API) resetUsage(c *gin.Context) {
	targetID := c.Param("id")

	snap, err := api.admin.ResetUsage(c.Request.Context(), targetID)
	if err != nil {
		api.fail(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "API usage reset successfully",
		"apiUsage": snap,
	})
}
