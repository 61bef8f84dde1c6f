package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/ttsgate/internal/accounts"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/middleware"
)

type loginFunc func(ctx context.Context, creds accounts.Credentials) (*accounts.Session, error)

func bindCredentials(c *gin.Context) (accounts.Credentials, bool) {
	var creds accounts.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		return creds, false
	}
	return creds, true
}

// Signup endpoint
func (api *API) signup(c *gin.Context) {
	creds, ok := bindCredentials(c)
	if !ok {
		api.fail(c, apperrors.Validation("Email and password are required"), nil)
		return
	}

	user, err := api.accounts.Signup(c.Request.Context(), creds)
	if err != nil {
		api.fail(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "User registered successfully",
		"userId":  user.ID,
	})
}

// Login endpoint
func (api *API) login(c *gin.Context) {
	api.startSession(c, api.accounts.Login)
}

// Admin login endpoint
func (api *API) adminLogin(c *gin.Context) {
	api.startSession(c, api.accounts.LoginAdmin)
}

func (api *API) startSession(c *gin.Context, login loginFunc) {
	creds, ok := bindCredentials(c)
	if !ok {
		api.fail(c, apperrors.Validation("Email and password are required"), nil)
		return
	}

	session, err := login(c.Request.Context(), creds)
	if err != nil {
		api.fail(c, err, nil)
		return
	}

	middleware.SetAuthCookie(c, session.Token, api.opts.TokenTTL, api.opts.SecureCookies)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"token":   session.Token,
		"user":    newUserView(session.User, session.Usage, false),
	})
}

// Logout endpoint
func (api *API) logout(c *gin.Context) {
	middleware.ClearAuthCookie(c, api.opts.SecureCookies)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Logged out successfully",
	})
}

// Current user endpoint
func (api *API) me(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	profile, err := api.accounts.GetUser(c.Request.Context(), user.ID)
	if err != nil {
		api.fail(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    newUserView(profile.User, profile.Usage, true),
	})
}
