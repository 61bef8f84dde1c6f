package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/ttsgate/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/auth"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/logging"
	"github.com/therealutkarshpriyadarshi/ttsgate/pkg/models"
)

const (
	// UserContextKey holds the authenticated *models.User
	UserContextKey = "currentUser"
	// AuthContextKey holds the authenticated user id
	AuthContextKey = "user_id"
	// TokenCookieName is the cookie carrying the session token
	TokenCookieName = "token"

	authRequired = "Authentication required"
)

// UserLookup resolves the subject of a verified token
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Authenticator guards routes with session tokens
type Authenticator struct {
	tokens *auth.TokenService
	users  UserLookup
	logger *logging.Logger
}

// NewAuthenticator creates an Authenticator
func NewAuthenticator(tokens *auth.TokenService, users UserLookup, logger *logging.Logger) *Authenticator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Authenticator{tokens: tokens, users: users, logger: logger}
}

// ExtractToken returns the bearer token, falling back to the token cookie
func ExtractToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token
			}
		}
	}

	if cookie, err := c.Cookie(TokenCookieName); err == nil {
		return cookie
	}
	return ""
}

// RequireUser rejects requests without a valid token for an active user
func (a *Authenticator) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := a.authenticate(c); !ok {
			return
		}
		c.Next()
	}
}

// RequireAdmin is RequireUser restricted to administrators
func (a *Authenticator) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := a.authenticate(c)
		if !ok {
			return
		}
		if !user.IsAdmin {
			AbortWithError(c, a.logger, apperrors.Unauthorized(authRequired), nil)
			return
		}
		c.Next()
	}
}

func (a *Authenticator) authenticate(c *gin.Context) (*models.User, bool) {
	token := ExtractToken(c)
	if token == "" {
		AbortWithError(c, a.logger, apperrors.Unauthorized(authRequired), nil)
		return nil, false
	}

	claims, err := a.tokens.Verify(token)
	if err != nil {
		AbortWithError(c, a.logger, apperrors.Unauthorized(authRequired), nil)
		return nil, false
	}

	user, err := a.users.GetUserByID(c.Request.Context(), claims.UserID)
	if errors.Is(err, models.ErrNotFound) {
		AbortWithError(c, a.logger, apperrors.Unauthorized(authRequired), nil)
		return nil, false
	}
	if err != nil {
		AbortWithError(c, a.logger, apperrors.Internal(err), nil)
		return nil, false
	}
	if !user.IsActive() {
		AbortWithError(c, a.logger, apperrors.Unauthorized(authRequired), nil)
		return nil, false
	}

	c.Set(UserContextKey, user)
	c.Set(AuthContextKey, user.ID)
	return user, true
}

// CurrentUser returns the user stored by RequireUser
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(UserContextKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

// GetUserID retrieves the user ID from the context
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(AuthContextKey)
	if !exists {
		return "", false
	}

	userIDStr, ok := userID.(string)
	return userIDStr, ok
}

// SetAuthCookie stores the session token in an HttpOnly cookie
func SetAuthCookie(c *gin.Context, token string, ttl time.Duration, secure bool) {
	setCookie(c, token, int(ttl.Seconds()), secure)
}

// ClearAuthCookie expires the session cookie
func ClearAuthCookie(c *gin.Context, secure bool) {
	setCookie(c, "", -1, secure)
}

func setCookie(c *gin.Context, value string, maxAge int, secure bool) {
	if secure {
		c.SetSameSite(http.SameSiteNoneMode)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
	}
	c.SetCookie(TokenCookieName, value, maxAge, "/", "", secure, true)
}
