package main

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/ttsgate/internal/accounts"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/admin"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/logging"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/middleware"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/quota"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/tts"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/usage"
	"github.com/therealutkarshpriyadarshi/ttsgate/pkg/models"
)

// AccountService signs users up and in
type AccountService interface {
	Signup(ctx context.Context, creds accounts.Credentials) (*models.User, error)
	CreateAdmin(ctx context.Context, creds accounts.Credentials) (*models.User, error)
	Login(ctx context.Context, creds accounts.Credentials) (*accounts.Session, error)
	LoginAdmin(ctx context.Context, creds accounts.Credentials) (*accounts.Session, error)
	GetUser(ctx context.Context, id string) (*accounts.Profile, error)
}

// SynthesisService proxies billable synthesis calls
type SynthesisService interface {
	Synthesize(ctx context.Context, userID string, in tts.Input) (*tts.Outcome, error)
}

// QuotaService reads and bumps call counters
type QuotaService interface {
	CheckLimit(ctx context.Context, userID string) (quota.Snapshot, error)
	Increment(ctx context.Context, userID string) (quota.Snapshot, error)
	Blocks(s quota.Snapshot) bool
}

// AdminService implements the admin console operations
type AdminService interface {
	Dashboard(ctx context.Context) (*admin.Dashboard, error)
	DeleteUser(ctx context.Context, targetID, requesterID string) error
	ResetUsage(ctx context.Context, targetID string) (quota.Snapshot, error)
}

// UsageRecorder accepts usage events without blocking
type UsageRecorder interface {
	Record(evt usage.Event) error
}

// HealthCheck is one dependency probed by /health
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Options holds the HTTP settings of the API
type Options struct {
	BasePath         string
	TokenTTL         time.Duration
	SecureCookies    bool
	EnableTestRoutes bool
	AllowedOrigins   []string
}

// API bundles the services behind the HTTP handlers
type API struct {
	accounts AccountService
	proxy    SynthesisService
	quota    QuotaService
	admin    AdminService
	usage    UsageRecorder
	auth     *middleware.Authenticator
	health   []HealthCheck
	logger   *logging.Logger
	opts     Options
}

// usageSnapshot is the quota view embedded in responses
type usageSnapshot = quota.Snapshot

// userView is the user object returned by login and /auth/me
type userView struct {
	UserID           string `json:"userId"`
	Email            string `json:"email"`
	IsAdmin          bool   `json:"isAdmin"`
	APICallsUsed     int    `json:"apiCallsUsed"`
	APICallsLimit    int    `json:"apiCallsLimit"`
	APILimitExceeded *bool  `json:"apiLimitExceeded,omitempty"`
}

func newUserView(user *models.User, snap usageSnapshot, withExceeded bool) userView {
	view := userView{
		UserID:        user.ID,
		Email:         user.Email,
		IsAdmin:       user.IsAdmin,
		APICallsUsed:  snap.Used,
		APICallsLimit: snap.Limit,
	}
	if withExceeded {
		exceeded := snap.Exceeded
		view.APILimitExceeded = &exceeded
	}
	return view
}

// endpointName is the route path without the API prefix, as stored in usage logs
func (api *API) endpointName(c *gin.Context) string {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	trimmed := strings.TrimPrefix(path, strings.TrimRight(api.opts.BasePath, "/"))
	if trimmed == "" {
		return "/"
	}
	return trimmed
}

// recordUsage hands an event to the usage recorder. It is called after the
// response has been written so logging never delays the client.
func (api *API) recordUsage(c *gin.Context, userID, language string, result *tts.Result) {
	if api.usage == nil {
		return
	}

	evt := usage.Event{
		UserID:       userID,
		Endpoint:     api.endpointName(c),
		Method:       c.Request.Method,
		LanguageCode: language,
	}
	if result != nil {
		evt.AudioBase64 = result.AudioBase64
		evt.AudioFormat = result.Format
	}

	if err := api.usage.Record(evt); err != nil {
		api.logger.WithUserID(userID).WithError(err).Warn("Usage event not recorded")
	}
}

func (api *API) fail(c *gin.Context, err error, snap *usageSnapshot) {
	middleware.AbortWithError(c, api.logger, err, snap)
}
