package accounts

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/ttsgate/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/auth"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/logging"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/metrics"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/quota"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/validation"
	"github.com/therealutkarshpriyadarshi/ttsgate/pkg/models"
)

const (
	// MaxLoginAttempts is the number of failed logins allowed per email and window
	MaxLoginAttempts = 10
	// LoginWindow is the throttling window for failed logins
	LoginWindow = 15 * time.Minute

	invalidCredentials = "Invalid email or password"
)

// Login kinds
const (
	KindUser  = "user"
	KindAdmin = "admin"
)

// Store persists user accounts
type Store interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	CreateUserWithQuota(ctx context.Context, user *models.User, callsLimit int) error
	UpdateLastLogin(ctx context.Context, id string) error
}

// Ledger reads quota state for account responses
type Ledger interface {
	CheckLimit(ctx context.Context, userID string) (quota.Snapshot, error)
	DefaultLimit() int
}

// Throttle counts login attempts per key
type Throttle interface {
	CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error)
	ClearRateLimit(ctx context.Context, key string) error
}

// Credentials is the body of signup, login and admin creation requests
type Credentials struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

// Session is the result of a successful login
type Session struct {
	User  *models.User
	Token string
	Usage quota.Snapshot
}

// Profile is a user with its current quota state
type Profile struct {
	User  *models.User
	Usage quota.Snapshot
}

// Service implements signup, login and account lookup
type Service struct {
	store     Store
	ledger    Ledger
	tokens    *auth.TokenService
	validator *validation.Validator
	throttle  Throttle
	logger    *logging.Logger

	dummyHash string
}

// NewService creates an account service. throttle may be nil.
func NewService(store Store, ledger Ledger, tokens *auth.TokenService, throttle Throttle, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	// Unknown emails are checked against this hash so both paths cost a bcrypt round
	dummy, _ := auth.HashPassword("ttsgate-dummy-password")

	return &Service{
		store:     store,
		ledger:    ledger,
		tokens:    tokens,
		validator: validation.New(),
		throttle:  throttle,
		logger:    logger,
		dummyHash: dummy,
	}
}

// Tokens returns the token service used to issue sessions
func (s *Service) Tokens() *auth.TokenService {
	return s.tokens
}

// Signup creates a regular account with a fresh quota record
func (s *Service) Signup(ctx context.Context, creds Credentials) (*models.User, error) {
	return s.create(ctx, creds, false)
}

// CreateAdmin creates an administrator account
func (s *Service) CreateAdmin(ctx context.Context, creds Credentials) (*models.User, error) {
	return s.create(ctx, creds, true)
}

func (s *Service) create(ctx context.Context, creds Credentials, isAdmin bool) (*models.User, error) {
	creds.Email = normalizeEmail(creds.Email)
	if err := s.validate(creds); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(creds.Password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	user := &models.User{
		Email:         creds.Email,
		PasswordHash:  hash,
		IsAdmin:       isAdmin,
		AccountStatus: models.AccountStatusActive,
	}

	err = s.store.CreateUserWithQuota(ctx, user, s.ledger.DefaultLimit())
	if errors.Is(err, models.ErrDuplicateEmail) {
		return nil, apperrors.New(apperrors.CodeEmailExists, "Email already registered", http.StatusBadRequest)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.logger.WithUserID(user.ID).
		WithField("is_admin", isAdmin).
		Info("Account created")
	return user, nil
}

// Login authenticates a regular or admin user and issues a session token
func (s *Service) Login(ctx context.Context, creds Credentials) (*Session, error) {
	return s.login(ctx, creds, KindUser)
}

// LoginAdmin authenticates an administrator. Non-admin accounts get the same
// answer as a wrong password.
func (s *Service) LoginAdmin(ctx context.Context, creds Credentials) (*Session, error) {
	return s.login(ctx, creds, KindAdmin)
}

func (s *Service) login(ctx context.Context, creds Credentials, kind string) (*Session, error) {
	creds.Email = normalizeEmail(creds.Email)
	if creds.Email == "" || creds.Password == "" {
		return nil, apperrors.Validation("Email and password are required")
	}

	throttleKey := "login:" + kind + ":" + creds.Email
	if s.throttle != nil {
		allowed, err := s.throttle.CheckRateLimit(ctx, throttleKey, MaxLoginAttempts, LoginWindow)
		if err != nil {
			s.logger.WithError(err).Warn("Login throttle unavailable")
		} else if !allowed {
			metrics.RecordLoginAttempt(kind, false)
			return nil, apperrors.New(apperrors.CodeRateLimited, "Too many login attempts, try again later", http.StatusTooManyRequests)
		}
	}

	user, err := s.store.GetUserByEmail(ctx, creds.Email)
	if errors.Is(err, models.ErrNotFound) {
		auth.CheckPassword(creds.Password, s.dummyHash)
		metrics.RecordLoginAttempt(kind, false)
		return nil, s.invalidCredentials()
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	if !auth.CheckPassword(creds.Password, user.PasswordHash) {
		metrics.RecordLoginAttempt(kind, false)
		return nil, s.invalidCredentials()
	}
	if kind == KindAdmin && !user.IsAdmin {
		metrics.RecordLoginAttempt(kind, false)
		return nil, s.invalidCredentials()
	}
	if !user.IsActive() {
		metrics.RecordLoginAttempt(kind, false)
		return nil, apperrors.Forbidden(apperrors.CodeAccountSuspended, "Account is suspended")
	}

	if s.throttle != nil {
		if err := s.throttle.ClearRateLimit(ctx, throttleKey); err != nil {
			s.logger.WithError(err).Warn("Failed to clear login throttle")
		}
	}

	if err := s.store.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.WithUserID(user.ID).ErrorWithErr("Failed to update last login", err)
	} else {
		now := time.Now().UTC()
		user.LastLogin = &now
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	usage, err := s.ledger.CheckLimit(ctx, user.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	metrics.RecordLoginAttempt(kind, true)
	s.logger.WithUserID(user.ID).WithField("kind", kind).Info("Login succeeded")

	return &Session{User: user, Token: token, Usage: usage}, nil
}

// GetUser returns an account and its current quota state
func (s *Service) GetUser(ctx context.Context, id string) (*Profile, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, apperrors.NotFound(apperrors.CodeUserNotFound, "User not found")
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	usage, err := s.ledger.CheckLimit(ctx, user.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	return &Profile{User: user, Usage: usage}, nil
}

func (s *Service) validate(creds Credentials) error {
	err := s.validator.Validate(creds)
	if err == nil {
		return nil
	}

	var verr *validation.Error
	if errors.As(err, &verr) {
		return apperrors.Validation(verr.Message())
	}
	return apperrors.Internal(err)
}

func (s *Service) invalidCredentials() *apperrors.AppError {
	return apperrors.New(apperrors.CodeInvalidCredentials, invalidCredentials, http.StatusUnauthorized)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
