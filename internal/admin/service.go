package admin

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"github.com/therealutkarshpriyadarshi/ttsgate/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/logging"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/quota"
	"github.com/therealutkarshpriyadarshi/ttsgate/pkg/models"
)

// Store is the privileged view of the credential store and usage log
type Store interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsersWithUsage(ctx context.Context, defaultLimit int) ([]*models.UserUsage, error)
	DeleteUser(ctx context.Context, id string) error
	GetEndpointStats(ctx context.Context) ([]*models.EndpointStat, error)
}

// Ledger is the part of the quota ledger used by administrators
type Ledger interface {
	Reset(ctx context.Context, userID string) (quota.Snapshot, error)
	DefaultLimit() int
}

// Dashboard is the admin console overview
type Dashboard struct {
	Users         []*models.UserUsage    `json:"users"`
	EndpointStats []*models.EndpointStat `json:"endpointStats"`
}

// Service implements the administrator operations
type Service struct {
	store  Store
	ledger Ledger
	logger *logging.Logger
}

// NewService creates an admin service
func NewService(store Store, ledger Ledger, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Service{store: store, ledger: ledger, logger: logger}
}

// ListUsersWithUsage lists all users with their counters
func (s *Service) ListUsersWithUsage(ctx context.Context) ([]*models.UserUsage, error) {
	users, err := s.store.ListUsersWithUsage(ctx, s.ledger.DefaultLimit())
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return users, nil
}

// DeleteUser removes a non-admin account other than the requester's own
func (s *Service) DeleteUser(ctx context.Context, targetID, requesterID string) error {
	if targetID == requesterID {
		return apperrors.New(apperrors.CodeCannotDeleteSelf, "You cannot delete your own account", http.StatusBadRequest)
	}

	target, err := s.getUser(ctx, targetID)
	if err != nil {
		return err
	}
	if target.IsAdmin {
		return apperrors.Forbidden(apperrors.CodeCannotDeleteAdmin, "Administrator accounts cannot be deleted")
	}

	err = s.store.DeleteUser(ctx, targetID)
	if errors.Is(err, models.ErrNotFound) {
		return userNotFound()
	}
	if err != nil {
		return apperrors.Internal(err)
	}

	s.logger.WithUserID(requesterID).
		WithField("target_id", targetID).
		Info("User deleted")
	return nil
}

// ResetUsage sets a user's call counter back to zero
func (s *Service) ResetUsage(ctx context.Context, targetID string) (quota.Snapshot, error) {
	if _, err := s.getUser(ctx, targetID); err != nil {
		return quota.Snapshot{}, err
	}

	snap, err := s.ledger.Reset(ctx, targetID)
	if err != nil {
		return quota.Snapshot{}, apperrors.Internal(err)
	}
	return snap, nil
}

// EndpointStatistics aggregates the usage log per (method, endpoint), most
// called first and most recent first among equals
func (s *Service) EndpointStatistics(ctx context.Context) ([]*models.EndpointStat, error) {
	stats, err := s.store.GetEndpointStats(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].LastCalled.After(stats[j].LastCalled)
	})
	return stats, nil
}

// Dashboard returns users and endpoint statistics together
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	users, err := s.ListUsersWithUsage(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := s.EndpointStatistics(ctx)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = []*models.EndpointStat{}
	}
	return &Dashboard{Users: users, EndpointStats: stats}, nil
}

func (s *Service) getUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, userNotFound()
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return user, nil
}

func userNotFound() *apperrors.AppError {
	return apperrors.NotFound(apperrors.CodeUserNotFound, "User not found")
}
