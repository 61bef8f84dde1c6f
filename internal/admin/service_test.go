package admin

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/ttsgate/internal/apperrors"
	"github.com/therealutkarshpriyadarshi/ttsgate/internal/quota"
	"github.com/therealutkarshpriyadarshi/ttsgate/pkg/models"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) ListUsersWithUsage(ctx context.Context, defaultLimit int) ([]*models.UserUsage, error) {
	args := m.Called(ctx, defaultLimit)
	if u := args.Get(0); u != nil {
		return u.([]*models.UserUsage), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) DeleteUser(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) GetEndpointStats(ctx context.Context) ([]*models.EndpointStat, error) {
	args := m.Called(ctx)
	if s := args.Get(0); s != nil {
		return s.([]*models.EndpointStat), args.Error(1)
	}
	return nil, args.Error(1)
}

type counterLedger struct {
	used  map[string]int
	err   error
	calls int
}

func (l *counterLedger) Reset(ctx context.Context, userID string) (quota.Snapshot, error) {
	l.calls++
	if l.err != nil {
		return quota.Snapshot{}, l.err
	}
	l.used[userID] = 0
	return quota.NewSnapshot(0, models.DefaultCallsLimit), nil
}

func (l *counterLedger) DefaultLimit() int {
	return models.DefaultCallsLimit
}

func assertCode(t *testing.T, err error, code apperrors.Code, status int) {
	t.Helper()
	appErr, ok := apperrors.As(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
	assert.Equal(t, status, appErr.HTTPCode)
}

func TestDeleteUser(t *testing.T) {
	ctx := context.Background()

	t.Run("self", func(t *testing.T) {
		store := &mockStore{}
		svc := NewService(store, &counterLedger{}, nil)

		err := svc.DeleteUser(ctx, "admin-1", "admin-1")
		assertCode(t, err, apperrors.CodeCannotDeleteSelf, http.StatusBadRequest)
		store.AssertNotCalled(t, "DeleteUser", mock.Anything, mock.Anything)
	})

	t.Run("other admin", func(t *testing.T) {
		store := &mockStore{}
		store.On("GetUserByID", ctx, "admin-2").Return(&models.User{ID: "admin-2", IsAdmin: true}, nil)
		svc := NewService(store, &counterLedger{}, nil)

		err := svc.DeleteUser(ctx, "admin-2", "admin-1")
		assertCode(t, err, apperrors.CodeCannotDeleteAdmin, http.StatusForbidden)
		store.AssertNotCalled(t, "DeleteUser", mock.Anything, mock.Anything)
	})

	t.Run("unknown", func(t *testing.T) {
		store := &mockStore{}
		store.On("GetUserByID", ctx, "ghost").Return(nil, models.ErrNotFound)
		svc := NewService(store, &counterLedger{}, nil)

		err := svc.DeleteUser(ctx, "ghost", "admin-1")
		assertCode(t, err, apperrors.CodeUserNotFound, http.StatusNotFound)
	})

	t.Run("deleted concurrently", func(t *testing.T) {
		store := &mockStore{}
		store.On("GetUserByID", ctx, "u-1").Return(&models.User{ID: "u-1"}, nil)
		store.On("DeleteUser", ctx, "u-1").Return(models.ErrNotFound)
		svc := NewService(store, &counterLedger{}, nil)

		err := svc.DeleteUser(ctx, "u-1", "admin-1")
		assertCode(t, err, apperrors.CodeUserNotFound, http.StatusNotFound)
	})

	t.Run("regular user", func(t *testing.T) {
		store := &mockStore{}
		store.On("GetUserByID", ctx, "u-1").Return(&models.User{ID: "u-1"}, nil)
		store.On("DeleteUser", ctx, "u-1").Return(nil)
		svc := NewService(store, &counterLedger{}, nil)

		require.NoError(t, svc.DeleteUser(ctx, "u-1", "admin-1"))
		store.AssertExpectations(t)
	})
}

func TestResetUsage(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	store.On("GetUserByID", ctx, "u-1").Return(&models.User{ID: "u-1"}, nil)
	store.On("GetUserByID", ctx, "ghost").Return(nil, models.ErrNotFound)
	ledger := &counterLedger{used: map[string]int{"u-1": 15}}
	svc := NewService(store, ledger, nil)

	for i := 0; i < 2; i++ {
		snap, err := svc.ResetUsage(ctx, "u-1")
		require.NoError(t, err)
		assert.Equal(t, 0, snap.Used)
		assert.Equal(t, models.DefaultCallsLimit, snap.Limit)
	}
	assert.Equal(t, 0, ledger.used["u-1"])

	_, err := svc.ResetUsage(ctx, "ghost")
	assertCode(t, err, apperrors.CodeUserNotFound, http.StatusNotFound)
	assert.Equal(t, 2, ledger.calls)
}

func TestResetUsageLedgerFailure(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	store.On("GetUserByID", ctx, "u-1").Return(&models.User{ID: "u-1"}, nil)
	svc := NewService(store, &counterLedger{err: errors.New("db down")}, nil)

	_, err := svc.ResetUsage(ctx, "u-1")
	assertCode(t, err, apperrors.CodeInternal, http.StatusInternalServerError)
}

func TestEndpointStatisticsOrdering(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	store := &mockStore{}
	store.On("GetEndpointStats", ctx).Return([]*models.EndpointStat{
		{Method: "POST", Endpoint: "/usage/increment", Count: 3, LastCalled: base},
		{Method: "POST", Endpoint: "/tts/synthesize", Count: 10, LastCalled: base},
		{Method: "GET", Endpoint: "/auth/me", Count: 3, LastCalled: base.Add(time.Hour)},
	}, nil)
	svc := NewService(store, &counterLedger{}, nil)

	stats, err := svc.EndpointStatistics(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 3)
	assert.Equal(t, "/tts/synthesize", stats[0].Endpoint)
	assert.Equal(t, "/auth/me", stats[1].Endpoint)
	assert.Equal(t, "/usage/increment", stats[2].Endpoint)
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	store := &mockStore{}
	store.On("ListUsersWithUsage", ctx, models.DefaultCallsLimit).Return([]*models.UserUsage{
		{ID: "u-1", Email: "a@b.com", CallsUsed: 0, CallsLimit: 20},
	}, nil)
	store.On("GetEndpointStats", ctx).Return(nil, nil)
	svc := NewService(store, &counterLedger{}, nil)

	dash, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Len(t, dash.Users, 1)
	assert.NotNil(t, dash.EndpointStats)
	assert.Empty(t, dash.EndpointStats)

	failing := &mockStore{}
	failing.On("ListUsersWithUsage", ctx, models.DefaultCallsLimit).Return(nil, errors.New("db down"))
	_, err = NewService(failing, &counterLedger{}, nil).Dashboard(ctx)
	assertCode(t, err, apperrors.CodeInternal, http.StatusInternalServerError)
}
