package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/therealutkarshpriyadarshi/ttsgate/pkg/models"
)

// Quotas
//
// Every write is a single statement so concurrent requests for the same user
// serialize on the row lock instead of racing in application code.

// GetQuota retrieves a user's quota record
func (r *Repository) GetQuota(ctx context.Context, userID string) (*models.Quota, error) {
	var q models.Quota

	err := r.db.Pool.QueryRow(ctx, `
		SELECT user_id, calls_used, calls_limit, updated_at
		FROM quotas
		WHERE user_id = $1
	`, userID).Scan(&q.UserID, &q.CallsUsed, &q.CallsLimit, &q.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quota: %w", err)
	}

	return &q, nil
}

// EnsureQuota creates a default record; concurrent callers are harmless
func (r *Repository) EnsureQuota(ctx context.Context, userID string, defaultLimit int) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO quotas (user_id, calls_used, calls_limit)
		VALUES ($1, 0, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, defaultLimit)
	if err != nil {
		return fmt.Errorf("failed to ensure quota: %w", err)
	}
	return nil
}

// IncrementQuota adds one call to the counter, creating the record if needed
func (r *Repository) IncrementQuota(ctx context.Context, userID string, defaultLimit int) (*models.Quota, error) {
	var q models.Quota

	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO quotas (user_id, calls_used, calls_limit)
		VALUES ($1, 1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET calls_used = quotas.calls_used + 1, updated_at = NOW()
		RETURNING user_id, calls_used, calls_limit, updated_at
	`, userID, defaultLimit).Scan(&q.UserID, &q.CallsUsed, &q.CallsLimit, &q.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to increment quota: %w", err)
	}

	return &q, nil
}

// ResetQuota sets the counter to zero, keeping the limit
func (r *Repository) ResetQuota(ctx context.Context, userID string, defaultLimit int) (*models.Quota, error) {
	var q models.Quota

	err := r.admin.Pool.QueryRow(ctx, `
		INSERT INTO quotas (user_id, calls_used, calls_limit)
		VALUES ($1, 0, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET calls_used = 0, updated_at = NOW()
		RETURNING user_id, calls_used, calls_limit, updated_at
	`, userID, defaultLimit).Scan(&q.UserID, &q.CallsUsed, &q.CallsLimit, &q.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to reset quota: %w", err)
	}

	return &q, nil
}
