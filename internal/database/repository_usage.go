package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/therealutkarshpriyadarshi/ttsgate/pkg/models"
)

// Languages

// GetLanguageIDByCode resolves a language code case-insensitively
func (r *Repository) GetLanguageIDByCode(ctx context.Context, code string) (int, error) {
	var id int

	err := r.db.Pool.QueryRow(ctx,
		`SELECT id FROM languages WHERE LOWER(code) = LOWER($1)`,
		strings.TrimSpace(code),
	).Scan(&id)

	if errors.Is(err, pgx.ErrNoRows) {
		return 0, models.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get language: %w", err)
	}

	return id, nil
}

// Usage logs

// CreateUsageLog appends a usage record
func (r *Repository) CreateUsageLog(ctx context.Context, entry *models.UsageLog) error {
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO usage_logs (user_id, language_id, endpoint, method, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))
		RETURNING id, created_at
	`, entry.UserID, entry.LanguageID, entry.Endpoint, entry.Method, nullTime(entry),
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create usage log: %w", err)
	}
	return nil
}

func nullTime(entry *models.UsageLog) interface{} {
	if entry.CreatedAt.IsZero() {
		return nil
	}
	return entry.CreatedAt
}

// GetEndpointStats aggregates usage logs per (method, endpoint)
func (r *Repository) GetEndpointStats(ctx context.Context) ([]*models.EndpointStat, error) {
	rows, err := r.admin.Pool.Query(ctx, `
		SELECT method, endpoint, COUNT(*) AS calls, MAX(created_at) AS last_called
		FROM usage_logs
		GROUP BY method, endpoint
		ORDER BY calls DESC, last_called DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get endpoint stats: %w", err)
	}
	defer rows.Close()

	stats := make([]*models.EndpointStat, 0)
	for rows.Next() {
		var s models.EndpointStat
		if err := rows.Scan(&s.Method, &s.Endpoint, &s.Count, &s.LastCalled); err != nil {
			return nil, fmt.Errorf("failed to scan endpoint stat: %w", err)
		}
		stats = append(stats, &s)
	}

	return stats, rows.Err()
}
