package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/therealutkarshpriyadarshi/ttsgate/pkg/models"
)

const uniqueViolation = "23505"

// Repository provides database operations.
// Routine traffic goes through the app pool; destructive and console-wide
// operations go through the admin pool.
type Repository struct {
	db    *DB
	admin *DB
}

// NewRepository creates a new repository. admin may be nil, in which case the
// app pool is used for everything.
func NewRepository(db, admin *DB) *Repository {
	if admin == nil {
		admin = db
	}
	return &Repository{db: db, admin: admin}
}

// Health checks both pools
func (r *Repository) Health(ctx context.Context) error {
	if err := r.db.Health(ctx); err != nil {
		return err
	}
	if r.admin != r.db {
		return r.admin.Health(ctx)
	}
	return nil
}

// Users

const userColumns = `id, email, password_hash, is_admin, account_status, created_at, updated_at, last_login`

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	var status string

	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.IsAdmin, &status,
		&user.CreatedAt, &user.UpdatedAt, &user.LastLogin,
	)
	if err != nil {
		return nil, err
	}

	user.AccountStatus = models.AccountStatus(status)
	return &user, nil
}

// GetUserByEmail retrieves a user by email, case-insensitively
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = LOWER($1)`

	user, err := scanUser(r.db.Pool.QueryRow(ctx, query, strings.TrimSpace(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return user, nil
}

// GetUserByID retrieves a user by ID
func (r *Repository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, models.ErrNotFound
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// CreateUserWithQuota inserts a user and its quota record in one transaction.
// Admin accounts are created through the admin pool.
func (r *Repository) CreateUserWithQuota(ctx context.Context, user *models.User, callsLimit int) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.AccountStatus == "" {
		user.AccountStatus = models.AccountStatusActive
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	pool := r.db
	if user.IsAdmin {
		pool = r.admin
	}

	err := pgx.BeginFunc(ctx, pool.Pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO users (id, email, password_hash, is_admin, account_status)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at, updated_at
		`, user.ID, user.Email, user.PasswordHash, user.IsAdmin, string(user.AccountStatus),
		).Scan(&user.CreatedAt, &user.UpdatedAt)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO quotas (user_id, calls_used, calls_limit)
			VALUES ($1, 0, $2)
		`, user.ID, callsLimit)
		return err
	})

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return models.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// UpdateLastLogin stamps the user's last successful login
func (r *Repository) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE users SET last_login = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// DeleteUser removes a user; quota and usage rows cascade
func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	tag, err := r.admin.Pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListUsersWithUsage lists every user with its counters; users without a quota
// record report 0 calls used and defaultLimit.
func (r *Repository) ListUsersWithUsage(ctx context.Context, defaultLimit int) ([]*models.UserUsage, error) {
	query := `
		SELECT u.id, u.email, u.is_admin, u.account_status, u.created_at, u.last_login,
		       COALESCE(q.calls_used, 0), COALESCE(q.calls_limit, $1)
		FROM users u
		LEFT JOIN quotas q ON q.user_id = u.id
		ORDER BY u.created_at DESC
	`

	rows, err := r.admin.Pool.Query(ctx, query, defaultLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.UserUsage, 0)
	for rows.Next() {
		var u models.UserUsage
		var status string
		if err := rows.Scan(
			&u.ID, &u.Email, &u.IsAdmin, &status, &u.CreatedAt, &u.LastLogin,
			&u.CallsUsed, &u.CallsLimit,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.AccountStatus = models.AccountStatus(status)
		users = append(users, &u)
	}

	return users, rows.Err()
}
