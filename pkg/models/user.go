package models

import (
	"time"
)

// AccountStatus represents the lifecycle state of an account
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusSuspended AccountStatus = "suspended"
)

// User represents an account that can call the gateway
type User struct {
	ID            string        `json:"id" db:"id"`
	Email         string        `json:"email" db:"email"`
	PasswordHash  string        `json:"-" db:"password_hash"`
	IsAdmin       bool          `json:"is_admin" db:"is_admin"`
	AccountStatus AccountStatus `json:"account_status" db:"account_status"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
	LastLogin     *time.Time    `json:"last_login,omitempty" db:"last_login"`
}

// IsActive reports whether the account may authenticate
func (u *User) IsActive() bool {
	return u.AccountStatus == "" || u.AccountStatus == AccountStatusActive
}

// UserUsage is a user joined with its quota record, as listed in the admin console
type UserUsage struct {
	ID            string        `json:"userId"`
	Email         string        `json:"email"`
	IsAdmin       bool          `json:"isAdmin"`
	AccountStatus AccountStatus `json:"accountStatus"`
	CreatedAt     time.Time     `json:"createdAt"`
	LastLogin     *time.Time    `json:"lastLogin,omitempty"`
	CallsUsed     int           `json:"apiCallsUsed"`
	CallsLimit    int           `json:"apiCallsLimit"`
}
