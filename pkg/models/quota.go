package models

import "time"

// DefaultCallsLimit is the number of billable calls granted to a new account
const DefaultCallsLimit = 20

// Quota is the per-user call counter. It is 1:1 with User.
type Quota struct {
	UserID     string    `json:"user_id" db:"user_id"`
	CallsUsed  int       `json:"calls_used" db:"calls_used"`
	CallsLimit int       `json:"calls_limit" db:"calls_limit"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
