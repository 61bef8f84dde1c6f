package models

import "errors"

var (
	// ErrNotFound is returned by stores when a record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEmail is returned when an email is already registered
	ErrDuplicateEmail = errors.New("email already registered")
)
