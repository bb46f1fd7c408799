package models

import "errors"

// Common errors for catalogue operations.
var (
	// Job errors
	ErrJobNotFound  = errors.New("expected job not found")
	ErrDuplicateJob = errors.New("expected job already exists")

	// Entry errors
	ErrEntryNotFound = errors.New("backup entry not found")

	// User errors
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user already exists")
	ErrUserDisabled  = errors.New("user account is disabled")
)
