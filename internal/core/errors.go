// Package core defines the fundamental types and errors for the time capsule daemon.
package core

import "errors"

// Core errors that can occur across the system
var (
	// Storage errors
	ErrReminderNotFound = errors.New("reminder not found")
	ErrNudgeNotFound    = errors.New("nudge not found")
	ErrCapsuleNotFound  = errors.New("capsule not found")
	ErrMigrationFailed  = errors.New("migration failed")

	// Item errors
	ErrInvalidWindow    = errors.New("capsule window is invalid: earliest must not be after latest")
	ErrAlreadyDelivered = errors.New("item already delivered")

	// Validation errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingRequired = errors.New("missing required field")
)
