package apperrors

import "errors"

// Resource errors
var (
	ErrAlreadyExists    = errors.New("resource already exists")
	ErrPermissionDenied = errors.New("permission denied")
	ErrValidation       = errors.New("validation failed")
)

// Account errors
var (
	ErrEmailAlreadyExists  = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountIDCollision  = errors.New("account id already taken by another email")
	ErrNoActiveSession     = errors.New("no active session")
	ErrPasswordMismatch    = errors.New("password confirmation does not match")
	ErrAccountNotFound     = errors.New("account not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrRequestNotFound     = errors.New("friend request not found")
	ErrInviteNotFound      = errors.New("invite not found")
	ErrChatNotFound        = errors.New("chat not found")
	ErrNotificationMissing = errors.New("notification not found")
)

// State errors
var (
	// ErrInvalidTransition is returned when a status change leaves a terminal state.
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrSelfRelation      = errors.New("users cannot target themselves")
	ErrInvalidRating     = errors.New("rating must be between 1 and 5")
)
