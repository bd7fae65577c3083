package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("operation failed")
	ErrUpstream           = errors.New("upstream service error")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")

	// Payment sessions
	ErrSessionExpired = errors.New("payment session expired")
	ErrTerminalState  = errors.New("payment session already in a terminal state")

	// Webhooks
	ErrMissingSignature       = errors.New("missing webhook signature")
	ErrInvalidSignature       = errors.New("invalid webhook signature")
	ErrSignatureNotConfigured = errors.New("webhook secret not configured for this environment")
	ErrMalformedEvent         = errors.New("malformed webhook event")
)
