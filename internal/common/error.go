// Package common defines shared constants and sentinel errors used across
// repositories, services and the transport layer. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")
	ErrInvalidInput   = errors.New("invalid input")

	// Credential errors.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrDuplicateEmail     = errors.New("email already exists")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenNotFound = errors.New("refresh token not found")
	ErrTokenBlocked  = errors.New("refresh token is blocked")

	// Payment errors.
	ErrAlreadyPaid      = errors.New("order is already paid")
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrSignatureInvalid = errors.New("webhook signature verification failed")
	ErrGatewayError     = errors.New("payment gateway error")
	ErrOrderNotFound    = errors.New("order not found")
)
