// Package common defines shared constants and sentinel errors used across
// the taskforge server layers. Callers should use errors.Is to match these
// values; the HTTP layer maps them to status codes in one place.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal         = errors.New("internal error")
	ErrorUnauthorized     = errors.New("unauthorized")
	ErrorPermissionDenied = errors.New("permission denied")
	ErrorConflict         = errors.New("conflict")

	// Validation errors. Services wrap this with a human readable reason:
	//
	//	fmt.Errorf("%w: title is required", common.ErrorValidation)
	ErrorValidation = errors.New("validation error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// Storage errors.
	ErrStorage = errors.New("storage error")
)
