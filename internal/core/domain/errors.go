package domain

import "errors"

// Common domain errors
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Session errors
var (
	ErrNoPendingTwoFactor      = errors.New("no pending two-factor login")
	ErrNoPendingPasswordChange = errors.New("no pending password change")
	ErrWeakPassword            = errors.New("password does not meet requirements")
	ErrUnexpectedLoginResponse = errors.New("unexpected login response")
)
