package services

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField means a required request field was empty.
	ErrMissingField = errors.New("missing required fields")
	// ErrDuplicateUser means the username or email is already registered.
	ErrDuplicateUser = errors.New("user already exists")
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized covers every bearer-token failure.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrStoreUnavailable wraps user store failures.
	ErrStoreUnavailable = errors.New("user store unavailable")
	// ErrPasswordTooLong means the password exceeds what the hasher accepts.
	ErrPasswordTooLong = errors.New("password too long")
)

// MissingFieldError names the first empty required field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

func (e *MissingFieldError) Unwrap() error {
	return ErrMissingField
}

func storeUnavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
