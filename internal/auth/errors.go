package auth

import (
	"errors"
	"net/http"
)

var (
	ErrUnauthorized = errors.New("auth: unauthorized")
	ErrForbidden    = errors.New("auth: forbidden")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// AuthorizationError is a rejected credential. Nothing runs after it.
type AuthorizationError struct {
	Status int
	Err    error
}

func (e *AuthorizationError) Error() string {
	if e.Err == nil {
		return ErrUnauthorized.Error()
	}
	return e.Err.Error()
}

func (e *AuthorizationError) Unwrap() error { return e.Err }

func unauthorized(err error) *AuthorizationError {
	return &AuthorizationError{Status: http.StatusUnauthorized, Err: errors.Join(ErrUnauthorized, err)}
}

func forbidden() *AuthorizationError {
	return &AuthorizationError{Status: http.StatusForbidden, Err: ErrForbidden}
}
