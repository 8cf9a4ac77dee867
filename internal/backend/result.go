package backend

import (
	"fmt"

	"github.com/spec-kit/astro-gateway/internal/domain"
)

// AuthErrorKind classifies why a token could not be verified.
type AuthErrorKind string

const (
	// KindUnauthorized means the backend rejected the token (401/403).
	KindUnauthorized AuthErrorKind = "unauthorized"
	// KindRejected covers any other non-2xx answer.
	KindRejected AuthErrorKind = "rejected"
	// KindUnavailable means the backend could not be reached.
	KindUnavailable AuthErrorKind = "unavailable"
	// KindMalformed means a 2xx answer without a usable user record.
	KindMalformed AuthErrorKind = "malformed"
)

// AuthError is the failure half of Result.
type AuthError struct {
	Kind   AuthErrorKind
	Status int
	Err    error
}

func (e *AuthError) Error() string {
	msg := fmt.Sprintf("verify token: %s", e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Result is either a verified user or an AuthError, never both.
type Result struct {
	User *domain.User
	Err  *AuthError
}

// Ok wraps a verified user.
func Ok(user *domain.User) Result {
	return Result{User: user}
}

// Fail wraps a verification failure.
func Fail(kind AuthErrorKind, status int, err error) Result {
	return Result{Err: &AuthError{Kind: kind, Status: status, Err: err}}
}

// OK reports whether verification succeeded.
func (r Result) OK() bool {
	return r.Err == nil && r.User != nil
}
