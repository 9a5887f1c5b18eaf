package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrNetworkUnavailable indicates the request never got a response.
	ErrNetworkUnavailable = errors.New("network unavailable")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrServerFault indicates the server failed with a 5xx status.
	ErrServerFault = errors.New("server error")

	// ErrAttachmentUnreadable indicates the local attachment could not be
	// read, so the request was never completed.
	ErrAttachmentUnreadable = errors.New("attachment unreadable")
)

// StatusError is a non-2xx response as the server described it.
type StatusError struct {
	Status  int
	Message string
	Fields  map[string][]string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: %d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
	}
	return fmt.Sprintf("api error: %d %s", e.Status, http.StatusText(e.Status))
}

// StatusCode returns the HTTP status carried by err, if any.
func StatusCode(err error) (int, bool) {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status, true
	}
	return 0, false
}

// AuthKind distinguishes authentication failures.
type AuthKind string

const (
	InvalidCredentials AuthKind = "invalid_credentials"
	ValidationFailed   AuthKind = "validation_failed"
	RateLimited        AuthKind = "rate_limited"
	ServerFault        AuthKind = "server_fault"
	Unauthenticated    AuthKind = "unauthenticated"
	AccountExists      AuthKind = "account_exists"
	NetworkUnavailable AuthKind = "network_unavailable"
)

// AuthError reports a failed login, signup or authenticated call.
type AuthError struct {
	Kind AuthKind
	Err  error
}

func (e *AuthError) Error() string {
	return "auth: " + string(e.Kind)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsAuth reports whether err is an AuthError of the given kind.
func IsAuth(err error, kind AuthKind) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.Kind == kind
}

// OTPKind distinguishes one-time-code failures.
type OTPKind string

const (
	OTPInvalid     OTPKind = "invalid"
	OTPExpired     OTPKind = "expired"
	OTPRateLimited OTPKind = "rate_limited"
)

// OTPError reports a rejected verification code.
type OTPError struct {
	Kind OTPKind
	Err  error
}

func (e *OTPError) Error() string {
	return "otp: " + string(e.Kind)
}

func (e *OTPError) Unwrap() error {
	return e.Err
}

// IsOTP reports whether err is an OTPError of the given kind.
func IsOTP(err error, kind OTPKind) bool {
	var otpErr *OTPError
	return errors.As(err, &otpErr) && otpErr.Kind == kind
}

// ValidationError maps field names to messages. It is produced both by the
// server (422) and by local checks that run before any request.
type ValidationError struct {
	Fields map[string][]string
	Err    error
}

// FieldError builds a single-field validation error wrapping err.
func FieldError(field, message string, err error) *ValidationError {
	return &ValidationError{Fields: map[string][]string{field: {message}}, Err: err}
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, field := range e.FieldNames() {
		parts = append(parts, field+": "+strings.Join(e.Fields[field], " "))
	}
	if len(parts) == 0 {
		return "validation failed"
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// FieldNames returns the failing fields in sorted order.
func (e *ValidationError) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// First returns the first message for field, or "".
func (e *ValidationError) First(field string) string {
	if messages := e.Fields[field]; len(messages) > 0 {
		return messages[0]
	}
	return ""
}

// Classify maps a raw client error onto the shared taxonomy for calls that
// have no operation-specific mapping (the todo endpoints).
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		if errors.Is(err, ErrNetworkUnavailable) {
			return &AuthError{Kind: NetworkUnavailable, Err: err}
		}
		return err
	}
	switch {
	case statusErr.Status == http.StatusUnauthorized:
		return &AuthError{Kind: Unauthenticated, Err: err}
	case statusErr.Status == http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case statusErr.Status == http.StatusUnprocessableEntity:
		return &ValidationError{Fields: statusErr.Fields, Err: err}
	case statusErr.Status == http.StatusTooManyRequests:
		return &AuthError{Kind: RateLimited, Err: err}
	case statusErr.Status >= 500:
		return fmt.Errorf("%w: %w", ErrServerFault, err)
	}
	return err
}

// IsAmbiguous reports whether a failed mutation may still have been applied
// by the server, or the local copy is known to be stale.
func IsAmbiguous(err error) bool {
	return errors.Is(err, ErrNetworkUnavailable) || errors.Is(err, ErrServerFault) || errors.Is(err, ErrNotFound)
}

// Message returns the short text shown to a person for err. It never
// exposes transport details.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var authErr *AuthError
	if errors.As(err, &authErr) {
		switch authErr.Kind {
		case InvalidCredentials:
			return "Invalid email or password."
		case ValidationFailed:
			return "Please provide a valid email and password."
		case RateLimited:
			return "Too many attempts. Please try again later."
		case ServerFault:
			return "Server error. Please try again later."
		case Unauthenticated:
			return "Your session has expired. Please log in again."
		case AccountExists:
			return "Account already exists and is activated. Please log in instead."
		case NetworkUnavailable:
			return "Network error. Please check your connection."
		}
	}

	var otpErr *OTPError
	if errors.As(err, &otpErr) {
		switch otpErr.Kind {
		case OTPInvalid:
			return "Invalid OTP code or email address."
		case OTPExpired:
			return "OTP has expired. Please request a new one."
		case OTPRateLimited:
			return "Too many attempts. Please try again later."
		}
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		names := validationErr.FieldNames()
		if len(names) == 1 {
			if first := validationErr.First(names[0]); first != "" {
				return first
			}
		}
		return "Please fix the errors below and try again."
	}

	switch {
	case errors.Is(err, ErrNetworkUnavailable):
		return "Network error. Please check your connection."
	case errors.Is(err, ErrNotFound):
		return "That todo no longer exists."
	case errors.Is(err, ErrServerFault):
		return "Server error. Please try again later."
	case errors.Is(err, ErrAttachmentUnreadable):
		return "Could not read the attached file."
	}
	return "Something went wrong. Please try again."
}
