package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/amonks/taskdash/api"
)

var (
	// ErrNoPendingEmail indicates there is no signup awaiting verification
	// and no email was given.
	ErrNoPendingEmail = errors.New("no email awaiting verification")
)

// ResendLockedError reports a resend requested before the countdown ran out.
type ResendLockedError struct {
	Remaining time.Duration
}

func (e *ResendLockedError) Error() string {
	return "You can request a new code in " + FormatRemaining(e.Remaining) + "."
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func loginError(err error) error {
	if isContextErr(err) {
		return err
	}
	if errors.Is(err, api.ErrNetworkUnavailable) {
		return &api.AuthError{Kind: api.NetworkUnavailable, Err: err}
	}
	status, ok := api.StatusCode(err)
	if !ok {
		return err
	}
	switch {
	case status == http.StatusUnauthorized:
		return &api.AuthError{Kind: api.InvalidCredentials, Err: err}
	case status == http.StatusUnprocessableEntity:
		return &api.AuthError{Kind: api.ValidationFailed, Err: fieldErrors(err)}
	case status == http.StatusTooManyRequests:
		return &api.AuthError{Kind: api.RateLimited, Err: err}
	case status >= 500:
		return &api.AuthError{Kind: api.ServerFault, Err: err}
	}
	return &api.AuthError{Kind: api.InvalidCredentials, Err: err}
}

func registerError(err error) error {
	if isContextErr(err) {
		return err
	}
	if errors.Is(err, api.ErrNetworkUnavailable) {
		return &api.AuthError{Kind: api.NetworkUnavailable, Err: err}
	}
	status, ok := api.StatusCode(err)
	if !ok {
		return err
	}
	switch {
	case status == http.StatusUnprocessableEntity:
		return fieldErrors(err)
	case status == http.StatusConflict:
		return &api.AuthError{Kind: api.AccountExists, Err: err}
	case status == http.StatusTooManyRequests:
		return &api.AuthError{Kind: api.RateLimited, Err: err}
	case status >= 500:
		return &api.AuthError{Kind: api.ServerFault, Err: err}
	}
	return err
}

func otpError(err error) error {
	if isContextErr(err) {
		return err
	}
	if errors.Is(err, api.ErrNetworkUnavailable) {
		return &api.AuthError{Kind: api.NetworkUnavailable, Err: err}
	}
	status, ok := api.StatusCode(err)
	if !ok {
		return err
	}
	switch {
	case status == http.StatusUnprocessableEntity, status == http.StatusNotFound:
		return &api.OTPError{Kind: api.OTPInvalid, Err: err}
	case status == http.StatusGone:
		return &api.OTPError{Kind: api.OTPExpired, Err: err}
	case status == http.StatusTooManyRequests:
		return &api.OTPError{Kind: api.OTPRateLimited, Err: err}
	case status >= 500:
		return &api.AuthError{Kind: api.ServerFault, Err: err}
	}
	return &api.OTPError{Kind: api.OTPInvalid, Err: err}
}

// fieldErrors lifts the server's per-field messages out of a 422.
func fieldErrors(err error) *api.ValidationError {
	var statusErr *api.StatusError
	fields := map[string][]string{}
	if errors.As(err, &statusErr) && len(statusErr.Fields) > 0 {
		fields = statusErr.Fields
	}
	return &api.ValidationError{Fields: fields, Err: err}
}
