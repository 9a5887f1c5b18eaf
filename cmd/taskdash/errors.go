package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/amonks/taskdash/api"
)

// exitError ends the process with a specific code.
type exitError struct {
	code    int
	message string
}

func (e *exitError) Error() string { return e.message }
func (e *exitError) ExitCode() int { return e.code }

var errNotLoggedIn = &exitError{code: 2, message: "not logged in (run `taskdash login`)"}

// errSilent fails the command without printing anything more.
var errSilent = &exitError{code: 1}

// reportError prints err in the words a person should see. Errors from
// the API are reduced to their user-facing message; field errors are
// listed one per line.
func reportError(w io.Writer, err error) {
	var exitErr *exitError
	if errors.As(err, &exitErr) && exitErr.message == "" {
		return
	}

	var validationErr *api.ValidationError
	if errors.As(err, &validationErr) && len(validationErr.Fields) > 0 {
		for _, field := range validationErr.FieldNames() {
			for _, message := range validationErr.Fields[field] {
				fmt.Fprintf(w, "Error: %s\n", message)
			}
		}
		return
	}

	if isAPIError(err) {
		fmt.Fprintf(w, "Error: %s\n", api.Message(err))
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

func isAPIError(err error) bool {
	var authErr *api.AuthError
	var otpErr *api.OTPError
	return errors.As(err, &authErr) ||
		errors.As(err, &otpErr) ||
		errors.Is(err, api.ErrNetworkUnavailable) ||
		errors.Is(err, api.ErrNotFound) ||
		errors.Is(err, api.ErrServerFault) ||
		errors.Is(err, api.ErrAttachmentUnreadable)
}
