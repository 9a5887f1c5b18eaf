package session

import (
	"github.com/amonks/taskdash/api"
	"github.com/amonks/taskdash/internal/credstore"
)

// Credential is the bearer token plus the profile it was issued to.
type Credential = credstore.Credential

// Persistence says where a credential lives.
type Persistence = credstore.Persistence

const (
	// PersistSession keeps the credential until the login session ends.
	PersistSession = credstore.PersistSession
	// PersistDurable keeps the credential across restarts.
	PersistDurable = credstore.PersistDurable
)

// Registration is the signup form.
type Registration = api.Registration

// State is the authentication state of a Manager.
type State string

const (
	// Anonymous is the initial state. No credential is held.
	Anonymous State = "anonymous"
	// OTPRequired follows a successful signup until the email is verified.
	OTPRequired State = "otp_required"
	// Authenticated means a credential is stored.
	Authenticated State = "authenticated"
)

// ValidStates returns all states.
func ValidStates() []State {
	return []State{Anonymous, OTPRequired, Authenticated}
}

// RegistrationResult reports a successful signup.
type RegistrationResult struct {
	Message string
	Email   string
	User    *api.User
}
