// Package credstore persists the login credential across durable,
// session-scoped and edge-visible locations.
package credstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amonks/taskdash/api"
)

// Keys used in both backends.
const (
	TokenKey        = "auth_token"
	UserKey         = "user_data"
	PendingEmailKey = "registration_email"
	OTPSentAtKey    = "otp_sent_at"
)

// Cookie lifetimes for the edge mirror.
const (
	DurableCookieMaxAge = 30 * 24 * time.Hour
	SessionCookieMaxAge = 24 * time.Hour
)

// Persistence says where a credential lives.
type Persistence string

const (
	// PersistSession keeps the credential until the login session ends.
	PersistSession Persistence = "session"
	// PersistDurable keeps the credential across restarts.
	PersistDurable Persistence = "durable"
)

// Credential is the bearer token plus the profile it was issued to.
type Credential struct {
	Token       string
	User        api.User
	Persistence Persistence
}

// Backend is a string key/value store with web storage semantics.
type Backend interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
	Clear() error
}

// EdgeChannel exposes the token to code that runs before any page logic,
// such as the dashboard route guard.
type EdgeChannel interface {
	Mirror(token string, maxAge time.Duration) error
	Clear() error
}

// Store writes credentials to exactly one backend and keeps the edge
// channel in step.
type Store struct {
	Durable Backend
	Session Backend
	Edge    EdgeChannel
}

// Save persists cred according to its persistence mode.
func (s *Store) Save(cred Credential) error {
	if cred.Token == "" {
		return errors.New("save credential: empty token")
	}
	user, err := json.Marshal(cred.User)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	target, stale := s.Session, s.Durable
	if cred.Persistence == PersistDurable {
		target, stale = s.Durable, s.Session
	}
	if err := target.Set(TokenKey, cred.Token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	if err := target.Set(UserKey, string(user)); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	if err := deleteCredential(stale); err != nil {
		return err
	}
	return s.SyncToEdgeVisibleChannel(cred)
}

// SyncToEdgeVisibleChannel mirrors the token with a lifetime matching its
// persistence.
func (s *Store) SyncToEdgeVisibleChannel(cred Credential) error {
	if s.Edge == nil {
		return nil
	}
	maxAge := SessionCookieMaxAge
	if cred.Persistence == PersistDurable {
		maxAge = DurableCookieMaxAge
	}
	if err := s.Edge.Mirror(cred.Token, maxAge); err != nil {
		return fmt.Errorf("mirror token: %w", err)
	}
	return nil
}

// Load returns the stored credential, preferring durable storage.
func (s *Store) Load() (*Credential, bool, error) {
	for _, source := range []struct {
		backend     Backend
		persistence Persistence
	}{
		{s.Durable, PersistDurable},
		{s.Session, PersistSession},
	} {
		if source.backend == nil {
			continue
		}
		token, ok, err := source.backend.Get(TokenKey)
		if err != nil {
			return nil, false, fmt.Errorf("load token: %w", err)
		}
		if !ok || token == "" {
			continue
		}
		cred := &Credential{Token: token, Persistence: source.persistence}
		raw, ok, err := source.backend.Get(UserKey)
		if err != nil {
			return nil, false, fmt.Errorf("load user: %w", err)
		}
		if ok && raw != "" {
			// The profile is a display cache; a corrupt copy does not
			// invalidate the token.
			_ = json.Unmarshal([]byte(raw), &cred.User)
		}
		return cred, true, nil
	}
	return nil, false, nil
}

// Clear removes the credential from every location. All three are
// attempted even when one fails.
func (s *Store) Clear() error {
	var errs []error
	if s.Durable != nil {
		if err := deleteCredential(s.Durable); err != nil {
			errs = append(errs, fmt.Errorf("durable: %w", err))
		}
	}
	if s.Session != nil {
		if err := s.Session.Clear(); err != nil {
			errs = append(errs, fmt.Errorf("session: %w", err))
		}
	}
	if s.Edge != nil {
		if err := s.Edge.Clear(); err != nil {
			errs = append(errs, fmt.Errorf("edge: %w", err))
		}
	}
	return errors.Join(errs...)
}

// SavePendingEmail remembers the address awaiting OTP verification.
func (s *Store) SavePendingEmail(email string) error {
	return s.Durable.Set(PendingEmailKey, email)
}

// PendingEmail returns the address awaiting OTP verification.
func (s *Store) PendingEmail() (string, bool, error) {
	return s.Durable.Get(PendingEmailKey)
}

// ClearPendingEmail forgets the pending address and when its code was sent.
func (s *Store) ClearPendingEmail() error {
	return errors.Join(s.Durable.Delete(PendingEmailKey), s.Durable.Delete(OTPSentAtKey))
}

// MarkOTPSent records when the last verification code went out.
func (s *Store) MarkOTPSent(at time.Time) error {
	return s.Durable.Set(OTPSentAtKey, at.UTC().Format(time.RFC3339Nano))
}

// OTPSentAt returns when the last verification code went out.
func (s *Store) OTPSentAt() (time.Time, bool, error) {
	raw, ok, err := s.Durable.Get(OTPSentAtKey)
	if err != nil || !ok || raw == "" {
		return time.Time{}, false, err
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse %s: %w", OTPSentAtKey, err)
	}
	return at, true, nil
}

func deleteCredential(b Backend) error {
	if b == nil {
		return nil
	}
	if err := b.Delete(TokenKey); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	if err := b.Delete(UserKey); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
