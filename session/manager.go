// Package session owns the login credential and the authentication state
// machine of a taskdash client.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/amonks/taskdash/api"
	"github.com/amonks/taskdash/internal/credstore"
	"github.com/amonks/taskdash/internal/validation"
	"github.com/charmbracelet/log"
)

var otpPattern = regexp.MustCompile(`^[0-9]{6}$`)

// Options configures a Manager.
type Options struct {
	Logger *log.Logger
	// Now overrides the clock used by the OTP countdown.
	Now func() time.Time
}

// OpenOptions configures Open.
type OpenOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *log.Logger
	Store      credstore.OpenOptions
	Now        func() time.Time
}

// Manager performs authentication and holds the resulting credential. It
// is the only writer of the credential store.
type Manager struct {
	mu        sync.Mutex
	client    *api.Client
	store     *credstore.Store
	logger    *log.Logger
	now       func() time.Time
	state     State
	countdown *Countdown
}

// New creates a manager. The client is rebound so every authenticated call
// reads the manager's token and a rejected token expires the session.
func New(client *api.Client, store *credstore.Store, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	m := &Manager{
		store:  store,
		logger: logger,
		now:    now,
		state:  Anonymous,
	}
	m.client = client.WithTokens(m, m.Expire)
	// Unlocked until a code is known to have been sent.
	m.countdown = NewCountdown(now().Add(-OTPWindow), OTPWindow)
	if sentAt, ok, err := store.OTPSentAt(); err != nil {
		logger.Warn("load otp send time", "err", err)
	} else if ok {
		m.countdown.Restart(sentAt)
	}

	if _, ok, err := store.Load(); err != nil {
		logger.Warn("load credential", "err", err)
	} else if ok {
		m.state = Authenticated
	} else if email, ok, _ := store.PendingEmail(); ok && email != "" {
		m.state = OTPRequired
	}
	return m
}

// Open builds the file-backed store and api client and returns a manager
// over them.
func Open(opts OpenOptions) (*Manager, error) {
	storeOpts := opts.Store
	if strings.HasPrefix(opts.BaseURL, "https://") {
		storeOpts.Secure = true
	}
	store, err := credstore.Open(storeOpts)
	if err != nil {
		return nil, err
	}
	client := api.New(opts.BaseURL, api.Options{HTTPClient: opts.HTTPClient, Logger: opts.Logger})
	return New(client, store, Options{Logger: opts.Logger, Now: opts.Now}), nil
}

// Client returns the api client bound to this session.
func (m *Manager) Client() *api.Client {
	return m.client
}

// Store returns the credential store.
func (m *Manager) Store() *credstore.Store {
	return m.store
}

// State returns the current authentication state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state != m.state {
		m.logger.Debug("session state", "from", m.state, "to", state)
	}
	m.state = state
}

// Current returns the stored credential, preferring durable storage. It
// never touches the network.
func (m *Manager) Current() (*Credential, bool) {
	cred, ok, err := m.store.Load()
	if err != nil {
		m.logger.Warn("load credential", "err", err)
		return nil, false
	}
	return cred, ok
}

// Token implements api.TokenSource.
func (m *Manager) Token() (string, bool) {
	cred, ok := m.Current()
	if !ok {
		return "", false
	}
	return cred.Token, true
}

// Countdown returns the resend gate for the current verification.
func (m *Manager) Countdown() *Countdown {
	return m.countdown
}

// Login exchanges credentials for a token. With remember the credential
// outlives the login session.
func (m *Manager) Login(ctx context.Context, email, password string, remember bool) (*Credential, error) {
	email = strings.TrimSpace(email)
	if fields := loginFields(email, password); fields != nil {
		return nil, &api.AuthError{Kind: api.ValidationFailed, Err: &api.ValidationError{Fields: fields}}
	}

	resp, err := m.client.Login(ctx, email, password)
	if err != nil {
		return nil, loginError(err)
	}
	if resp.Token == "" {
		return nil, &api.AuthError{Kind: api.ServerFault, Err: errors.New("login response has no token")}
	}

	cred := Credential{Token: resp.Token, Persistence: PersistSession}
	if remember {
		cred.Persistence = PersistDurable
	}
	if resp.User != nil {
		cred.User = *resp.User
	}
	if err := m.store.Save(cred); err != nil {
		return nil, fmt.Errorf("save credential: %w", err)
	}
	m.setState(Authenticated)
	m.logger.Info("logged in", "email", email, "persistence", cred.Persistence)
	return &cred, nil
}

func loginFields(email, password string) map[string][]string {
	fields := map[string][]string{}
	if messages := validation.Var("email", email, "required,email"); messages != nil {
		fields["email"] = messages
	}
	if messages := validation.Var("password", password, "required"); messages != nil {
		fields["password"] = messages
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// Register creates an account awaiting OTP verification. It never opens a
// session.
func (m *Manager) Register(ctx context.Context, registration Registration) (*RegistrationResult, error) {
	registration.Email = strings.TrimSpace(registration.Email)
	registration.FirstName = strings.TrimSpace(registration.FirstName)
	registration.LastName = strings.TrimSpace(registration.LastName)
	registration.Company = strings.TrimSpace(registration.Company)

	fields, err := validation.Fields(registration)
	if err != nil {
		return nil, err
	}
	if fields != nil {
		return nil, &api.ValidationError{Fields: fields}
	}

	resp, err := m.client.Register(ctx, registration)
	if err != nil {
		return nil, registerError(err)
	}
	if err := m.store.SavePendingEmail(registration.Email); err != nil {
		return nil, fmt.Errorf("save pending email: %w", err)
	}
	m.otpSent()
	m.setState(OTPRequired)

	return &RegistrationResult{Message: resp.Message, Email: registration.Email, User: resp.User}, nil
}

// PendingEmail returns the address awaiting verification, if any.
func (m *Manager) PendingEmail() (string, bool) {
	email, ok, err := m.store.PendingEmail()
	if err != nil {
		m.logger.Warn("load pending email", "err", err)
		return "", false
	}
	return email, ok && email != ""
}

func (m *Manager) resolveEmail(email string) (string, error) {
	if email = strings.TrimSpace(email); email != "" {
		return email, nil
	}
	if pending, ok := m.PendingEmail(); ok {
		return pending, nil
	}
	return "", ErrNoPendingEmail
}

// VerifyOTP confirms a signup. An empty email falls back to the pending
// one. When the server opens a session the returned credential is stored
// session-scoped; otherwise the credential is nil and the caller must log in.
func (m *Manager) VerifyOTP(ctx context.Context, email, code string) (*Credential, error) {
	code = strings.TrimSpace(code)
	if !otpPattern.MatchString(code) {
		return nil, &api.OTPError{
			Kind: api.OTPInvalid,
			Err:  api.FieldError("otp_code", "Please enter a complete 6-digit OTP code.", nil),
		}
	}
	email, err := m.resolveEmail(email)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.VerifyOTP(ctx, email, code)
	if err != nil {
		return nil, otpError(err)
	}
	if err := m.store.ClearPendingEmail(); err != nil {
		m.logger.Warn("clear pending email", "err", err)
	}

	if resp.Token == "" {
		m.setState(Anonymous)
		return nil, nil
	}
	cred := Credential{Token: resp.Token, Persistence: PersistSession}
	if resp.User != nil {
		cred.User = *resp.User
	}
	if err := m.store.Save(cred); err != nil {
		return nil, fmt.Errorf("save credential: %w", err)
	}
	m.setState(Authenticated)
	return &cred, nil
}

// ResendOTP asks for a fresh code and restarts the resend countdown. It
// refuses while the countdown is still running, including one restored from
// an earlier process.
func (m *Manager) ResendOTP(ctx context.Context, email string) error {
	email, err := m.resolveEmail(email)
	if err != nil {
		return err
	}
	if left := m.countdown.Remaining(m.now()); left > 0 {
		return &ResendLockedError{Remaining: left}
	}
	if err := m.client.ResendOTP(ctx, email); err != nil {
		return otpError(err)
	}
	m.otpSent()
	return nil
}

func (m *Manager) otpSent() {
	now := m.now()
	m.countdown.Restart(now)
	if err := m.store.MarkOTPSent(now); err != nil {
		m.logger.Warn("save otp send time", "err", err)
	}
}

// Logout invalidates the token on the server when possible and always
// clears every local copy afterwards. Only local failures are returned.
func (m *Manager) Logout(ctx context.Context) error {
	if _, ok := m.Token(); ok {
		if err := m.client.Logout(ctx); err != nil {
			m.logger.Warn("server logout failed", "err", err)
		}
	}

	err := m.store.Clear()
	m.setState(Anonymous)
	if err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

// Expire drops the local credential after the server rejected it.
func (m *Manager) Expire() {
	if err := m.store.Clear(); err != nil {
		m.logger.Warn("clear expired credential", "err", err)
	}
	m.setState(Anonymous)
}
