// Package otptui prompts for an emailed verification code while showing
// the resend countdown.
package otptui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/amonks/taskdash/api"
	"github.com/amonks/taskdash/session"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/wordwrap"
)

// ErrCanceled is returned when the prompt is dismissed without verifying.
var ErrCanceled = errors.New("verification canceled")

const codeLength = 6

// Verifier is the part of a session manager the prompt drives.
type Verifier interface {
	VerifyOTP(ctx context.Context, email, code string) (*session.Credential, error)
	ResendOTP(ctx context.Context, email string) error
	Countdown() *session.Countdown
}

// Result reports a successful verification. Credential is nil when the
// server verified the account without opening a session.
type Result struct {
	Credential *session.Credential
}

// Options configures Run.
type Options struct {
	// Now overrides the clock used for the countdown.
	Now func() time.Time
	// Program options passed through to bubbletea, e.g. for tests.
	ProgramOptions []tea.ProgramOption
}

type statusLevel int

const (
	statusNone statusLevel = iota
	statusInfo
	statusError
)

type tickMsg time.Time

type verifiedMsg struct {
	cred *session.Credential
	err  error
}

type resentMsg struct {
	err error
}

type model struct {
	ctx         context.Context
	verifier    Verifier
	email       string
	now         func() time.Time
	width       int
	input       textinput.Model
	remaining   time.Duration
	busy        bool
	status      string
	statusLevel statusLevel
	verified    bool
	canceled    bool
	result      Result
}

// Run shows the prompt until the code is accepted or the user cancels.
func Run(ctx context.Context, verifier Verifier, email string, opts Options) (*Result, error) {
	if verifier == nil {
		return nil, fmt.Errorf("verifier is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	programOpts := append([]tea.ProgramOption{tea.WithContext(ctx)}, opts.ProgramOptions...)
	program := tea.NewProgram(newModel(ctx, verifier, email, opts.Now), programOpts...)
	final, err := program.Run()
	if err != nil {
		return nil, err
	}
	m, ok := final.(model)
	if !ok || !m.verified {
		return nil, ErrCanceled
	}
	return &m.result, nil
}

func newModel(ctx context.Context, verifier Verifier, email string, now func() time.Time) model {
	if now == nil {
		now = time.Now
	}
	input := textinput.New()
	input.Prompt = ""
	input.Placeholder = strings.Repeat("0", codeLength)
	input.CharLimit = codeLength
	input.Width = codeLength + 1
	input.Focus()

	m := model{
		ctx:      ctx,
		verifier: verifier,
		email:    email,
		now:      now,
		width:    60,
		input:    input,
	}
	m.remaining = verifier.Countdown().Remaining(now())
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tickMsg:
		m.remaining = m.verifier.Countdown().Remaining(m.now())
		return m, tick()
	case verifiedMsg:
		return m.handleVerified(msg)
	case resentMsg:
		return m.handleResent(msg)
	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.canceled = true
		return m, tea.Quit
	case "enter":
		if m.busy {
			return m, nil
		}
		m.busy = true
		m.setStatus("Verifying...", statusInfo)
		return m, m.verifyCmd(m.input.Value())
	case "r", "ctrl+r":
		if m.busy {
			return m, nil
		}
		if !m.verifier.Countdown().CanResend(m.now()) {
			m.setStatus(fmt.Sprintf("You can request a new code in %s.", session.FormatRemaining(m.remaining)), statusError)
			return m, nil
		}
		m.busy = true
		m.setStatus("Sending a new code...", statusInfo)
		return m, m.resendCmd()
	}

	if msg.Type == tea.KeyRunes {
		for _, r := range msg.Runes {
			if !unicode.IsDigit(r) {
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) verifyCmd(code string) tea.Cmd {
	ctx, verifier, email := m.ctx, m.verifier, m.email
	return func() tea.Msg {
		cred, err := verifier.VerifyOTP(ctx, email, code)
		return verifiedMsg{cred: cred, err: err}
	}
}

func (m model) resendCmd() tea.Cmd {
	ctx, verifier, email := m.ctx, m.verifier, m.email
	return func() tea.Msg {
		return resentMsg{err: verifier.ResendOTP(ctx, email)}
	}
}

func (m model) handleVerified(msg verifiedMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	if msg.err != nil {
		m.setStatus(errorText(msg.err), statusError)
		return m, nil
	}
	m.verified = true
	m.result = Result{Credential: msg.cred}
	m.setStatus("Email verified.", statusInfo)
	return m, tea.Quit
}

func (m model) handleResent(msg resentMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	if msg.err != nil {
		m.setStatus(errorText(msg.err), statusError)
		return m, nil
	}
	m.remaining = m.verifier.Countdown().Remaining(m.now())
	m.input.SetValue("")
	m.setStatus("A new code has been sent to your email.", statusInfo)
	return m, nil
}

func (m *model) setStatus(text string, level statusLevel) {
	m.status = text
	m.statusLevel = level
}

// errorText prefers a field message over the generic one.
func errorText(err error) string {
	var validationErr *api.ValidationError
	if errors.As(err, &validationErr) {
		return api.Message(validationErr)
	}
	return api.Message(err)
}

func (m model) View() string {
	if m.verified || m.canceled {
		return ""
	}
	width := m.width - 4
	if width < 20 {
		width = 20
	}

	var lines []string
	lines = append(lines, titleStyle.Render("Verify your email"))
	lines = append(lines, wordwrap.String(fmt.Sprintf("Enter the %d-digit code sent to %s.", codeLength, m.email), width))
	lines = append(lines, "")
	lines = append(lines, labelStyle.Render("Code: ")+m.input.View())
	lines = append(lines, "")
	if m.remaining > 0 {
		lines = append(lines, valueMuted.Render("Resend available in "+session.FormatRemaining(m.remaining)))
	} else {
		lines = append(lines, valueMuted.Render("Didn't get a code? Press r to resend."))
	}
	if status := m.renderStatus(width); status != "" {
		lines = append(lines, status)
	}
	lines = append(lines, valueMuted.Render("enter verify · r resend · esc cancel"))
	return paneStyle.Render(strings.Join(lines, "\n")) + "\n"
}

func (m model) renderStatus(width int) string {
	if m.status == "" {
		return ""
	}
	text := wordwrap.String(m.status, width)
	switch m.statusLevel {
	case statusError:
		return statusErrorStyle.Render(text)
	case statusInfo:
		return statusSuccessStyle.Render(text)
	default:
		return text
	}
}
