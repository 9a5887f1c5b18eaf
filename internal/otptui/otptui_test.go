package otptui

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/amonks/taskdash/api"
	"github.com/amonks/taskdash/session"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

type fakeVerifier struct {
	now       *time.Time
	countdown *session.Countdown
	code      string
	verifies  []string
	resends   int
}

func newFakeVerifier(now *time.Time) *fakeVerifier {
	return &fakeVerifier{
		now:       now,
		countdown: session.NewCountdown(*now, session.OTPWindow),
		code:      "123456",
	}
}

func (f *fakeVerifier) VerifyOTP(ctx context.Context, email, code string) (*session.Credential, error) {
	f.verifies = append(f.verifies, code)
	if code != f.code {
		return nil, &api.OTPError{Kind: api.OTPInvalid}
	}
	return &session.Credential{Token: "tok", Persistence: session.PersistSession}, nil
}

func (f *fakeVerifier) ResendOTP(ctx context.Context, email string) error {
	f.resends++
	f.countdown.Restart(*f.now)
	return nil
}

func (f *fakeVerifier) Countdown() *session.Countdown {
	return f.countdown
}

func useASCIIRenderer(t *testing.T) {
	originalProfile := lipgloss.ColorProfile()
	lipgloss.SetColorProfile(termenv.Ascii)
	t.Cleanup(func() {
		lipgloss.SetColorProfile(originalProfile)
	})
}

func typeKeys(t *testing.T, m model, text string) model {
	t.Helper()
	for _, r := range text {
		updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = updated.(model)
	}
	return m
}

// press sends key, runs the command it returns and feeds the resulting
// message back into the model. A command returned by that second update
// is run once and its message returned.
func press(t *testing.T, m model, key tea.KeyMsg) (model, tea.Msg) {
	t.Helper()
	updated, cmd := m.Update(key)
	m = updated.(model)
	if cmd == nil {
		return m, nil
	}
	msg := cmd()
	updated, cmd = m.Update(msg)
	m = updated.(model)
	if cmd == nil {
		return m, nil
	}
	return m, cmd()
}

func TestOnlyDigitsAreTyped(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m := newModel(context.Background(), newFakeVerifier(&now), "ada@example.com", func() time.Time { return now })

	m = typeKeys(t, m, "12a3-4")
	if got := m.input.Value(); got != "1234" {
		t.Fatalf("expected 1234, got %q", got)
	}
	m = typeKeys(t, m, "56789")
	if got := m.input.Value(); got != "123456" {
		t.Fatalf("expected input capped at six digits, got %q", got)
	}
}

func TestVerifySuccessQuits(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	verifier := newFakeVerifier(&now)
	m := newModel(context.Background(), verifier, "ada@example.com", func() time.Time { return now })

	m = typeKeys(t, m, "123456")
	m, msg := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if !m.verified {
		t.Fatalf("expected verified, status %q", m.status)
	}
	if m.result.Credential == nil || m.result.Credential.Token != "tok" {
		t.Fatalf("unexpected result %+v", m.result)
	}
	if _, ok := msg.(tea.QuitMsg); !ok {
		t.Fatalf("expected quit, got %T", msg)
	}
	if len(verifier.verifies) != 1 || verifier.verifies[0] != "123456" {
		t.Fatalf("unexpected verify calls %v", verifier.verifies)
	}
}

func TestVerifyFailureKeepsPrompt(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m := newModel(context.Background(), newFakeVerifier(&now), "ada@example.com", func() time.Time { return now })

	m = typeKeys(t, m, "000000")
	m, msg := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if m.verified || msg != nil {
		t.Fatalf("expected prompt to stay open")
	}
	if m.busy {
		t.Fatalf("expected busy cleared")
	}
	if m.status != "Invalid OTP code or email address." || m.statusLevel != statusError {
		t.Fatalf("unexpected status %q (%d)", m.status, m.statusLevel)
	}
}

func TestResendWaitsForCountdown(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	verifier := newFakeVerifier(&now)
	m := newModel(context.Background(), verifier, "ada@example.com", func() time.Time { return now })

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if verifier.resends != 0 {
		t.Fatalf("expected no resend while counting down")
	}
	if !strings.Contains(m.status, "5:00") {
		t.Fatalf("expected remaining time in status, got %q", m.status)
	}

	now = now.Add(session.OTPWindow)
	updated, _ := m.Update(tickMsg(now))
	m = updated.(model)
	if m.remaining != 0 {
		t.Fatalf("expected countdown finished, got %s", m.remaining)
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if verifier.resends != 1 {
		t.Fatalf("expected one resend, got %d", verifier.resends)
	}
	if m.remaining != session.OTPWindow {
		t.Fatalf("expected countdown restarted, got %s", m.remaining)
	}
	if m.status != "A new code has been sent to your email." {
		t.Fatalf("unexpected status %q", m.status)
	}
}

func TestLocalFormatErrorShowsFieldMessage(t *testing.T) {
	err := &api.OTPError{
		Kind: api.OTPInvalid,
		Err:  api.FieldError("otp_code", "Please enter a complete 6-digit OTP code.", nil),
	}
	if got := errorText(err); got != "Please enter a complete 6-digit OTP code." {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestViewShowsCountdown(t *testing.T) {
	useASCIIRenderer(t)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m := newModel(context.Background(), newFakeVerifier(&now), "ada@example.com", func() time.Time { return now })
	now = now.Add(61 * time.Second)
	updated, _ := m.Update(tickMsg(now))
	m = updated.(model)

	view := m.View()
	for _, want := range []string{"Verify your email", "ada@example.com", "Resend available in 3:59", "esc cancel"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view:\n%s", want, view)
		}
	}

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = updated.(model)
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected esc to quit")
	}
	if !m.canceled || m.View() != "" {
		t.Fatalf("expected canceled prompt to render nothing")
	}
}
