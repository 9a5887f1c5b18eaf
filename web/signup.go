package web

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/amonks/taskdash/api"
	"github.com/amonks/taskdash/internal/credstore"
	"github.com/amonks/taskdash/session"
)

// SignupPath and VerifyPath serve account creation and email verification.
const (
	SignupPath = "/signup"
	VerifyPath = "/verify-otp"
)

type signupData struct {
	FirstName string
	LastName  string
	Company   string
	Email     string
	Errors    []string
}

type verifyData struct {
	Email     string
	Remaining string
	CanResend bool
	Notice    string
	Error     string
}

func verifyPath(email string) string {
	return VerifyPath + "?" + url.Values{"email": {email}}.Encode()
}

// otpSession builds a session whose store already knows the pending email
// and when its last code went out, so the resend countdown carries across
// requests.
func (h *Handler) otpSession(w http.ResponseWriter, email string) (*session.Manager, *credstore.Store) {
	store := credstore.NewMemoryStore(credstore.ResponseCookie{W: w, Secure: h.secure})
	if email != "" {
		h.mu.Lock()
		sentAt, ok := h.otpSent[email]
		h.mu.Unlock()
		if err := store.SavePendingEmail(email); err != nil {
			h.logger.Warn("seed pending email", "err", err)
		}
		if ok {
			if err := store.MarkOTPSent(sentAt); err != nil {
				h.logger.Warn("seed otp send time", "err", err)
			}
		}
	}
	return session.New(h.client, store, session.Options{Logger: h.logger, Now: h.now}), store
}

func (h *Handler) rememberOTPSent(store *credstore.Store, email string) {
	sentAt, ok, err := store.OTPSentAt()
	if err != nil || !ok {
		return
	}
	h.mu.Lock()
	h.otpSent[email] = sentAt
	h.mu.Unlock()
}

func (h *Handler) forgetOTP(email string) {
	h.mu.Lock()
	delete(h.otpSent, email)
	h.mu.Unlock()
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.templates.Render(w, "signup", signupData{})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			h.templates.Render(w, "signup", signupData{Errors: []string{"invalid form input"}})
			return
		}
		data := signupData{
			FirstName: trimmedFormValue(r, "first_name"),
			LastName:  trimmedFormValue(r, "last_name"),
			Company:   trimmedFormValue(r, "company"),
			Email:     trimmedFormValue(r, "email"),
		}
		manager, store := h.otpSession(w, "")
		result, err := manager.Register(r.Context(), session.Registration{
			FirstName:            data.FirstName,
			LastName:             data.LastName,
			Company:              data.Company,
			Email:                data.Email,
			Password:             r.FormValue("password"),
			PasswordConfirmation: r.FormValue("password_confirmation"),
		})
		if err != nil {
			data.Errors = errorMessages(err)
			h.templates.Render(w, "signup", data)
			return
		}
		h.rememberOTPSent(store, result.Email)
		http.Redirect(w, r, verifyPath(result.Email), http.StatusSeeOther)
	default:
		writeMethodNotAllowed(w, http.MethodGet+", "+http.MethodPost)
	}
}

func (h *Handler) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		email := trimmedValue(r.URL.Query().Get("email"))
		if email == "" {
			http.Redirect(w, r, SignupPath, http.StatusSeeOther)
			return
		}
		manager, _ := h.otpSession(w, email)
		h.renderVerify(w, manager, verifyData{Email: email})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Redirect(w, r, SignupPath, http.StatusSeeOther)
			return
		}
		email := trimmedFormValue(r, "email")
		if email == "" {
			http.Redirect(w, r, SignupPath, http.StatusSeeOther)
			return
		}
		manager, store := h.otpSession(w, email)
		data := verifyData{Email: email}
		if r.FormValue("action") == "resend" {
			if err := manager.ResendOTP(r.Context(), email); err != nil {
				data.Error = otpMessage(err)
			} else {
				h.rememberOTPSent(store, email)
				data.Notice = "A new code has been sent to " + email + "."
			}
			h.renderVerify(w, manager, data)
			return
		}

		cred, err := manager.VerifyOTP(r.Context(), email, r.FormValue("otp_code"))
		if err != nil {
			data.Error = otpMessage(err)
			h.renderVerify(w, manager, data)
			return
		}
		h.forgetOTP(email)
		if cred == nil {
			h.templates.Render(w, "login", loginData{Email: email, Remember: true, Notice: "Email verified. Please sign in."})
			return
		}
		http.Redirect(w, r, HomePath, http.StatusSeeOther)
	default:
		writeMethodNotAllowed(w, http.MethodGet+", "+http.MethodPost)
	}
}

func (h *Handler) renderVerify(w http.ResponseWriter, manager *session.Manager, data verifyData) {
	countdown := manager.Countdown()
	data.Remaining = session.FormatRemaining(countdown.Remaining(h.now()))
	data.CanResend = countdown.CanResend(h.now())
	h.templates.Render(w, "verify", data)
}

func otpMessage(err error) string {
	var locked *session.ResendLockedError
	if errors.As(err, &locked) {
		return locked.Error()
	}
	return strings.Join(errorMessages(err), " ")
}

// errorMessages lists every field error, or the single message for
// anything else.
func errorMessages(err error) []string {
	var validationErr *api.ValidationError
	if !errors.As(err, &validationErr) || len(validationErr.Fields) == 0 {
		return []string{api.Message(err)}
	}
	var messages []string
	for _, field := range validationErr.FieldNames() {
		messages = append(messages, validationErr.Fields[field]...)
	}
	return messages
}
