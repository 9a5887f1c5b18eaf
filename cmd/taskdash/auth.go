package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/amonks/taskdash/api"
	"github.com/amonks/taskdash/internal/otptui"
	"github.com/amonks/taskdash/session"
	"github.com/spf13/cobra"
)

// login
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with email and password",
	Long: `Log in with email and password.

The password is read without echo when stdin is a terminal, and as a
single line otherwise. With --remember the login survives restarts;
without it the login ends with the current session.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var (
	loginEmail    string
	loginRemember bool
)

// signup
var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	Long: `Create an account.

Missing fields are prompted for. The server emails a 6-digit code that
must be confirmed with "taskdash verify-otp" before logging in.`,
	Args: cobra.NoArgs,
	RunE: runSignup,
}

var (
	signupFirstName string
	signupLastName  string
	signupCompany   string
	signupEmail     string
)

// verify-otp
var verifyOTPCmd = &cobra.Command{
	Use:   "verify-otp",
	Short: "Confirm a signup with the emailed code",
	Long: `Confirm a signup with the emailed code.

Without --code, an interactive prompt with a resend countdown is shown
when stdin is a terminal; otherwise the code is read from stdin.`,
	Args: cobra.NoArgs,
	RunE: runVerifyOTP,
}

var (
	verifyOTPEmail string
	verifyOTPCode  string
)

// resend-otp
var resendOTPCmd = &cobra.Command{
	Use:   "resend-otp",
	Short: "Email a new verification code",
	Args:  cobra.NoArgs,
	RunE:  runResendOTP,
}

var resendOTPEmail string

// logout
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and forget the stored credential",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

// whoami
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in account",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

var whoamiJSON bool

func init() {
	rootCmd.AddCommand(loginCmd, signupCmd, verifyOTPCmd, resendOTPCmd, logoutCmd, whoamiCmd)

	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "Account email")
	loginCmd.Flags().BoolVarP(&loginRemember, "remember", "r", false, "Stay logged in across restarts")

	signupCmd.Flags().StringVar(&signupFirstName, "first-name", "", "First name")
	signupCmd.Flags().StringVar(&signupLastName, "last-name", "", "Last name")
	signupCmd.Flags().StringVar(&signupCompany, "company", "", "Company (optional)")
	signupCmd.Flags().StringVarP(&signupEmail, "email", "e", "", "Account email")

	verifyOTPCmd.Flags().StringVarP(&verifyOTPEmail, "email", "e", "", "Email to verify (defaults to the pending signup)")
	verifyOTPCmd.Flags().StringVarP(&verifyOTPCode, "code", "c", "", "The 6-digit code")

	resendOTPCmd.Flags().StringVarP(&resendOTPEmail, "email", "e", "", "Email to send to (defaults to the pending signup)")

	whoamiCmd.Flags().BoolVar(&whoamiJSON, "json", false, "Output as JSON")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := openSession()
	if err != nil {
		return err
	}

	email, err := valueOrPrompt(loginEmail, "Email: ")
	if err != nil {
		return err
	}
	password, err := promptPassword("Password: ")
	if err != nil {
		return err
	}

	cred, err := manager.Login(commandContext(cmd), email, password, loginRemember)
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s\n", describeUser(cred.User, email))
	return nil
}

func runSignup(cmd *cobra.Command, args []string) error {
	manager, err := openSession()
	if err != nil {
		return err
	}

	registration := session.Registration{Company: signupCompany}
	if registration.FirstName, err = valueOrPrompt(signupFirstName, "First name: "); err != nil {
		return err
	}
	if registration.LastName, err = valueOrPrompt(signupLastName, "Last name: "); err != nil {
		return err
	}
	if registration.Email, err = valueOrPrompt(signupEmail, "Email: "); err != nil {
		return err
	}
	if registration.Password, err = promptPassword("Password: "); err != nil {
		return err
	}
	if registration.PasswordConfirmation, err = promptPassword("Confirm password: "); err != nil {
		return err
	}

	ctx := commandContext(cmd)
	result, err := manager.Register(ctx, registration)
	if err != nil {
		return err
	}
	if result.Message != "" {
		fmt.Println(result.Message)
	}

	if !stdinIsTerminal() {
		fmt.Printf("Enter the code sent to %s with `taskdash verify-otp`.\n", result.Email)
		return nil
	}
	return verifyInteractively(cmd, manager, result.Email)
}

func runVerifyOTP(cmd *cobra.Command, args []string) error {
	manager, err := openSession()
	if err != nil {
		return err
	}
	email, err := resolvePendingEmail(manager, verifyOTPEmail)
	if err != nil {
		return err
	}

	code := verifyOTPCode
	if code == "" {
		if stdinIsTerminal() {
			return verifyInteractively(cmd, manager, email)
		}
		if code, err = promptLine("Code: "); err != nil {
			return err
		}
	}

	cred, err := manager.VerifyOTP(commandContext(cmd), email, code)
	if err != nil {
		return err
	}
	printVerified(cred, email)
	return nil
}

func verifyInteractively(cmd *cobra.Command, manager *session.Manager, email string) error {
	result, err := otptui.Run(commandContext(cmd), manager, email, otptui.Options{})
	if err != nil {
		if errors.Is(err, otptui.ErrCanceled) {
			fmt.Println("Verification canceled. Run `taskdash verify-otp` to try again.")
			return errSilent
		}
		return err
	}
	printVerified(result.Credential, email)
	return nil
}

func printVerified(cred *session.Credential, email string) {
	if cred == nil {
		fmt.Println("Email verified. Log in with `taskdash login`.")
		return
	}
	fmt.Printf("Email verified. Logged in as %s\n", describeUser(cred.User, email))
}

func runResendOTP(cmd *cobra.Command, args []string) error {
	manager, err := openSession()
	if err != nil {
		return err
	}
	email, err := resolvePendingEmail(manager, resendOTPEmail)
	if err != nil {
		return err
	}
	if err := manager.ResendOTP(commandContext(cmd), email); err != nil {
		return err
	}
	fmt.Printf("A new code has been sent to %s.\n", email)
	return nil
}

// resolvePendingEmail picks the flag value or the address of the last
// signup.
func resolvePendingEmail(manager *session.Manager, email string) (string, error) {
	if email = strings.TrimSpace(email); email != "" {
		return email, nil
	}
	if pending, ok := manager.PendingEmail(); ok {
		return pending, nil
	}
	return "", fmt.Errorf("%w (use --email)", session.ErrNoPendingEmail)
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := openSession()
	if err != nil {
		return err
	}
	if err := manager.Logout(commandContext(cmd)); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}

type whoamiOutput struct {
	State        session.State       `json:"state"`
	User         *api.User           `json:"user,omitempty"`
	Persistence  session.Persistence `json:"persistence,omitempty"`
	PendingEmail string              `json:"pending_email,omitempty"`
}

func runWhoami(cmd *cobra.Command, args []string) error {
	manager, err := openSession()
	if err != nil {
		return err
	}

	out := whoamiOutput{State: manager.State()}
	if cred, ok := manager.Current(); ok {
		user := cred.User
		out.User = &user
		out.Persistence = cred.Persistence
	}
	if pending, ok := manager.PendingEmail(); ok {
		out.PendingEmail = pending
	}

	if whoamiJSON {
		if err := encodeJSONToStdout(out); err != nil {
			return err
		}
		if out.User == nil {
			return errSilent
		}
		return nil
	}

	if out.User == nil {
		if out.PendingEmail != "" {
			fmt.Printf("Not logged in. Awaiting email verification for %s.\n", out.PendingEmail)
		} else {
			fmt.Println("Not logged in.")
		}
		return errSilent
	}
	fmt.Printf("%s (%s)\n", describeUser(*out.User, ""), out.Persistence)
	return nil
}

// describeUser formats a user as "Name <email>", falling back to the
// email used to log in when the server sent no profile.
func describeUser(user api.User, fallbackEmail string) string {
	email := user.Email
	if email == "" {
		email = fallbackEmail
	}
	name := user.Name()
	switch {
	case name != "" && email != "":
		return fmt.Sprintf("%s <%s>", name, email)
	case name != "":
		return name
	case email != "":
		return email
	}
	return "unknown user"
}
