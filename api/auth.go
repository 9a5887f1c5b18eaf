package api

import (
	"context"
	"net/http"
)

// Register creates an unverified account. The server emails an OTP.
func (c *Client) Register(ctx context.Context, registration Registration) (*RegisterResponse, error) {
	var response RegisterResponse
	err := c.doJSON(ctx, request{method: http.MethodPost, path: "/register", json: registration}, &response)
	if err != nil {
		return nil, err
	}
	return &response, nil
}

// VerifyOTP confirms the email address of a pending registration.
func (c *Client) VerifyOTP(ctx context.Context, email, code string) (*AuthResponse, error) {
	payload := struct {
		Email   string `json:"email"`
		OTPCode string `json:"otp_code"`
	}{Email: email, OTPCode: code}
	var response AuthResponse
	err := c.doJSON(ctx, request{method: http.MethodPost, path: "/verify-otp", json: payload}, &response)
	if err != nil {
		return nil, err
	}
	return &response, nil
}

// ResendOTP asks the server to send a fresh code.
func (c *Client) ResendOTP(ctx context.Context, email string) error {
	payload := struct {
		Email string `json:"email"`
	}{Email: email}
	return c.doJSON(ctx, request{method: http.MethodPost, path: "/resend-otp", json: payload}, nil)
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	payload := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Email: email, Password: password}
	var response AuthResponse
	err := c.doJSON(ctx, request{method: http.MethodPost, path: "/login", json: payload}, &response)
	if err != nil {
		return nil, err
	}
	return &response, nil
}

// Logout invalidates the current token on the server.
func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, request{method: http.MethodPost, path: "/logout", auth: true}, nil)
}
