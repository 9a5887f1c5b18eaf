package apitest

import (
	"net/http"
	"strings"

	"github.com/amonks/taskdash/api"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func unprocessable(c *gin.Context, fields map[string][]string) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"message": "The given data was invalid.",
		"errors":  fields,
	})
}

func (s *Server) register(c *gin.Context) {
	var reg api.Registration
	if err := c.ShouldBindJSON(&reg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request"})
		return
	}

	fields := map[string][]string{}
	for field, value := range map[string]string{
		"first_name": reg.FirstName,
		"last_name":  reg.LastName,
		"email":      reg.Email,
		"password":   reg.Password,
	} {
		if strings.TrimSpace(value) == "" {
			fields[field] = []string{"The " + strings.ReplaceAll(field, "_", " ") + " field is required."}
		}
	}
	if reg.Email != "" && !strings.Contains(reg.Email, "@") {
		fields["email"] = []string{"The email field must be a valid email address."}
	}
	if reg.Password != "" && len(reg.Password) < 8 {
		fields["password"] = []string{"The password field must be at least 8 characters."}
	}
	if reg.Password != reg.PasswordConfirmation {
		fields["password"] = append(fields["password"], "The password field confirmation does not match.")
	}
	if len(fields) > 0 {
		unprocessable(c, fields)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.accounts[reg.Email]; ok && existing.verified {
		c.JSON(http.StatusConflict, gin.H{"message": "Account already exists and is activated."})
		return
	}
	acct := s.newAccount(reg)
	s.issueOTP(reg.Email)
	c.JSON(http.StatusCreated, gin.H{
		"message": "Registration successful. Please check your email for the OTP.",
		"user":    acct.user,
	})
}

func (s *Server) verifyOTP(c *gin.Context) {
	var req struct {
		Email   string `json:"email"`
		OTPCode string `json:"otp_code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	pending, ok := s.otps[req.Email]
	if !ok || pending.code != req.OTPCode {
		unprocessable(c, map[string][]string{"otp_code": {"Invalid OTP code or email address."}})
		return
	}
	if pending.expired {
		c.JSON(http.StatusGone, gin.H{"message": "OTP has expired."})
		return
	}
	delete(s.otps, req.Email)
	acct := s.accounts[req.Email]
	acct.verified = true

	response := gin.H{"message": "Email verified successfully."}
	if s.IssueTokenOnVerify {
		token := uuid.NewString()
		s.tokens[token] = req.Email
		response["token"] = token
		response["user"] = acct.user
	}
	c.JSON(http.StatusOK, response)
}

func (s *Server) resendOTP(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[req.Email]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "Email address not found."})
		return
	}
	if acct.verified {
		unprocessable(c, map[string][]string{"email": {"This account is already verified."}})
		return
	}
	s.issueOTP(req.Email)
	c.JSON(http.StatusOK, gin.H{"message": "A new OTP has been sent to your email address."})
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request"})
		return
	}
	if req.Email == "" || req.Password == "" {
		unprocessable(c, map[string][]string{"email": {"The email field is required."}})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[req.Email]
	if !ok || !acct.verified || bcrypt.CompareHashAndPassword(acct.hash, []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
		return
	}
	token := uuid.NewString()
	s.tokens[token] = req.Email
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"user":    acct.user,
	})
}

func (s *Server) logout(c *gin.Context) {
	s.mu.Lock()
	delete(s.tokens, c.GetString("token"))
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
