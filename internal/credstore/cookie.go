package credstore

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// CookieName is the cookie the route guard reads.
const CookieName = TokenKey

// NewCookie builds the auth cookie. A non-positive maxAge expires it.
func NewCookie(token string, maxAge time.Duration, secure bool) *http.Cookie {
	cookie := &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	}
	if maxAge <= 0 {
		cookie.Value = ""
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
		return cookie
	}
	cookie.MaxAge = int(maxAge / time.Second)
	return cookie
}

// CookieFile keeps the mirrored cookie in a JSON file so the CLI and the
// local dashboard agree on it.
type CookieFile struct {
	Path   string
	Secure bool
	Now    func() time.Time
}

type cookieRecord struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path"`
	SameSite string    `json:"same_site"`
	Secure   bool      `json:"secure"`
	Expires  time.Time `json:"expires"`
}

func (c *CookieFile) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Mirror implements EdgeChannel.
func (c *CookieFile) Mirror(token string, maxAge time.Duration) error {
	if maxAge <= 0 {
		return c.Clear()
	}
	record := cookieRecord{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		SameSite: "Lax",
		Secure:   c.Secure,
		Expires:  c.now().Add(maxAge).UTC(),
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cookie: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o700); err != nil {
		return fmt.Errorf("create cookie dir: %w", err)
	}
	tmp := c.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write cookie: %w", err)
	}
	if err := os.Rename(tmp, c.Path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename cookie: %w", err)
	}
	return nil
}

// Clear implements EdgeChannel.
func (c *CookieFile) Clear() error {
	if err := os.Remove(c.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cookie: %w", err)
	}
	return nil
}

// Cookie returns the mirrored cookie if it exists and has not expired.
func (c *CookieFile) Cookie() (*http.Cookie, bool, error) {
	data, err := os.ReadFile(c.Path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cookie: %w", err)
	}
	var record cookieRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, false, fmt.Errorf("unmarshal cookie: %w", err)
	}
	if record.Value == "" || !c.now().Before(record.Expires) {
		return nil, false, nil
	}
	cookie := NewCookie(record.Value, record.Expires.Sub(c.now()), record.Secure)
	cookie.Expires = record.Expires
	return cookie, true, nil
}

// ResponseCookie mirrors the token as a Set-Cookie header.
type ResponseCookie struct {
	W      http.ResponseWriter
	Secure bool
}

// Mirror implements EdgeChannel.
func (c ResponseCookie) Mirror(token string, maxAge time.Duration) error {
	http.SetCookie(c.W, NewCookie(token, maxAge, c.Secure))
	return nil
}

// Clear implements EdgeChannel.
func (c ResponseCookie) Clear() error {
	http.SetCookie(c.W, NewCookie("", 0, c.Secure))
	return nil
}
