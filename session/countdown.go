package session

import (
	"fmt"
	"sync"
	"time"
)

// OTPWindow is how long the resend action stays locked after a code is
// sent. It does not affect the code's validity on the server.
const OTPWindow = 300 * time.Second

// Countdown gates the resend action locally.
type Countdown struct {
	mu       sync.Mutex
	window   time.Duration
	deadline time.Time
}

// NewCountdown starts a countdown at now.
func NewCountdown(now time.Time, window time.Duration) *Countdown {
	c := &Countdown{window: window}
	c.Restart(now)
	return c
}

// Restart locks resend for another full window.
func (c *Countdown) Restart(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline = now.Add(c.window)
}

// Remaining returns the time left, rounded up to the second.
func (c *Countdown) Remaining(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	left := c.deadline.Sub(now)
	if left <= 0 {
		return 0
	}
	rounded := left.Truncate(time.Second)
	if rounded < left {
		rounded += time.Second
	}
	return rounded
}

// CanResend reports whether the countdown has run out.
func (c *Countdown) CanResend(now time.Time) bool {
	return c.Remaining(now) == 0
}

// FormatRemaining renders d as m:ss.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	seconds := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
