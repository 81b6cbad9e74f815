package chat

import (
	"time"

	"go.uber.org/zap"
)

const DefaultMaxReconnect = 5

// Timer is the part of *time.Timer the manager needs.
type Timer interface {
	Stop() bool
}

type ManagerConf struct {
	BaseURL              string        // ws(s)://host[:port], "/ws" is appended
	MaxReconnectAttempts int           // automatic retries before giving up; 0 disables, negative means DefaultMaxReconnect
	BaseDelay            time.Duration // first retry delay, doubled per attempt
	MaxDelay             time.Duration // backoff cap
	DialTimeout          time.Duration

	Clock     func() time.Time                      // nil => time.Now
	AfterFunc func(d time.Duration, f func()) Timer // nil => time.AfterFunc
	Logger    *zap.Logger
}

func (c *ManagerConf) norm() {
	if c.BaseURL == "" {
		c.BaseURL = "ws://localhost:8000"
	}
	if c.MaxReconnectAttempts < 0 {
		c.MaxReconnectAttempts = DefaultMaxReconnect
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.AfterFunc == nil {
		c.AfterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Backoff returns the delay before retry number attempt (0 based):
// base doubled attempt times, never more than max.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 62 {
		return max
	}
	d := base << uint(attempt)
	if d <= 0 || d > max || d>>uint(attempt) != base {
		return max
	}
	return d
}
