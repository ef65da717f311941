package toast

import (
	"strings"
	"sync"
	"time"

	goVolunteer "github.com/MrEthical07/goVolunteer"
	"github.com/google/uuid"
)

// Severity tags a toast.
type Severity string

const (
	Info    Severity = "info"
	Success Severity = "success"
	Warning Severity = "warning"
	Error   Severity = "error"
)

// ParseSeverity maps s to a known severity. Unknown values become [Info].
func ParseSeverity(s string) Severity {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case Info, Success, Warning, Error:
		return sev
	default:
		return Info
	}
}

// Toast is one displayed notification.
type Toast struct {
	ID        string
	Message   string
	Severity  Severity
	Duration  time.Duration
	CreatedAt time.Time
}

// ExpiresAt is the instant the toast stops being active.
func (t Toast) ExpiresAt() time.Time {
	return t.CreatedAt.Add(t.Duration)
}

// Config tunes a [Center]. Zero durations fall back to the defaults.
type Config struct {
	SuccessDuration time.Duration
	ErrorDuration   time.Duration
	InfoDuration    time.Duration
	WarningDuration time.Duration

	// DefaultDuration applies to Show without a duration and to Notify.
	DefaultDuration time.Duration
	// MaxActive caps the number of retained toasts; the oldest is evicted.
	// Zero means unbounded.
	MaxActive int

	// OnShow is called synchronously for every new toast.
	OnShow func(Toast)
	Now    func() time.Time
}

// ConfigFrom converts the root toast configuration.
func ConfigFrom(cfg goVolunteer.ToastConfig) Config {
	return Config{
		SuccessDuration: cfg.SuccessDuration,
		ErrorDuration:   cfg.ErrorDuration,
		InfoDuration:    cfg.InfoDuration,
		WarningDuration: cfg.WarningDuration,
	}
}

func (c *Config) applyDefaults() {
	if c.SuccessDuration <= 0 {
		c.SuccessDuration = 5 * time.Second
	}
	if c.ErrorDuration <= 0 {
		c.ErrorDuration = 7 * time.Second
	}
	if c.InfoDuration <= 0 {
		c.InfoDuration = 5 * time.Second
	}
	if c.WarningDuration <= 0 {
		c.WarningDuration = 6 * time.Second
	}
	if c.DefaultDuration <= 0 {
		c.DefaultDuration = 5 * time.Second
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Center holds the active toasts. It is safe for concurrent use and
// satisfies the guard's Notifier interface.
type Center struct {
	cfg Config

	mu     sync.Mutex
	toasts []Toast
}

// NewCenter returns an empty Center.
func NewCenter(cfg Config) *Center {
	cfg.applyDefaults()
	return &Center{cfg: cfg}
}

// Show adds a toast and returns its ID. A non-positive duration uses the
// default duration.
func (c *Center) Show(message string, severity Severity, duration time.Duration) string {
	if duration <= 0 {
		duration = c.cfg.DefaultDuration
	}
	t := Toast{
		ID:        uuid.NewString(),
		Message:   message,
		Severity:  ParseSeverity(string(severity)),
		Duration:  duration,
		CreatedAt: c.cfg.Now(),
	}

	c.mu.Lock()
	c.toasts = append(c.toasts, t)
	if c.cfg.MaxActive > 0 && len(c.toasts) > c.cfg.MaxActive {
		c.toasts = append(c.toasts[:0:0], c.toasts[len(c.toasts)-c.cfg.MaxActive:]...)
	}
	c.mu.Unlock()

	if c.cfg.OnShow != nil {
		c.cfg.OnShow(t)
	}
	return t.ID
}

// Notify shows message with the default duration.
func (c *Center) Notify(message string, severity Severity) {
	c.Show(message, severity, 0)
}

// Success shows message for the success duration.
func (c *Center) Success(message string) string {
	return c.Show(message, Success, c.cfg.SuccessDuration)
}

// Error uses a longer duration than the other severities.
func (c *Center) Error(message string) string {
	return c.Show(message, Error, c.cfg.ErrorDuration)
}

// Info shows message for the info duration.
func (c *Center) Info(message string) string {
	return c.Show(message, Info, c.cfg.InfoDuration)
}

// Warning shows message for the warning duration.
func (c *Center) Warning(message string) string {
	return c.Show(message, Warning, c.cfg.WarningDuration)
}

// Dismiss removes the toast with id. It reports whether one was removed.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, t := range c.toasts {
		if t.ID == id {
			c.toasts = append(c.toasts[:i], c.toasts[i+1:]...)
			return true
		}
	}
	return false
}

// Active drops expired toasts and returns the rest, oldest first.
func (c *Center) Active() []Toast {
	now := c.cfg.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.toasts[:0]
	for _, t := range c.toasts {
		if now.Before(t.ExpiresAt()) {
			kept = append(kept, t)
		}
	}
	clear(c.toasts[len(kept):])
	c.toasts = kept

	out := make([]Toast, len(kept))
	copy(out, kept)
	return out
}

// Clear removes every toast.
func (c *Center) Clear() {
	c.mu.Lock()
	c.toasts = nil
	c.mu.Unlock()
}
