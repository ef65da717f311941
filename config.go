package goVolunteer

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config holds every tunable of the client core.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable.
type Config struct {
	API         APIConfig
	Persistence PersistenceConfig
	Session     SessionConfig
	Guard       GuardConfig
	Toast       ToastConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig describes how to reach the platform backend.
type APIConfig struct {
	BaseURL   string
	Timeout   time.Duration
	Language  string // default value of the language query parameter
	UserAgent string
}

/*
====================================
PERSISTENCE CONFIG
====================================
*/

// Persistence backends understood by the CLI wiring.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// PersistenceConfig selects and configures the credential store.
type PersistenceConfig struct {
	Backend     string // "memory", "file" (default) or "redis"
	Path        string // file backend
	RedisAddr   string
	RedisPrefix string

	TokenKey    string
	UserKey     string
	LanguageKey string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig tunes hydration.
type SessionConfig struct {
	// ExpiryLeeway is subtracted from a JWT credential's exp before the
	// expired-credential short circuit kicks in.
	ExpiryLeeway time.Duration
	// HydrateTimeout bounds the shared current-user fetch. Zero disables it.
	HydrateTimeout time.Duration
	// CheckCredentialExpiry enables the unverified JWT exp check.
	CheckCredentialExpiry bool
}

// GuardConfig configures the navigation guard.
type GuardConfig struct {
	LandingRoute string
}

// ToastConfig holds the default display duration per severity.
type ToastConfig struct {
	SuccessDuration time.Duration
	ErrorDuration   time.Duration
	InfoDuration    time.Duration
	WarningDuration time.Duration
}

// AuditConfig controls the audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration the platform's web client ships with.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:   "http://localhost:3000/api",
			Timeout:   15 * time.Second,
			Language:  "en",
			UserAgent: "goVolunteer",
		},
		Persistence: PersistenceConfig{
			Backend:     BackendFile,
			Path:        "",
			RedisPrefix: "gv",
			TokenKey:    "token",
			UserKey:     "user",
			LanguageKey: "language",
		},
		Session: SessionConfig{
			ExpiryLeeway:          5 * time.Second,
			HydrateTimeout:        10 * time.Second,
			CheckCredentialExpiry: true,
		},
		Guard: GuardConfig{
			LandingRoute: "Home",
		},
		Toast: ToastConfig{
			SuccessDuration: 5 * time.Second,
			ErrorDuration:   7 * time.Second,
			InfoDuration:    5 * time.Second,
			WarningDuration: 6 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem found, or nil.
func (c *Config) Validate() error {
	// API
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("API BaseURL must be set")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return errors.New("API BaseURL is not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("API BaseURL must use http or https")
	}
	if u.Host == "" {
		return errors.New("API BaseURL must include a host")
	}
	if c.API.Timeout < 0 {
		return errors.New("API Timeout must be >= 0")
	}
	if strings.TrimSpace(c.API.Language) == "" {
		return errors.New("API Language must be set")
	}

	// Persistence
	switch c.Persistence.Backend {
	case BackendMemory, BackendFile:
	case BackendRedis:
		if strings.TrimSpace(c.Persistence.RedisAddr) == "" {
			return errors.New("Persistence RedisAddr is required for the redis backend")
		}
	default:
		return errors.New("Persistence Backend must be 'memory', 'file' or 'redis'")
	}
	if c.Persistence.TokenKey == "" || c.Persistence.UserKey == "" || c.Persistence.LanguageKey == "" {
		return errors.New("Persistence keys must be non-empty")
	}
	if c.Persistence.TokenKey == c.Persistence.UserKey {
		return errors.New("Persistence TokenKey and UserKey must differ")
	}

	// Session
	if c.Session.ExpiryLeeway < 0 || c.Session.ExpiryLeeway > 5*time.Minute {
		return errors.New("Session ExpiryLeeway must be between 0 and 5m")
	}
	if c.Session.HydrateTimeout < 0 {
		return errors.New("Session HydrateTimeout must be >= 0")
	}

	// Guard
	if strings.TrimSpace(c.Guard.LandingRoute) == "" {
		return errors.New("Guard LandingRoute must be set")
	}

	// Toast
	if c.Toast.SuccessDuration <= 0 || c.Toast.ErrorDuration <= 0 ||
		c.Toast.InfoDuration <= 0 || c.Toast.WarningDuration <= 0 {
		return errors.New("Toast durations must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
