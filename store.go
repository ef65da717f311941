package goVolunteer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	internalaudit "github.com/MrEthical07/goVolunteer/internal/audit"
	"github.com/MrEthical07/goVolunteer/persist"
	"golang.org/x/sync/singleflight"
)

const (
	msgLoginFailed        = "Login failed"
	msgRegisterFailed     = "Registration failed"
	msgInvalidResponse    = "Invalid response from server"
	msgNetworkError       = "Network Error"
	msgSessionNotRestored = "Your session could not be restored, please log in again"
)

// Store is the session store: the single source of truth for who the
// current actor is and what they can do. It owns the credential token and
// the hydrated user, and is the only writer of the persistence facility.
//
// A Store is safe for concurrent use. Exactly one Store should exist per
// running client; share it by pointer.
type Store struct {
	config  Config
	service AuthService
	persist persist.Store
	logger  *slog.Logger
	metrics *Metrics
	audit   *internalaudit.Dispatcher
	now     func() time.Time

	// writeMu serializes every state transition together with its
	// persistence writes. Lock order: writeMu, then mu.
	writeMu sync.Mutex

	mu         sync.RWMutex
	token      string
	user       *User
	generation uint64

	loading    atomic.Int32
	hydrations singleflight.Group
}

// Close flushes the audit dispatcher.
func (s *Store) Close() {
	if s == nil {
		return
	}
	s.audit.Close()
}

// Config returns a copy of the store's configuration.
func (s *Store) Config() Config {
	if s == nil {
		return defaultConfig()
	}
	return cloneConfig(s.config)
}

// Token returns the current credential, or "" when unauthenticated.
func (s *Store) Token() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the hydrated user, or nil.
func (s *Store) User() *User {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Clone()
}

// Role returns the current user's role, or "" when no user is loaded.
func (s *Store) Role() Role {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.Role
}

// IsAuthenticated reports whether a credential is present.
func (s *Store) IsAuthenticated() bool { return s.Token() != "" }

// IsOrganization reports whether the current role is organization.
func (s *Store) IsOrganization() bool { return s.Role() == RoleOrganization }

// IsVolunteer reports whether the current role is volunteer.
func (s *Store) IsVolunteer() bool { return s.Role() == RoleVolunteer }

// IsAdmin reports whether the current role is admin.
func (s *Store) IsAdmin() bool { return s.Role() == RoleAdmin }

// Loading reports whether a login, registration or hydration is in flight.
func (s *Store) Loading() bool {
	return s != nil && s.loading.Load() > 0
}

// Snapshot returns a consistent view of the session.
func (s *Store) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Authenticated: s.token != "",
		Hydrated:      s.user != nil,
	}
	if s.user != nil {
		snap.UserID = s.user.ID
		snap.Role = s.user.Role
	}
	return snap
}

// Login exchanges credentials for a token and user record. On success both
// are set and persisted together; on failure the prior session is left
// untouched and the reason is reported in the Result.
func (s *Store) Login(ctx context.Context, identifier, secret string) Result {
	if s == nil || s.service == nil {
		return notReady()
	}
	s.loading.Add(1)
	defer s.loading.Add(-1)

	s.logger.DebugContext(ctx, "login attempt", "identifier", identifier)
	payload, err := s.service.Login(ctx, Credentials{Identifier: identifier, Secret: secret})
	return s.establish(ctx, establishOp{
		name:      "login",
		fallback:  msgLoginFailed,
		okMetric:  MetricLoginSuccess,
		errMetric: MetricLoginFailure,
		okEvent:   auditEventLoginSuccess,
		errEvent:  auditEventLoginFailure,
	}, payload, err)
}

// Register creates an account and signs it in, with the same contract as
// [Store.Login].
func (s *Store) Register(ctx context.Context, profile Profile) Result {
	if s == nil || s.service == nil {
		return notReady()
	}
	s.loading.Add(1)
	defer s.loading.Add(-1)

	s.logger.DebugContext(ctx, "registration attempt", "email", profile.Email, "role", string(profile.Role))
	payload, err := s.service.Register(ctx, profile)
	return s.establish(ctx, establishOp{
		name:      "register",
		fallback:  msgRegisterFailed,
		okMetric:  MetricRegisterSuccess,
		errMetric: MetricRegisterFailure,
		okEvent:   auditEventRegisterSuccess,
		errEvent:  auditEventRegisterFailure,
	}, payload, err)
}

type establishOp struct {
	name      string
	fallback  string
	okMetric  MetricID
	errMetric MetricID
	okEvent   string
	errEvent  string
}

func (s *Store) establish(ctx context.Context, op establishOp, payload AuthPayload, err error) Result {
	fail := func(message string, cause error) Result {
		s.metrics.Inc(op.errMetric)
		s.logger.WarnContext(ctx, op.name+" failed", "reason", message, "error", cause)
		s.emitAudit(ctx, op.errEvent, false, cause, nil, nil)
		return Result{Message: message, Err: cause}
	}

	if err != nil {
		return fail(failureMessage(err, op.fallback), err)
	}
	if payload.Token == "" || payload.User == nil {
		message := payload.Message
		if message == "" {
			message = msgInvalidResponse
		}
		return fail(message, ErrInvalidResponse)
	}

	user := payload.User.Clone()
	userJSON, err := json.Marshal(user)
	if err != nil {
		return fail(msgInvalidResponse, errors.Join(ErrInvalidResponse, err))
	}

	keys := s.config.Persistence

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.persist.Set(ctx, keys.TokenKey, payload.Token); err != nil {
		return fail(op.fallback, errors.Join(ErrPersistence, err))
	}
	if err := s.persist.Set(ctx, keys.UserKey, string(userJSON)); err != nil {
		s.restorePersistedLocked(ctx)
		return fail(op.fallback, errors.Join(ErrPersistence, err))
	}

	s.mu.Lock()
	s.token = payload.Token
	s.user = user
	s.generation++
	s.mu.Unlock()

	s.metrics.Inc(op.okMetric)
	s.logger.InfoContext(ctx, op.name+" succeeded", "user_id", user.ID, "role", string(user.Role))
	s.emitAudit(ctx, op.okEvent, true, nil, user, nil)
	return Result{Success: true}
}

// restorePersistedLocked puts the persisted credential back in line with
// the in-memory session after a half-finished write. Caller holds writeMu.
func (s *Store) restorePersistedLocked(ctx context.Context) {
	s.mu.RLock()
	token, user := s.token, s.user
	s.mu.RUnlock()

	keys := s.config.Persistence
	if token == "" {
		_ = s.persist.Remove(ctx, keys.TokenKey, keys.UserKey)
		return
	}
	_ = s.persist.Set(ctx, keys.TokenKey, token)
	if user != nil {
		if raw, err := json.Marshal(user); err == nil {
			_ = s.persist.Set(ctx, keys.UserKey, string(raw))
		}
	}
}

// Logout clears the token, the user and the persisted credential. It never
// touches the network and always succeeds; persistence errors are logged.
func (s *Store) Logout() {
	if s == nil {
		return
	}
	s.clear(context.Background(), MetricLogout, auditEventLogout, nil)
}

// HandleUnauthorized is called by the API client when a non-auth endpoint
// answers 401. It forces a logout if a credential is held.
func (s *Store) HandleUnauthorized(ctx context.Context) {
	if s == nil || !s.IsAuthenticated() {
		return
	}
	s.logger.WarnContext(ctx, "backend rejected credential, logging out")
	s.clear(ctx, MetricUnauthorizedLogout, auditEventUnauthorized, ErrInvalidCredentials)
}

func (s *Store) clear(ctx context.Context, metric MetricID, event string, cause error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.clearLocked(ctx, event, cause)
	s.metrics.Inc(metric)
}

// clearLocked wipes memory and persistence. Caller holds writeMu.
func (s *Store) clearLocked(ctx context.Context, event string, cause error) {
	s.mu.Lock()
	prev := s.user
	s.token = ""
	s.user = nil
	s.generation++
	s.mu.Unlock()

	keys := s.config.Persistence
	if err := s.persist.Remove(ctx, keys.TokenKey, keys.UserKey); err != nil {
		s.logger.ErrorContext(ctx, "failed to remove persisted credential", "error", err)
	}

	s.emitAudit(ctx, event, cause == nil, cause, prev, nil)
}

// Language returns the persisted UI language, or the configured default.
func (s *Store) Language(ctx context.Context) string {
	if s == nil {
		return defaultConfig().API.Language
	}
	lang, ok, err := s.persist.Get(ctx, s.config.Persistence.LanguageKey)
	if err != nil || !ok || lang == "" {
		return s.config.API.Language
	}
	return lang
}

// SetLanguage persists the UI language sent with every API request.
func (s *Store) SetLanguage(ctx context.Context, lang string) Result {
	if s == nil {
		return notReady()
	}
	if lang == "" {
		return Result{Message: "language must not be empty"}
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.persist.Set(ctx, s.config.Persistence.LanguageKey, lang); err != nil {
		err = errors.Join(ErrPersistence, err)
		return Result{Message: err.Error(), Err: err}
	}
	return Result{Success: true}
}

// Metrics returns the store's metrics set. The navigation guard records its
// decisions here as well.
func (s *Store) Metrics() *Metrics {
	if s == nil {
		return nil
	}
	return s.metrics
}

// MetricsSnapshot returns a copy of all counters and histograms.
func (s *Store) MetricsSnapshot() MetricsSnapshot {
	if s == nil || s.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return s.metrics.Snapshot()
}

// AuditDropped returns the number of audit events lost to backpressure.
func (s *Store) AuditDropped() uint64 {
	if s == nil {
		return 0
	}
	return s.audit.Dropped()
}

func notReady() Result {
	return Result{Message: ErrStoreNotReady.Error(), Err: ErrStoreNotReady}
}

// failureMessage picks the human-readable reason for a failed call: the
// server's own message first, then a transport message, then fallback.
func failureMessage(err error, fallback string) string {
	var sm interface{ ServerMessage() string }
	if errors.As(err, &sm) {
		if m := sm.ServerMessage(); m != "" {
			return m
		}
	}
	if errors.Is(err, ErrNetworkFailure) {
		return msgNetworkError
	}
	return fallback
}
