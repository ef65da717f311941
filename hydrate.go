package goVolunteer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Bootstrap is the explicit startup step: call it once before the first
// navigation so the guard normally finds the session already hydrated.
func (s *Store) Bootstrap(ctx context.Context) Result {
	return s.Hydrate(ctx)
}

// NeedsHydration reports whether a persisted credential exists that the
// store has not turned into a user yet. A persistence read error counts as
// "yes" so that Hydrate runs and fails closed.
func (s *Store) NeedsHydration(ctx context.Context) bool {
	if s == nil {
		return false
	}
	token, ok, err := s.persist.Get(ctx, s.config.Persistence.TokenKey)
	if err != nil {
		s.logger.WarnContext(ctx, "credential lookup failed", "error", err)
		return true
	}
	if !ok || token == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user == nil || s.token != token
}

// Hydrate rebuilds the user from the persisted credential. When the
// credential is rejected, cannot be checked (network, server or
// persistence failure) or has expired, the session is cleared and the
// client continues anonymously.
//
// Concurrent calls for the same credential share one current-user request;
// every caller gets the same Result.
func (s *Store) Hydrate(ctx context.Context) Result {
	if s == nil || s.service == nil {
		return notReady()
	}

	// The generation must predate the credential read: a login or logout
	// committing after the read makes this hydration stale.
	s.mu.RLock()
	gen := s.generation
	s.mu.RUnlock()

	token, ok, err := s.persist.Get(ctx, s.config.Persistence.TokenKey)
	if err != nil {
		return s.failHydration(ctx, gen, errors.Join(ErrPersistence, err))
	}
	if !ok || token == "" {
		return Result{Message: ErrNoCredential.Error(), Err: ErrNoCredential}
	}

	s.loading.Add(1)
	defer s.loading.Add(-1)

	v, _, shared := s.hydrations.Do(token, func() (any, error) {
		return s.hydrate(ctx, token, gen), nil
	})
	if shared {
		s.metrics.Inc(MetricHydrateShared)
	}
	return v.(Result)
}

func (s *Store) hydrate(ctx context.Context, token string, gen uint64) Result {
	s.mu.RLock()
	already := s.generation == gen && s.user != nil && s.token == token
	s.mu.RUnlock()
	if already {
		return Result{Success: true}
	}

	if s.config.Session.CheckCredentialExpiry {
		if exp, ok := CredentialExpiry(token); ok && !s.now().Add(-s.config.Session.ExpiryLeeway).Before(exp) {
			s.metrics.Inc(MetricHydrateExpired)
			return s.failHydration(ctx, gen, fmt.Errorf("%w at %s", ErrCredentialExpired, exp.UTC().Format(time.RFC3339)))
		}
	}

	// The fetch is shared by every waiter, so it must not die with the
	// first caller's context.
	fetchCtx := context.WithoutCancel(ctx)
	if timeout := s.config.Session.HydrateTimeout; timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(fetchCtx, timeout)
		defer cancel()
	}

	start := time.Now()
	user, err := s.service.CurrentUser(fetchCtx, token)
	s.metrics.Observe(MetricHydrateLatency, time.Since(start))
	if err == nil && user == nil {
		err = ErrInvalidResponse
	}
	if err != nil {
		return s.failHydration(ctx, gen, err)
	}

	user = user.Clone()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.generation != gen {
		// A login or logout won the race; its state stands.
		hydrated := s.user != nil
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "discarding stale hydration")
		if hydrated {
			return Result{Success: true}
		}
		return Result{Message: ErrNoCredential.Error(), Err: ErrNoCredential}
	}
	s.token = token
	s.user = user
	s.mu.Unlock()

	if raw, err := json.Marshal(user); err == nil {
		if err := s.persist.Set(ctx, s.config.Persistence.UserKey, string(raw)); err != nil {
			s.logger.WarnContext(ctx, "failed to persist hydrated user", "error", err)
		}
	}

	s.metrics.Inc(MetricHydrateSuccess)
	s.logger.InfoContext(ctx, "session restored", "user_id", user.ID, "role", string(user.Role))
	s.emitAudit(ctx, auditEventHydrateSuccess, true, nil, user, nil)
	return Result{Success: true}
}

// failHydration forces a logout unless the session changed since gen.
func (s *Store) failHydration(ctx context.Context, gen uint64, cause error) Result {
	s.metrics.Inc(MetricHydrateFailure)
	s.logger.WarnContext(ctx, "session hydration failed, continuing anonymously", "error", cause)

	s.writeMu.Lock()
	s.mu.RLock()
	current := s.generation == gen
	s.mu.RUnlock()
	if current {
		s.clearLocked(ctx, auditEventHydrateFailure, cause)
	}
	s.writeMu.Unlock()

	return Result{Message: failureMessage(cause, msgSessionNotRestored), Err: cause}
}

// CredentialExpiry reads the exp claim of a JWT credential without
// verifying its signature. ok is false for opaque tokens and for JWTs
// without an expiry. The signature is the backend's business; the client
// only uses exp to avoid a pointless round trip.
func CredentialExpiry(token string) (exp time.Time, ok bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
