package goVolunteer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goVolunteer/persist"
	"github.com/golang-jwt/jwt/v5"
)

// serverError mimics the API client's error type: it carries the backend's
// own message and unwraps to a classified sentinel.
type serverError struct {
	message string
	kind    error
}

func (e *serverError) Error() string         { return fmt.Sprintf("%v: %s", e.kind, e.message) }
func (e *serverError) ServerMessage() string { return e.message }
func (e *serverError) Unwrap() error         { return e.kind }

type fakeAccount struct {
	password string
	user     User
}

type fakeAuth struct {
	mu       sync.Mutex
	accounts map[string]fakeAccount
	tokens   map[string]User
	nextID   int

	loginErr    error
	registerErr error
	meErr       error
	payload     *AuthPayload

	meGate  chan struct{}
	meCalls atomic.Int64
}

func newFakeAuth() *fakeAuth {
	f := &fakeAuth{
		accounts: make(map[string]fakeAccount),
		tokens:   make(map[string]User),
	}
	f.addUser("alice@example.org", "pw-alice", RoleOrganization)
	f.addUser("bob@example.org", "pw-bob", RoleVolunteer)
	f.addUser("root@example.org", "pw-root", RoleAdmin)
	return f
}

func (f *fakeAuth) addUser(email, password string, role Role) User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	u := User{ID: fmt.Sprintf("u%d", f.nextID), Email: email, Name: email, Role: role}
	f.accounts[email] = fakeAccount{password: password, user: u}
	return u
}

func (f *fakeAuth) issue(u User) string {
	token := fmt.Sprintf("tok-%s-%d", u.ID, len(f.tokens)+1)
	f.tokens[token] = u
	return token
}

func (f *fakeAuth) Login(_ context.Context, creds Credentials) (AuthPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loginErr != nil {
		return AuthPayload{}, f.loginErr
	}
	if f.payload != nil {
		return *f.payload, nil
	}
	acct, ok := f.accounts[creds.Identifier]
	if !ok || acct.password != creds.Secret {
		return AuthPayload{}, &serverError{message: "Invalid email or password", kind: ErrInvalidCredentials}
	}
	u := acct.user
	return AuthPayload{Token: f.issue(u), User: &u}, nil
}

func (f *fakeAuth) Register(_ context.Context, p Profile) (AuthPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.registerErr != nil {
		return AuthPayload{}, f.registerErr
	}
	if _, exists := f.accounts[p.Email]; exists {
		return AuthPayload{}, &serverError{message: "Email already registered", kind: ErrInvalidCredentials}
	}
	f.nextID++
	u := User{ID: fmt.Sprintf("u%d", f.nextID), Email: p.Email, Name: p.Name, Role: p.Role}
	f.accounts[p.Email] = fakeAccount{password: p.Password, user: u}
	return AuthPayload{Token: f.issue(u), User: &u}, nil
}

func (f *fakeAuth) CurrentUser(ctx context.Context, token string) (*User, error) {
	f.meCalls.Add(1)

	f.mu.Lock()
	gate := f.meGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, errors.Join(ErrNetworkFailure, ctx.Err())
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.meErr != nil {
		return nil, f.meErr
	}
	u, ok := f.tokens[token]
	if !ok {
		return nil, &serverError{message: "Invalid token", kind: ErrInvalidCredentials}
	}
	return &u, nil
}

func (f *fakeAuth) setMeErr(err error) {
	f.mu.Lock()
	f.meErr = err
	f.mu.Unlock()
}

func (f *fakeAuth) setMeGate(gate chan struct{}) {
	f.mu.Lock()
	f.meGate = gate
	f.mu.Unlock()
}

// tokenFor registers a server-side token for the account without logging in.
func (f *fakeAuth) tokenFor(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issue(f.accounts[email].user)
}

type failingPersist struct {
	*persist.Memory
	failSet    atomic.Bool
	failGet    atomic.Bool
	failRemove atomic.Bool
}

func newFailingPersist() *failingPersist {
	return &failingPersist{Memory: persist.NewMemory()}
}

func (p *failingPersist) Get(ctx context.Context, key string) (string, bool, error) {
	if p.failGet.Load() {
		return "", false, persist.ErrUnavailable
	}
	return p.Memory.Get(ctx, key)
}

func (p *failingPersist) Set(ctx context.Context, key, value string) error {
	if p.failSet.Load() {
		return persist.ErrUnavailable
	}
	return p.Memory.Set(ctx, key, value)
}

func (p *failingPersist) Remove(ctx context.Context, keys ...string) error {
	if p.failRemove.Load() {
		return persist.ErrUnavailable
	}
	return p.Memory.Remove(ctx, keys...)
}

func newTestStore(t *testing.T, auth *fakeAuth, store persist.Store) *Store {
	t.Helper()
	b := New().WithAuthService(auth)
	if store != nil {
		b = b.WithPersistence(store)
	}
	s, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}
