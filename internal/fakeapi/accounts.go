package fakeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	goVolunteer "github.com/MrEthical07/goVolunteer"
	"github.com/MrEthical07/goVolunteer/persist"
	"github.com/google/uuid"
)

const accountKeyPrefix = "account:"

var (
	errAccountExists   = errors.New("account already exists")
	errAccountNotFound = errors.New("account not found")
)

// Account is a backend user record.
type Account struct {
	ID           string           `json:"id"`
	Email        string           `json:"email"`
	Name         string           `json:"name"`
	Role         goVolunteer.Role `json:"role"`
	PasswordHash string           `json:"password_hash"`
	Fields       map[string]any   `json:"fields,omitempty"`
}

// User converts the account into the record /auth/me returns.
func (a *Account) User() *goVolunteer.User {
	u := &goVolunteer.User{ID: a.ID, Email: a.Email, Name: a.Name, Role: a.Role}
	if len(a.Fields) > 0 {
		u.Fields = make(map[string]any, len(a.Fields))
		for k, v := range a.Fields {
			u.Fields[k] = v
		}
	}
	return u
}

// accounts keeps Account records as JSON values keyed by normalized email.
type accounts struct {
	store  persist.Store
	params hashParams

	// mu makes the exists-check and write of create atomic.
	mu sync.Mutex
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a *accounts) get(ctx context.Context, email string) (*Account, error) {
	raw, ok, err := a.store.Get(ctx, accountKeyPrefix+normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errAccountNotFound
	}
	var acc Account
	if err := json.Unmarshal([]byte(raw), &acc); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	return &acc, nil
}

func (a *accounts) create(ctx context.Context, email, name, password string, role goVolunteer.Role, fields map[string]any) (*Account, error) {
	hash, err := hashPassword(password, a.params)
	if err != nil {
		return nil, err
	}
	acc := &Account{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(email),
		Name:         strings.TrimSpace(name),
		Role:         role,
		PasswordHash: hash,
		Fields:       fields,
	}
	raw, err := json.Marshal(acc)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.get(ctx, acc.Email); err == nil {
		return nil, errAccountExists
	} else if !errors.Is(err, errAccountNotFound) {
		return nil, err
	}
	if err := a.store.Set(ctx, accountKeyPrefix+acc.Email, string(raw)); err != nil {
		return nil, err
	}
	return acc, nil
}

// authenticate returns the account when password matches. Unknown emails
// and wrong passwords are indistinguishable to the caller.
func (a *accounts) authenticate(ctx context.Context, email, password string) (*Account, error) {
	acc, err := a.get(ctx, email)
	if err != nil {
		return nil, err
	}
	ok, err := verifyPassword(password, acc.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errAccountNotFound
	}
	return acc, nil
}

func (a *accounts) remove(ctx context.Context, email string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.Remove(ctx, accountKeyPrefix+normalizeEmail(email))
}
