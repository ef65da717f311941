package goVolunteer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	internalaudit "github.com/MrEthical07/goVolunteer/internal/audit"
)

// Role is the mutually exclusive classification of the current user.
type Role string

const (
	// RoleVolunteer is the role of individual volunteers.
	RoleVolunteer Role = "volunteer"
	// RoleOrganization is the role of organizations publishing announcements.
	RoleOrganization Role = "organization"
	// RoleAdmin is the role of platform administrators.
	RoleAdmin Role = "admin"
)

// ParseRole converts s into a [Role]. Matching is case-insensitive and
// ignores surrounding whitespace; anything outside the closed set fails with
// [ErrInvalidRole].
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleVolunteer, RoleOrganization, RoleAdmin:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// User is the current-user record returned by the authentication service.
// Profile fields other than the ones the session core needs are kept in
// Fields so they survive a round trip through persistence.
type User struct {
	ID    string
	Email string
	Name  string
	Role  Role

	Fields map[string]any
}

// Clone returns a copy of u that shares no mutable state with it.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	if u.Fields != nil {
		out.Fields = make(map[string]any, len(u.Fields))
		for k, v := range u.Fields {
			out.Fields[k] = v
		}
	}
	return &out
}

// UnmarshalJSON accepts both "id" and "_id", as strings or numbers.
func (u *User) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("%w: user record is null", ErrInvalidResponse)
	}

	*u = User{}
	for _, key := range []string{"id", "_id"} {
		if v, ok := raw[key]; ok {
			if u.ID == "" {
				u.ID = scalarString(v)
			}
			delete(raw, key)
		}
	}
	if v, ok := raw["email"]; ok {
		u.Email = scalarString(v)
		delete(raw, "email")
	}
	if v, ok := raw["name"]; ok {
		u.Name = scalarString(v)
		delete(raw, "name")
	}
	if v, ok := raw["role"]; ok {
		u.Role = Role(strings.ToLower(scalarString(v)))
		delete(raw, "role")
	}
	if len(raw) > 0 {
		u.Fields = raw
	}
	return nil
}

// MarshalJSON writes Fields back next to the well-known keys.
func (u User) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(u.Fields)+4)
	for k, v := range u.Fields {
		out[k] = v
	}
	if u.ID != "" {
		out["id"] = u.ID
	}
	if u.Email != "" {
		out["email"] = u.Email
	}
	if u.Name != "" {
		out["name"] = u.Name
	}
	if u.Role != "" {
		out["role"] = string(u.Role)
	}
	return json.Marshal(out)
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// Credentials is the input for [AuthService.Login].
type Credentials struct {
	Identifier string
	Secret     string
}

// Profile is the input for [AuthService.Register]. Extra carries any
// additional registration fields (organization name, phone, city...).
type Profile struct {
	Name     string
	Email    string
	Password string
	Role     Role
	Extra    map[string]any
}

// AuthPayload is what a successful login or registration returns. Message
// is the server-supplied text, if any; it is surfaced when the payload is
// incomplete.
type AuthPayload struct {
	Token   string
	User    *User
	Message string
}

// AuthService is the external authentication collaborator. Implementations
// must be safe for concurrent use. [api.Client] is the HTTP implementation.
type AuthService interface {
	Login(ctx context.Context, creds Credentials) (AuthPayload, error)
	Register(ctx context.Context, profile Profile) (AuthPayload, error)
	CurrentUser(ctx context.Context, token string) (*User, error)
}

// Result is the uniform outcome of every public [Store] operation. Store
// methods never return errors; failures are carried here with a
// human-readable Message and the classified Err for errors.Is checks.
type Result struct {
	Success bool
	Message string
	Err     error
}

// Snapshot is a read-only view of the session at one point in time.
type Snapshot struct {
	Authenticated bool
	Hydrated      bool
	UserID        string
	Role          Role
}

// IsOrganization reports whether the snapshot's role is organization.
func (s Snapshot) IsOrganization() bool { return s.Role == RoleOrganization }

// IsVolunteer reports whether the snapshot's role is volunteer.
func (s Snapshot) IsVolunteer() bool { return s.Role == RoleVolunteer }

// IsAdmin reports whether the snapshot's role is admin.
func (s Snapshot) IsAdmin() bool { return s.Role == RoleAdmin }

// AuditEvent is a structured audit record emitted by the session core.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
var NewChannelSink = internalaudit.NewChannelSink

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
var NewJSONWriterSink = internalaudit.NewJSONWriterSink
