package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	goVolunteer "github.com/MrEthical07/goVolunteer"
)

type stubSession struct {
	token        string
	language     string
	unauthorized atomic.Int64
}

func (s *stubSession) Token() string                          { return s.token }
func (s *stubSession) Language(context.Context) string        { return s.language }
func (s *stubSession) HandleUnauthorized(ctx context.Context) { s.unauthorized.Add(1) }

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/api", Timeout: 2 * time.Second, UserAgent: "test-agent"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewValidatesBaseURL(t *testing.T) {
	for _, base := range []string{"", "   ", "ftp://example.org", "://bad"} {
		if _, err := New(Config{BaseURL: base}); err == nil {
			t.Fatalf("expected error for base URL %q", base)
		}
	}
	c, err := New(ConfigFrom(goVolunteer.DefaultConfig().API))
	if err != nil {
		t.Fatalf("default config must be accepted: %v", err)
	}
	if c.BaseURL() != "http://localhost:3000/api" {
		t.Fatalf("unexpected base URL %q", c.BaseURL())
	}
}

func TestLoginSendsCredentialsAndDecodes(t *testing.T) {
	var gotPath, gotLang, gotRequestID, gotUA, gotCT string
	var body map[string]string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotLang = r.URL.Query().Get("language")
		gotRequestID = r.Header.Get("X-Request-ID")
		gotUA = r.Header.Get("User-Agent")
		gotCT = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, map[string]any{
			"token": "tok-1",
			"user":  map[string]any{"_id": "abc", "email": "alice@example.org", "role": "organization", "city": "Lyon"},
		})
	})

	payload, err := c.Login(context.Background(), goVolunteer.Credentials{Identifier: "alice@example.org", Secret: "pw"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if gotPath != "/api/auth/login" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if body["email"] != "alice@example.org" || body["password"] != "pw" {
		t.Fatalf("unexpected body %v", body)
	}
	if gotLang != "en" || gotRequestID == "" || gotUA != "test-agent" || gotCT != "application/json" {
		t.Fatalf("missing decorations: lang=%q id=%q ua=%q ct=%q", gotLang, gotRequestID, gotUA, gotCT)
	}
	if payload.Token != "tok-1" || payload.User == nil || payload.User.ID != "abc" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.User.Role != goVolunteer.RoleOrganization || payload.User.Fields["city"] != "Lyon" {
		t.Fatalf("unexpected user %+v", payload.User)
	}
}

func TestLoginFailureCarriesServerMessage(t *testing.T) {
	session := &stubSession{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid email or password"})
	})
	c.Bind(session)

	_, err := c.Login(context.Background(), goVolunteer.Credentials{Identifier: "a", Secret: "b"})
	if !errors.Is(err, goVolunteer.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || apiErr.ServerMessage() != "Invalid email or password" {
		t.Fatalf("unexpected error %#v", err)
	}
	if session.unauthorized.Load() != 0 {
		t.Fatal("401 from an auth endpoint must not trigger the unauthorized hook")
	}
}

func TestValidationErrorsSurfaceFirstMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"errors": []map[string]string{
				{"msg": "Please provide a valid email", "path": "email", "location": "body"},
				{"msg": "Password is too short", "path": "password", "location": "body"},
			},
		})
	})

	_, err := c.Register(context.Background(), goVolunteer.Profile{Email: "nope"})
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.ServerMessage() != "Please provide a valid email" {
		t.Fatalf("unexpected server message %q", apiErr.ServerMessage())
	}
	if len(apiErr.Errors) != 2 || apiErr.Errors[1].Path != "password" {
		t.Fatalf("unexpected field errors %+v", apiErr.Errors)
	}
	if !errors.Is(err, goVolunteer.ErrServerError) {
		t.Fatalf("400 must classify as ErrServerError, got %v", err)
	}
}

func TestServerErrorClassification(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.Login(context.Background(), goVolunteer.Credentials{})
	if !errors.Is(err, goVolunteer.ErrServerError) {
		t.Fatalf("expected ErrServerError, got %v", err)
	}
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.ServerMessage() != "" {
		t.Fatalf("plain-text body must not produce a server message, got %q", apiErr.ServerMessage())
	}
}

func TestNetworkFailureClassification(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: base, Timeout: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.CurrentUser(context.Background(), "tok")
	if !errors.Is(err, goVolunteer.ErrNetworkFailure) {
		t.Fatalf("expected ErrNetworkFailure, got %v", err)
	}
}

func TestRegisterFlattensExtraFields(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusCreated, map[string]any{
			"token": "tok-2",
			"user":  map[string]any{"id": 7, "email": "org@example.org", "role": "organization"},
		})
	})

	payload, err := c.Register(context.Background(), goVolunteer.Profile{
		Name:     "Org",
		Email:    "org@example.org",
		Password: "pw",
		Role:     goVolunteer.RoleOrganization,
		Extra:    map[string]any{"organizationName": "Helpers", "email": "ignored@example.org"},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if body["organizationName"] != "Helpers" || body["role"] != "organization" {
		t.Fatalf("unexpected body %v", body)
	}
	if body["email"] != "org@example.org" {
		t.Fatal("well-known fields must win over Extra")
	}
	if payload.User.ID != "7" {
		t.Fatalf("numeric id must decode as string, got %q", payload.User.ID)
	}
}

func TestLoginIncompletePayloadPassedThrough(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"message": "Check your inbox"})
	})

	payload, err := c.Login(context.Background(), goVolunteer.Credentials{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if payload.Token != "" || payload.User != nil || payload.Message != "Check your inbox" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestCurrentUserEnvelopes(t *testing.T) {
	bodies := map[string]string{
		"bare":    `{"_id":"u1","email":"a@example.org","role":"volunteer"}`,
		"user":    `{"user":{"_id":"u1","email":"a@example.org","role":"volunteer"}}`,
		"data":    `{"success":true,"data":{"id":"u1","email":"a@example.org","role":"volunteer"}}`,
		"numeric": `{"id":1e3,"email":"a@example.org","role":"Volunteer"}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			var gotAuth string
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(body))
			})

			u, err := c.CurrentUser(context.Background(), "tok-xyz")
			if err != nil {
				t.Fatalf("CurrentUser: %v", err)
			}
			if gotAuth != "Bearer tok-xyz" {
				t.Fatalf("unexpected Authorization %q", gotAuth)
			}
			if u.Role != goVolunteer.RoleVolunteer || u.Email != "a@example.org" {
				t.Fatalf("unexpected user %+v", u)
			}
		})
	}
}

func TestCurrentUserMalformedBody(t *testing.T) {
	for _, body := range []string{`not json`, `null`, `{}`, `[]`, ``} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		})
		if _, err := c.CurrentUser(context.Background(), "tok"); !errors.Is(err, goVolunteer.ErrInvalidResponse) {
			t.Fatalf("body %q: expected ErrInvalidResponse, got %v", body, err)
		}
	}
}

func TestDoUsesBoundSessionAndReports401(t *testing.T) {
	session := &stubSession{token: "tok-session", language: "fr"}
	var gotAuth, gotLang, gotPage string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotLang = r.URL.Query().Get("language")
		gotPage = r.URL.Query().Get("page")
		if r.URL.Path == "/api/notifications/expired" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Token expired"})
			return
		}
		writeJSON(w, http.StatusOK, []string{"n1", "n2"})
	})
	c.Bind(session)

	var out []string
	if err := c.Do(context.Background(), http.MethodGet, "/notifications", map[string][]string{"page": {"2"}}, nil, &out); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if gotAuth != "Bearer tok-session" || gotLang != "fr" || gotPage != "2" || len(out) != 2 {
		t.Fatalf("auth=%q lang=%q page=%q out=%v", gotAuth, gotLang, gotPage, out)
	}

	err := c.Do(context.Background(), http.MethodGet, "/notifications/expired", nil, nil, nil)
	if !errors.Is(err, goVolunteer.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if session.unauthorized.Load() != 1 {
		t.Fatalf("expected one unauthorized notification, got %d", session.unauthorized.Load())
	}
}

func TestLanguageFallsBackToConfig(t *testing.T) {
	var gotLang string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotLang = r.URL.Query().Get("language")
		w.WriteHeader(http.StatusNoContent)
	})
	c.Bind(&stubSession{})

	if err := c.Do(context.Background(), http.MethodPost, "/contact", nil, map[string]string{"m": "hi"}, nil); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if gotLang != "en" {
		t.Fatalf("expected default language, got %q", gotLang)
	}
}
