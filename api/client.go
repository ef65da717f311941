package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	goVolunteer "github.com/MrEthical07/goVolunteer"
	"github.com/google/uuid"
)

const (
	pathLogin    = "/auth/login"
	pathRegister = "/auth/register"
	pathMe       = "/auth/me"

	maxBodyBytes = 1 << 20
)

// Config configures a [Client].
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	Language  string // used until a Session is bound
	UserAgent string

	// HTTPClient overrides the transport. Its Timeout is left alone.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// ConfigFrom converts the root API configuration.
func ConfigFrom(cfg goVolunteer.APIConfig) Config {
	return Config{
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.Timeout,
		Language:  cfg.Language,
		UserAgent: cfg.UserAgent,
	}
}

// Session is the view of the session store the client needs: the current
// credential, the UI language and the 401 hook. *goVolunteer.Store
// satisfies it.
type Session interface {
	Token() string
	Language(ctx context.Context) string
	HandleUnauthorized(ctx context.Context)
}

// Client talks to the platform backend. It is safe for concurrent use.
type Client struct {
	base   *url.URL
	http   *http.Client
	cfg    Config
	logger *slog.Logger

	mu      sync.RWMutex
	session Session
}

var _ goVolunteer.AuthService = (*Client)(nil)

// New validates cfg and returns a Client. It performs no I/O.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("api: base URL must be set")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, errors.New("api: base URL is not a valid URL")
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.New("api: base URL must use http or https")
	}
	if cfg.Timeout < 0 {
		return nil, errors.New("api: timeout must be >= 0")
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		base:   base,
		http:   hc,
		cfg:    cfg,
		logger: logger.With("component", "api"),
	}, nil
}

// Bind attaches the session whose credential and language decorate every
// request and which receives 401 notifications.
func (c *Client) Bind(s Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

func (c *Client) bound() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

type authResponse struct {
	Token   string            `json:"token"`
	User    *goVolunteer.User `json:"user"`
	Message string            `json:"message"`
}

// Login calls POST /auth/login. The identifier is sent as the email.
func (c *Client) Login(ctx context.Context, creds goVolunteer.Credentials) (goVolunteer.AuthPayload, error) {
	body := map[string]string{
		"email":    creds.Identifier,
		"password": creds.Secret,
	}
	var out authResponse
	if err := c.do(ctx, http.MethodPost, pathLogin, nil, body, "", &out); err != nil {
		return goVolunteer.AuthPayload{}, err
	}
	return goVolunteer.AuthPayload{Token: out.Token, User: out.User, Message: out.Message}, nil
}

// Register calls POST /auth/register. Profile.Extra is flattened into the
// request body next to the well-known fields.
func (c *Client) Register(ctx context.Context, p goVolunteer.Profile) (goVolunteer.AuthPayload, error) {
	body := make(map[string]any, len(p.Extra)+4)
	for k, v := range p.Extra {
		body[k] = v
	}
	body["name"] = p.Name
	body["email"] = p.Email
	body["password"] = p.Password
	if p.Role != "" {
		body["role"] = string(p.Role)
	}

	var out authResponse
	if err := c.do(ctx, http.MethodPost, pathRegister, nil, body, "", &out); err != nil {
		return goVolunteer.AuthPayload{}, err
	}
	return goVolunteer.AuthPayload{Token: out.Token, User: out.User, Message: out.Message}, nil
}

// CurrentUser calls GET /auth/me with token as the bearer credential. The
// user may come bare or wrapped in {"user": ...} or {"data": ...}.
func (c *Client) CurrentUser(ctx context.Context, token string) (*goVolunteer.User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, pathMe, nil, nil, token, &raw); err != nil {
		return nil, err
	}

	user, err := decodeUser(raw)
	if err != nil {
		return nil, &Error{Method: http.MethodGet, Path: pathMe, Err: goVolunteer.ErrInvalidResponse, Cause: err}
	}
	return user, nil
}

func decodeUser(raw json.RawMessage) (*goVolunteer.User, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}
	for _, key := range []string{"user", "data"} {
		if inner, ok := envelope[key]; ok && isObject(inner) {
			raw = inner
			break
		}
	}

	var u goVolunteer.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, err
	}
	if u.ID == "" && u.Email == "" {
		return nil, errors.New("user record has neither id nor email")
	}
	return &u, nil
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

// Do performs an authenticated JSON request against a non-auth endpoint,
// decoding a 2xx body into out when out is non-nil. A 401 answer is
// reported to the bound session before the error is returned.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	return c.do(ctx, method, path, query, body, "", out)
}

// do sends one request. token overrides the bound session's credential.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, token string, out any) error {
	session := c.bound()
	if token == "" && session != nil {
		token = session.Token()
	}

	target := c.base.JoinPath(path)
	q := target.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("language", c.language(ctx, session))
	target.RawQuery = q.Encode()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return &Error{Method: method, Path: path, Err: goVolunteer.ErrInvalidResponse, Cause: err}
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return &Error{Method: method, Path: path, Err: goVolunteer.ErrNetworkFailure, Cause: err}
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return &Error{Method: method, Path: path, Err: goVolunteer.ErrNetworkFailure, Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.logger.DebugContext(ctx, "request done",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start),
	)
	if err != nil {
		return &Error{Method: method, Path: path, Status: resp.StatusCode, Err: goVolunteer.ErrNetworkFailure, Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Method: method, Path: path, Status: resp.StatusCode, Err: classify(resp.StatusCode)}
		var payload struct {
			Message string       `json:"message"`
			Errors  []FieldError `json:"errors"`
		}
		if json.Unmarshal(data, &payload) == nil {
			apiErr.Message = payload.Message
			apiErr.Errors = payload.Errors
		}
		if resp.StatusCode == http.StatusUnauthorized && !isAuthPath(path) && session != nil {
			session.HandleUnauthorized(ctx)
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		if out != nil {
			return &Error{Method: method, Path: path, Status: resp.StatusCode, Err: goVolunteer.ErrInvalidResponse, Cause: io.ErrUnexpectedEOF}
		}
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Method: method, Path: path, Status: resp.StatusCode, Err: goVolunteer.ErrInvalidResponse, Cause: err}
	}
	return nil
}

func (c *Client) language(ctx context.Context, session Session) string {
	if session != nil {
		if lang := session.Language(ctx); lang != "" {
			return lang
		}
	}
	return c.cfg.Language
}

// isAuthPath reports whether path belongs to the authentication endpoints,
// whose 401s are the caller's business.
func isAuthPath(path string) bool {
	return strings.HasPrefix(path, "/auth/")
}
