package fakeapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	goVolunteer "github.com/MrEthical07/goVolunteer"
	"github.com/MrEthical07/goVolunteer/internal/rate"
	"github.com/MrEthical07/goVolunteer/persist"
)

const (
	// Prefix is the path every endpoint is mounted under.
	Prefix = "/api"

	maxBodyBytes      = 1 << 20
	minPasswordLength = 8
)

// Config configures a [Server].
type Config struct {
	Secret   []byte
	TokenTTL time.Duration
	Issuer   string

	// MeDelay holds every /auth/me answer back; the stress tool uses it to
	// widen the window in which concurrent hydrations overlap.
	MeDelay time.Duration

	// Accounts stores user records. Nil means a fresh in-memory store.
	Accounts persist.Store

	// Limiter throttles failed logins. Nil disables throttling.
	Limiter *rate.Limiter
	Logger  *slog.Logger
	Now     func() time.Time
}

// SeedAccount describes an account created at startup.
type SeedAccount struct {
	Email    string
	Password string
	Name     string
	Role     goVolunteer.Role
}

// DemoAccounts holds one account per role for local development.
var DemoAccounts = []SeedAccount{
	{Email: "organization@example.org", Password: "organize123", Name: "Green Earth", Role: goVolunteer.RoleOrganization},
	{Email: "volunteer@example.org", Password: "volunteer123", Name: "Sam Rivera", Role: goVolunteer.RoleVolunteer},
	{Email: "admin@example.org", Password: "administer123", Name: "Platform Admin", Role: goVolunteer.RoleAdmin},
}

// Server serves the fake authentication endpoints. It is safe for
// concurrent use.
type Server struct {
	signer   *Signer
	accounts *accounts
	limiter  *rate.Limiter
	logger   *slog.Logger
	meDelay  time.Duration
	mux      *http.ServeMux

	meCalls      atomic.Int64
	lastLanguage atomic.Value
}

// New validates cfg and returns a Server with no accounts.
func New(cfg Config) (*Server, error) {
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = time.Hour
	}
	signer, err := NewSigner(TokenConfig{
		Secret: cfg.Secret,
		TTL:    cfg.TokenTTL,
		Issuer: cfg.Issuer,
		Now:    cfg.Now,
	})
	if err != nil {
		return nil, err
	}
	if cfg.MeDelay < 0 {
		return nil, errors.New("MeDelay must be >= 0")
	}
	store := cfg.Accounts
	if store == nil {
		store = persist.NewMemory()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		signer:   signer,
		accounts: &accounts{store: store, params: defaultHashParams},
		limiter:  cfg.Limiter,
		logger:   logger.With("component", "fakeapi"),
		meDelay:  cfg.MeDelay,
		mux:      http.NewServeMux(),
	}
	s.lastLanguage.Store("")

	s.mux.HandleFunc("POST "+Prefix+"/auth/login", s.handleLogin)
	s.mux.HandleFunc("POST "+Prefix+"/auth/register", s.handleRegister)
	s.mux.Handle("GET "+Prefix+"/auth/me", s.requireBearer(http.HandlerFunc(s.handleMe)))
	s.mux.Handle("GET "+Prefix+"/notifications", s.requireBearer(http.HandlerFunc(s.handleNotifications)))
	return s, nil
}

// Handler returns the root handler, with request logging.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if lang := r.URL.Query().Get("language"); lang != "" {
			s.lastLanguage.Store(lang)
		}
		if id := r.Header.Get("X-Request-ID"); id != "" {
			w.Header().Set("X-Request-ID", id)
		}
		start := time.Now()
		s.mux.ServeHTTP(w, r)
		s.logger.DebugContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", r.Header.Get("X-Request-ID"),
			"duration", time.Since(start),
		)
	})
}

// Seed creates accounts, failing on the first error.
func (s *Server) Seed(ctx context.Context, seeds ...SeedAccount) error {
	for _, a := range seeds {
		if _, err := s.accounts.create(ctx, a.Email, a.Name, a.Password, a.Role, nil); err != nil {
			return err
		}
	}
	return nil
}

// DeleteAccount removes an account. Tokens issued for it stop working at
// /auth/me.
func (s *Server) DeleteAccount(ctx context.Context, email string) error {
	return s.accounts.remove(ctx, email)
}

// Signer exposes the token signer, for tests that need crafted tokens.
func (s *Server) Signer() *Signer {
	return s.signer
}

// MeCalls reports how many /auth/me requests reached the handler.
func (s *Server) MeCalls() int64 {
	return s.meCalls.Load()
}

// LastLanguage returns the language query parameter of the latest request.
func (s *Server) LastLanguage() string {
	return s.lastLanguage.Load().(string)
}

type fieldError struct {
	Msg      string `json:"msg"`
	Path     string `json:"path,omitempty"`
	Location string `json:"location,omitempty"`
}

type errorBody struct {
	Message string       `json:"message,omitempty"`
	Errors  []fieldError `json:"errors,omitempty"`
}

type authBody struct {
	Token   string            `json:"token"`
	User    *goVolunteer.User `json:"user"`
	Message string            `json:"message,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	var invalid []fieldError
	if strings.TrimSpace(req.Email) == "" {
		invalid = append(invalid, bodyError("email", "Email is required"))
	}
	if req.Password == "" {
		invalid = append(invalid, bodyError("password", "Password is required"))
	}
	if len(invalid) > 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Errors: invalid})
		return
	}

	ip := clientIP(r)
	if s.limiter != nil {
		err := s.limiter.CheckLogin(r.Context(), req.Email, ip)
		if errors.Is(err, rate.ErrRateLimited) {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Message: "Too many login attempts, please try again later"})
			return
		}
		if err != nil {
			s.internalError(w, r, "login throttle", err)
			return
		}
	}

	acc, err := s.accounts.authenticate(r.Context(), req.Email, req.Password)
	if errors.Is(err, errAccountNotFound) {
		if s.limiter != nil {
			if err := s.limiter.RecordFailure(r.Context(), req.Email, ip); err != nil {
				s.logger.WarnContext(r.Context(), "failed to record login failure", "error", err)
			}
		}
		writeJSON(w, http.StatusUnauthorized, errorBody{Message: "Invalid credentials"})
		return
	}
	if err != nil {
		s.internalError(w, r, "login", err)
		return
	}
	if s.limiter != nil {
		if err := s.limiter.Reset(r.Context(), req.Email); err != nil {
			s.logger.WarnContext(r.Context(), "failed to reset login throttle", "error", err)
		}
	}
	s.respondWithToken(w, r, http.StatusOK, acc, "Login successful")
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	if !decodeBody(w, r, &req) {
		return
	}

	take := func(key string) string {
		v, _ := req[key].(string)
		delete(req, key)
		return v
	}
	name, email, password, rawRole := take("name"), take("email"), take("password"), take("role")

	var invalid []fieldError
	if strings.TrimSpace(name) == "" {
		invalid = append(invalid, bodyError("name", "Name is required"))
	}
	if !strings.Contains(email, "@") {
		invalid = append(invalid, bodyError("email", "Please include a valid email"))
	}
	if len(password) < minPasswordLength {
		invalid = append(invalid, bodyError("password", "Password must be at least 8 characters"))
	}
	role := goVolunteer.RoleVolunteer
	if rawRole != "" {
		parsed, err := goVolunteer.ParseRole(rawRole)
		if err != nil || parsed == goVolunteer.RoleAdmin {
			invalid = append(invalid, bodyError("role", "Invalid role"))
		} else {
			role = parsed
		}
	}
	if len(invalid) > 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Errors: invalid})
		return
	}

	var fields map[string]any
	if len(req) > 0 {
		fields = req
	}
	acc, err := s.accounts.create(r.Context(), email, name, password, role, fields)
	if errors.Is(err, errAccountExists) {
		writeJSON(w, http.StatusConflict, errorBody{Message: "User already exists"})
		return
	}
	if err != nil {
		s.internalError(w, r, "register", err)
		return
	}
	s.respondWithToken(w, r, http.StatusCreated, acc, "Registration successful")
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.meCalls.Add(1)

	if s.meDelay > 0 {
		timer := time.NewTimer(s.meDelay)
		select {
		case <-timer.C:
		case <-r.Context().Done():
			timer.Stop()
			return
		}
	}

	claims, _ := ClaimsFromContext(r.Context())
	acc, err := s.accounts.get(r.Context(), claims.Email)
	if errors.Is(err, errAccountNotFound) {
		writeJSON(w, http.StatusUnauthorized, errorBody{Message: "User not found"})
		return
	}
	if err != nil {
		s.internalError(w, r, "me", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": acc.User()})
}

func (s *Server) handleNotifications(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"notifications": []any{}})
}

func (s *Server) respondWithToken(w http.ResponseWriter, r *http.Request, status int, acc *Account, message string) {
	token, err := s.signer.Issue(acc.ID, acc.Email, acc.Role)
	if err != nil {
		s.internalError(w, r, "issue token", err)
		return
	}
	writeJSON(w, status, authBody{Token: token, User: acc.User(), Message: message})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.ErrorContext(r.Context(), op+" failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, errorBody{Message: "Server error"})
}

func bodyError(path, msg string) fieldError {
	return fieldError{Msg: msg, Path: path, Location: "body"}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "Malformed request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
