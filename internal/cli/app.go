package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	goVolunteer "github.com/MrEthical07/goVolunteer"
	"github.com/MrEthical07/goVolunteer/api"
	"github.com/MrEthical07/goVolunteer/guard"
	"github.com/MrEthical07/goVolunteer/persist"
	"github.com/MrEthical07/goVolunteer/routes"
	"github.com/MrEthical07/goVolunteer/toast"
	"github.com/redis/go-redis/v9"
)

// App wires one client session: persistence, API client, session store,
// route table, guard and toast center.
type App struct {
	Config goVolunteer.Config
	Logger *slog.Logger
	Store  *goVolunteer.Store
	API    *api.Client
	Routes *routes.Table
	Guard  *guard.Guard
	Toasts *toast.Center

	closers []func() error
}

// OpenApp builds an App from cfg. Toasts are echoed to notices as they are
// shown.
func OpenApp(cfg goVolunteer.Config, logger *slog.Logger, notices io.Writer) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	app := &App{Config: cfg, Logger: logger}

	store, err := app.openPersistence()
	if err != nil {
		return nil, err
	}

	apiCfg := api.ConfigFrom(cfg.API)
	apiCfg.Logger = logger
	client, err := api.New(apiCfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	builder := goVolunteer.New().
		WithConfig(cfg).
		WithAuthService(client).
		WithPersistence(store).
		WithLogger(logger)
	if cfg.Audit.Enabled {
		builder = builder.WithAuditSink(goVolunteer.NewJSONWriterSink(notices))
	}
	session, err := builder.Build()
	if err != nil {
		app.Close()
		return nil, err
	}
	client.Bind(session)
	app.closers = append(app.closers, func() error { session.Close(); return nil })

	table, err := routes.NewTable(cfg.Guard.LandingRoute, routes.Declared()...)
	if err != nil {
		app.Close()
		return nil, err
	}

	toastCfg := toast.ConfigFrom(cfg.Toast)
	toastCfg.OnShow = func(t toast.Toast) {
		fmt.Fprintf(notices, "[%s] %s\n", t.Severity, t.Message)
	}
	app.Toasts = toast.NewCenter(toastCfg)

	app.Store = session
	app.API = client
	app.Routes = table
	app.Guard = guard.New(session, table, app.Toasts, guard.WithLogger(logger))
	return app, nil
}

func (a *App) openPersistence() (persist.Store, error) {
	p := a.Config.Persistence
	switch p.Backend {
	case goVolunteer.BackendMemory:
		return persist.NewMemory(), nil
	case goVolunteer.BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: p.RedisAddr})
		a.closers = append(a.closers, rdb.Close)
		return persist.NewRedis(rdb, p.RedisPrefix), nil
	default:
		path := p.Path
		if path == "" {
			var err error
			if path, err = persist.DefaultPath(); err != nil {
				return nil, fmt.Errorf("locate session file: %w", err)
			}
		}
		return persist.NewFile(path)
	}
}

// Bootstrap hydrates the persisted session, announcing a failed restore.
func (a *App) Bootstrap(ctx context.Context) {
	if !a.Store.NeedsHydration(ctx) {
		return
	}
	if res := a.Store.Bootstrap(ctx); !res.Success {
		a.Toasts.Warning(res.Message)
	}
}

// Close releases the session and backend connections in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Debug("close failed", "error", err)
		}
	}
	a.closers = nil
}

func userJSON(u *goVolunteer.User) string {
	raw, err := json.MarshalIndent(u, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(raw)
}
