//go:build integration
// +build integration

package test

import (
	"context"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	goVolunteer "github.com/MrEthical07/goVolunteer"
	"github.com/MrEthical07/goVolunteer/api"
	"github.com/MrEthical07/goVolunteer/guard"
	"github.com/MrEthical07/goVolunteer/internal/fakeapi"
	"github.com/MrEthical07/goVolunteer/persist"
	"github.com/MrEthical07/goVolunteer/toast"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testSecret = "integration-test-secret"

// redisMode describes which Redis backend a suite is running against.
type redisMode struct {
	name  string
	setup func(t *testing.T) redis.UniversalClient
}

// redisModes returns the Redis backends to test. miniredis is always
// available; a real server is added when REDIS_ADDR is set and a cluster
// when REDIS_CLUSTER_ADDRS is set (comma-separated).
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{
		{
			name: "miniredis",
			setup: func(t *testing.T) redis.UniversalClient {
				t.Helper()
				mr := miniredis.RunT(t)
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				t.Cleanup(func() { _ = rdb.Close() })
				return rdb
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) redis.UniversalClient {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis at %s: %v", addr, err)
				}
				rdb.FlushDB(context.Background())
				t.Cleanup(func() { rdb.FlushDB(context.Background()); _ = rdb.Close() })
				return rdb
			},
		})
	}

	if addrs := os.Getenv("REDIS_CLUSTER_ADDRS"); addrs != "" {
		modes = append(modes, redisMode{
			name: "cluster",
			setup: func(t *testing.T) redis.UniversalClient {
				t.Helper()
				rdb := redis.NewClusterClient(&redis.ClusterOptions{Addrs: splitAddrs(addrs)})
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis cluster: %v", err)
				}
				t.Cleanup(func() { _ = rdb.Close() })
				return rdb
			},
		})
	}

	return modes
}

func splitAddrs(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// newBackend starts a fake platform backend seeded with the demo accounts.
func newBackend(t *testing.T, cfg fakeapi.Config) (*fakeapi.Server, string) {
	t.Helper()
	if cfg.Secret == nil {
		cfg.Secret = []byte(testSecret)
	}
	backend, err := fakeapi.New(cfg)
	if err != nil {
		t.Fatalf("fakeapi.New: %v", err)
	}
	if err := backend.Seed(context.Background(), fakeapi.DemoAccounts...); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)
	return backend, srv.URL + fakeapi.Prefix
}

// client is one running client: session store, API client, guard and toasts.
type client struct {
	store  *goVolunteer.Store
	api    *api.Client
	guard  *guard.Guard
	toasts *toast.Center
}

// newClient builds a client whose session persists in p. Two clients built
// on the same p model a restart of the same installation.
func newClient(t *testing.T, baseURL string, p persist.Store) *client {
	t.Helper()
	apiClient, err := api.New(api.Config{BaseURL: baseURL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	store, err := goVolunteer.New().
		WithAuthService(apiClient).
		WithPersistence(p).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(store.Close)
	apiClient.Bind(store)

	toasts := toast.NewCenter(toast.Config{})
	return &client{
		store:  store,
		api:    apiClient,
		guard:  guard.New(store, nil, toasts),
		toasts: toasts,
	}
}

func lastToast(c *client) string {
	active := c.toasts.Active()
	if len(active) == 0 {
		return ""
	}
	return active[len(active)-1].Message
}
