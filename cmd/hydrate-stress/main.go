// Command hydrate-stress checks the session bootstrap under load.
//
// It starts an in-process fake backend, signs in a set of clients whose
// credentials persist in Redis, then rebuilds every client from persistence
// and fires concurrent navigations at it. Each restored client must reach
// GET /auth/me exactly once no matter how many navigations race on the
// first hydration. A steady-state phase then measures guard latency.
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	mrand "math/rand"
	"net"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goVolunteer "github.com/MrEthical07/goVolunteer"
	"github.com/MrEthical07/goVolunteer/api"
	"github.com/MrEthical07/goVolunteer/guard"
	"github.com/MrEthical07/goVolunteer/internal/fakeapi"
	"github.com/MrEthical07/goVolunteer/persist"
	"github.com/MrEthical07/goVolunteer/routes"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type client struct {
	email    string
	password string
	store    *goVolunteer.Store
	guard    *guard.Guard
}

func main() {
	var (
		clients     = flag.Int("clients", 50, "number of signed-in clients")
		concurrency = flag.Int("concurrency", 32, "concurrent navigations per client while it restores")
		ops         = flag.Int("ops", 20000, "navigations in the steady-state phase")
		workers     = flag.Int("workers", 64, "concurrent workers in the steady-state phase")
		meDelay     = flag.Duration("me-delay", 20*time.Millisecond, "artificial /auth/me latency")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "hs", "persistence key prefix")
	)
	flag.Parse()

	if *clients <= 0 || *concurrency <= 0 || *ops <= 0 || *workers <= 0 {
		fmt.Fprintln(os.Stderr, "clients, concurrency, ops, and workers must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		rdb     redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = rdb.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = rdb.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	backend, baseURL, stopBackend, err := startBackend(*meDelay)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start backend: %v\n", err)
		os.Exit(1)
	}
	defer stopBackend()

	pool := make([]*client, *clients)
	fmt.Printf("signing in %d clients...\n", *clients)
	startSeed := time.Now()
	for i := range pool {
		role := goVolunteer.RoleVolunteer
		if i%2 == 1 {
			role = goVolunteer.RoleOrganization
		}
		c := &client{
			email:    fmt.Sprintf("client-%d@stress.local", i),
			password: fmt.Sprintf("stress-pass-%d", i),
		}
		if err := backend.Seed(ctx, fakeapi.SeedAccount{Email: c.email, Password: c.password, Name: c.email, Role: role}); err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
		if err := c.connect(baseURL, rdb, fmt.Sprintf("%s:%d", *prefix, i)); err != nil {
			fmt.Fprintf(os.Stderr, "client setup failed: %v\n", err)
			os.Exit(1)
		}
		if res := c.store.Login(ctx, c.email, c.password); !res.Success {
			fmt.Fprintf(os.Stderr, "login failed for %s: %s\n", c.email, res.Message)
			os.Exit(1)
		}
		pool[i] = c
	}
	fmt.Printf("signed in in %s\n", time.Since(startSeed).Round(time.Millisecond))

	table := routes.Default()
	paths := concretePaths(table)

	// Restart every client from what it persisted.
	for i, c := range pool {
		c.store.Close()
		if err := c.connect(baseURL, rdb, fmt.Sprintf("%s:%d", *prefix, i)); err != nil {
			fmt.Fprintf(os.Stderr, "client restart failed: %v\n", err)
			os.Exit(1)
		}
	}

	meBefore := backend.MeCalls()
	restoreStats := runRestorePhase(ctx, pool, paths, *concurrency)
	meCalls := backend.MeCalls() - meBefore

	steadyStats := runSteadyPhase(ctx, pool, paths, *ops, *workers)

	fmt.Println("---- results ----")
	printStats("restore", restoreStats)
	printStats("navigate", steadyStats)
	fmt.Printf("me calls: %d for %d restored clients\n", meCalls, len(pool))

	for _, c := range pool {
		c.store.Close()
	}
	if meCalls != int64(len(pool)) {
		fmt.Fprintln(os.Stderr, "FAIL: concurrent navigations did not share a single hydration per client")
		os.Exit(1)
	}
}

func startBackend(meDelay time.Duration) (*fakeapi.Server, string, func(), error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, "", nil, err
	}
	backend, err := fakeapi.New(fakeapi.Config{Secret: secret, MeDelay: meDelay})
	if err != nil {
		return nil, "", nil, err
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, "", nil, err
	}
	srv := &http.Server{Handler: backend.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "backend stopped: %v\n", err)
		}
	}()
	stop := func() { _ = srv.Close() }
	return backend, "http://" + ln.Addr().String() + fakeapi.Prefix, stop, nil
}

func (c *client) connect(baseURL string, rdb redis.UniversalClient, prefix string) error {
	apiClient, err := api.New(api.Config{BaseURL: baseURL, Timeout: 10 * time.Second, UserAgent: "hydrate-stress"})
	if err != nil {
		return err
	}
	store, err := goVolunteer.New().
		WithAuthService(apiClient).
		WithPersistence(persist.NewRedis(rdb, prefix)).
		Build()
	if err != nil {
		return err
	}
	apiClient.Bind(store)
	c.store = store
	c.guard = guard.New(store, nil, nil)
	return nil
}

func concretePaths(table *routes.Table) []string {
	params := map[string]string{"id": "42"}
	out := make([]string, 0, len(table.Routes())+1)
	for _, r := range table.Routes() {
		if p, err := table.Path(r.Name, params); err == nil {
			out = append(out, p)
		}
	}
	return append(out, "/no/such/page")
}

func runRestorePhase(ctx context.Context, pool []*client, paths []string, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		failures  int64
		latencies = make([]time.Duration, 0, len(pool)*concurrency)
		mu        sync.Mutex
	)

	start := time.Now()
	for ci, c := range pool {
		for w := 0; w < concurrency; w++ {
			wg.Add(1)
			go func(c *client, worker int) {
				defer wg.Done()
				path := paths[(worker+ci)%len(paths)]
				t0 := time.Now()
				d := c.guard.Navigate(ctx, path)
				elapsed := time.Since(t0)
				if d.Hydrated && !d.HydrateResult.Success {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, elapsed)
				mu.Unlock()
			}(c, w)
		}
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

func runSteadyPhase(ctx context.Context, pool []*client, paths []string, ops, workers int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := mrand.New(mrand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				c := pool[r.Intn(len(pool))]
				t0 := time.Now()
				d := c.guard.Navigate(ctx, paths[r.Intn(len(paths))])
				elapsed := time.Since(t0)
				if d.Hydrated {
					// A signed-in client must not hydrate again.
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, elapsed)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
