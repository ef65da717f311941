package guard

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	goVolunteer "github.com/MrEthical07/goVolunteer"
	"github.com/MrEthical07/goVolunteer/persist"
	"github.com/MrEthical07/goVolunteer/routes"
	"github.com/MrEthical07/goVolunteer/toast"
)

type backend struct {
	mu      sync.Mutex
	users   map[string]goVolunteer.User // by token
	meCalls atomic.Int64
	meErr   error
}

func newBackend() *backend {
	return &backend{users: map[string]goVolunteer.User{
		"tok-org":   {ID: "o1", Email: "org@example.org", Role: goVolunteer.RoleOrganization},
		"tok-vol":   {ID: "v1", Email: "vol@example.org", Role: goVolunteer.RoleVolunteer},
		"tok-admin": {ID: "a1", Email: "admin@example.org", Role: goVolunteer.RoleAdmin},
		"tok123":    {ID: "v2", Email: "stored@example.org", Role: goVolunteer.RoleVolunteer},
	}}
}

func (b *backend) Login(_ context.Context, c goVolunteer.Credentials) (goVolunteer.AuthPayload, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for token, u := range b.users {
		if u.Email == c.Identifier && c.Secret == "pw" {
			u := u
			return goVolunteer.AuthPayload{Token: token, User: &u}, nil
		}
	}
	return goVolunteer.AuthPayload{}, goVolunteer.ErrInvalidCredentials
}

func (b *backend) Register(context.Context, goVolunteer.Profile) (goVolunteer.AuthPayload, error) {
	return goVolunteer.AuthPayload{}, goVolunteer.ErrServerError
}

func (b *backend) CurrentUser(_ context.Context, token string) (*goVolunteer.User, error) {
	b.meCalls.Add(1)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.meErr != nil {
		return nil, b.meErr
	}
	u, ok := b.users[token]
	if !ok {
		return nil, goVolunteer.ErrInvalidCredentials
	}
	return &u, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	severity []toast.Severity
}

func (n *recordingNotifier) Notify(message string, severity toast.Severity) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	n.severity = append(n.severity, severity)
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

type fixture struct {
	store    *goVolunteer.Store
	persist  *persist.Memory
	backend  *backend
	notifier *recordingNotifier
	guard    *Guard
}

func newFixture(t testing.TB) *fixture {
	t.Helper()
	f := &fixture{
		persist:  persist.NewMemory(),
		backend:  newBackend(),
		notifier: &recordingNotifier{},
	}
	store, err := goVolunteer.New().
		WithAuthService(f.backend).
		WithPersistence(f.persist).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(store.Close)
	f.store = store
	f.guard = New(store, routes.Default(), f.notifier)
	return f
}

func (f *fixture) login(t testing.TB, email string) {
	t.Helper()
	if res := f.store.Login(context.Background(), email, "pw"); !res.Success {
		t.Fatalf("login %s: %+v", email, res)
	}
}

func snapshots() map[string]goVolunteer.Snapshot {
	return map[string]goVolunteer.Snapshot{
		"anonymous":          {},
		"token without user": {Authenticated: true},
		"volunteer":          {Authenticated: true, Hydrated: true, UserID: "v", Role: goVolunteer.RoleVolunteer},
		"organization":       {Authenticated: true, Hydrated: true, UserID: "o", Role: goVolunteer.RoleOrganization},
		"admin":              {Authenticated: true, Hydrated: true, UserID: "a", Role: goVolunteer.RoleAdmin},
		"unknown role":       {Authenticated: true, Hydrated: true, UserID: "x", Role: goVolunteer.Role("moderator")},
	}
}

func TestCheckOpenRoutesAlwaysAllowed(t *testing.T) {
	for _, r := range routes.Default().Routes() {
		if !r.Requires.Open() {
			continue
		}
		for name, snap := range snapshots() {
			if reason := Check(Transition{Route: r, Session: snap}); reason != ReasonNone {
				t.Fatalf("%s as %s: expected allow, got %s", r.Name, name, reason)
			}
		}
	}
}

func TestCheckAnonymousDeniedOnAuthRoutes(t *testing.T) {
	for _, r := range routes.Default().Routes() {
		if !r.Requires.Has(routes.RequiresAuth) {
			continue
		}
		if reason := Check(Transition{Route: r}); reason != ReasonAuthRequired {
			t.Fatalf("%s: expected auth_required, got %s", r.Name, reason)
		}
	}
}

func TestCheckRolesAreNotHierarchical(t *testing.T) {
	admin := snapshots()["admin"]
	for _, req := range []routes.Requirement{routes.RequiresOrganization, routes.RequiresVolunteer} {
		r := routes.Route{Name: "X", Path: "/x", Requires: routes.RequiresAuth | req}
		if reason := Check(Transition{Route: r, Session: admin}); reason == ReasonNone {
			t.Fatalf("admin must not satisfy %s", req)
		}
	}
}

func TestCheckMatrix(t *testing.T) {
	tab := routes.Default()
	want := map[string]map[string]Reason{
		routes.Dashboard: {
			"anonymous":          ReasonAuthRequired,
			"token without user": ReasonOrganizationOnly,
			"volunteer":          ReasonOrganizationOnly,
			"organization":       ReasonNone,
			"admin":              ReasonOrganizationOnly,
			"unknown role":       ReasonOrganizationOnly,
		},
		routes.Bookings: {
			"anonymous":          ReasonAuthRequired,
			"token without user": ReasonVolunteerOnly,
			"volunteer":          ReasonNone,
			"organization":       ReasonVolunteerOnly,
			"admin":              ReasonVolunteerOnly,
			"unknown role":       ReasonVolunteerOnly,
		},
		routes.Admin: {
			"anonymous":          ReasonAuthRequired,
			"token without user": ReasonAdminOnly,
			"volunteer":          ReasonAdminOnly,
			"organization":       ReasonAdminOnly,
			"admin":              ReasonNone,
			"unknown role":       ReasonAdminOnly,
		},
		routes.Notifications: {
			"anonymous":          ReasonAuthRequired,
			"token without user": ReasonNone,
			"volunteer":          ReasonNone,
			"organization":       ReasonNone,
			"admin":              ReasonNone,
			"unknown role":       ReasonNone,
		},
	}

	snaps := snapshots()
	for routeName, bySession := range want {
		r, _ := tab.Lookup(routeName)
		for sessionName, reason := range bySession {
			if got := Check(Transition{Route: r, Session: snaps[sessionName]}); got != reason {
				t.Fatalf("%s as %s: expected %s, got %s", routeName, sessionName, reason, got)
			}
		}
	}
}

func TestRoleCheckWithoutAuthFlag(t *testing.T) {
	r := routes.Route{Name: "OrgOnly", Path: "/org", Requires: routes.RequiresOrganization}
	if got := Check(Transition{Route: r}); got != ReasonOrganizationOnly {
		t.Fatalf("anonymous session must fail the role check, got %s", got)
	}
}

// Stored credential, no hydrated user, auth-only route.
func TestScenarioHydratesBeforeEvaluating(t *testing.T) {
	f := newFixture(t)
	_ = f.persist.Set(context.Background(), "token", "tok123")

	d := f.guard.Navigate(context.Background(), "/notifications")
	if !d.Allowed || !d.Hydrated || !d.HydrateResult.Success {
		t.Fatalf("expected hydrated allow, got %+v", d)
	}
	want := []Phase{PhasePending, PhaseHydrating, PhaseEvaluating, PhaseAllowed}
	if !reflect.DeepEqual(d.Phases, want) {
		t.Fatalf("expected phases %v, got %v", want, d.Phases)
	}
	if f.store.User().Email != "stored@example.org" {
		t.Fatal("hydration must load the stored user")
	}

	// Second navigation: nothing left to hydrate.
	d = f.guard.Navigate(context.Background(), "/notifications")
	if d.Hydrated || f.backend.meCalls.Load() != 1 {
		t.Fatalf("expected no second hydration, got %+v (calls=%d)", d, f.backend.meCalls.Load())
	}
}

func TestScenarioHydrationFailureDenies(t *testing.T) {
	f := newFixture(t)
	_ = f.persist.Set(context.Background(), "token", "tok-revoked")

	d := f.guard.Navigate(context.Background(), "/notifications")
	if d.Allowed || d.Reason != ReasonAuthRequired {
		t.Fatalf("expected auth_required denial, got %+v", d)
	}
	if d.Redirect.Name != routes.Home || d.Target().Path != "/" {
		t.Fatalf("expected redirect to Home, got %+v", d.Redirect)
	}
	if !d.Hydrated || d.HydrateResult.Success {
		t.Fatal("expected a failed hydration")
	}
	want := []Phase{PhasePending, PhaseHydrating, PhaseEvaluating, PhaseDenied}
	if !reflect.DeepEqual(d.Phases, want) {
		t.Fatalf("expected phases %v, got %v", want, d.Phases)
	}
	if msgs := f.notifier.all(); len(msgs) != 1 || msgs[0] != "Please log in to access this page" {
		t.Fatalf("unexpected notifications %v", msgs)
	}
	if _, ok, _ := f.persist.Get(context.Background(), "token"); ok {
		t.Fatal("failed hydration must clear the stored credential")
	}
}

func TestScenarioNetworkFailureDuringHydrationFailsClosed(t *testing.T) {
	f := newFixture(t)
	_ = f.persist.Set(context.Background(), "token", "tok-vol")
	f.backend.meErr = goVolunteer.ErrNetworkFailure

	d := f.guard.Navigate(context.Background(), "/bookings")
	if d.Allowed || d.Reason != ReasonAuthRequired {
		t.Fatalf("network failure must fail closed, got %+v", d)
	}
	if !errors.Is(d.HydrateResult.Err, goVolunteer.ErrNetworkFailure) {
		t.Fatalf("expected network failure in hydrate result, got %v", d.HydrateResult.Err)
	}
}

func TestScenarioVolunteerOnOrganizationRoute(t *testing.T) {
	f := newFixture(t)
	f.login(t, "vol@example.org")

	d := f.guard.Navigate(context.Background(), "/dashboard")
	if d.Allowed || d.Reason != ReasonOrganizationOnly {
		t.Fatalf("expected organization_only, got %+v", d)
	}
	if d.Message != "This page is only available for organizations" {
		t.Fatalf("unexpected message %q", d.Message)
	}
	if d.Redirect.Name != routes.Home {
		t.Fatalf("expected Home redirect, got %s", d.Redirect.Name)
	}
	f.notifier.mu.Lock()
	sev := f.notifier.severity
	f.notifier.mu.Unlock()
	if len(sev) != 1 || sev[0] != toast.Error {
		t.Fatalf("expected one error notification, got %v", sev)
	}
	want := []Phase{PhasePending, PhaseEvaluating, PhaseDenied}
	if !reflect.DeepEqual(d.Phases, want) {
		t.Fatalf("expected phases %v, got %v", want, d.Phases)
	}
}

func TestScenarioLogoutThenProtectedRoute(t *testing.T) {
	f := newFixture(t)
	f.login(t, "org@example.org")
	if d := f.guard.Navigate(context.Background(), "/dashboard"); !d.Allowed {
		t.Fatalf("organization must reach the dashboard, got %+v", d)
	}

	f.store.Logout()
	calls := f.backend.meCalls.Load()

	d := f.guard.Navigate(context.Background(), "/dashboard")
	if d.Allowed || d.Reason != ReasonAuthRequired || d.Hydrated {
		t.Fatalf("expected immediate auth_required denial, got %+v", d)
	}
	if f.backend.meCalls.Load() != calls {
		t.Fatal("denial after logout must not touch the network")
	}
}

func TestAdminRoutes(t *testing.T) {
	f := newFixture(t)
	f.login(t, "admin@example.org")

	if d := f.guard.Navigate(context.Background(), "/admin"); !d.Allowed {
		t.Fatalf("admin must reach /admin, got %+v", d)
	}
	for path, reason := range map[string]Reason{
		"/dashboard":           ReasonOrganizationOnly,
		"/announcement/create": ReasonOrganizationOnly,
		"/bookings":            ReasonVolunteerOnly,
	} {
		if d := f.guard.Navigate(context.Background(), path); d.Allowed || d.Reason != reason {
			t.Fatalf("%s: expected %s, got %+v", path, reason, d)
		}
	}

	f.login(t, "vol@example.org")
	if d := f.guard.Navigate(context.Background(), "/admin"); d.Reason != ReasonAdminOnly ||
		d.Message != "This page is only available for administrators" {
		t.Fatalf("expected admin_only, got %+v", d)
	}
}

func TestNotFoundIsSilent(t *testing.T) {
	f := newFixture(t)

	d := f.guard.Navigate(context.Background(), "/does/not/exist")
	if d.Allowed || d.Reason != ReasonNotFound || d.Redirect.Name != routes.Home {
		t.Fatalf("expected silent not_found redirect, got %+v", d)
	}
	if len(f.notifier.all()) != 0 {
		t.Fatal("not_found must not notify")
	}
	if got := f.store.MetricsSnapshot().Counters[goVolunteer.MetricNavigationNotFound]; got != 1 {
		t.Fatalf("expected not_found metric, got %d", got)
	}
}

func TestNavigateToAndParams(t *testing.T) {
	f := newFixture(t)

	d := f.guard.NavigateTo(context.Background(), routes.AnnouncementDetail, map[string]string{"id": "42"})
	if !d.Allowed || d.Route.Name != routes.AnnouncementDetail || d.Params["id"] != "42" {
		t.Fatalf("unexpected decision %+v", d)
	}
	if d := f.guard.NavigateTo(context.Background(), "Nope", nil); d.Reason != ReasonNotFound {
		t.Fatalf("unknown name must be not_found, got %+v", d)
	}
	if d := f.guard.Evaluate(context.Background(), routes.Route{Name: "Adhoc", Path: "/adhoc"}); !d.Allowed {
		t.Fatalf("open ad hoc route must be allowed, got %+v", d)
	}
}

func TestDecisionsRecordedInStoreMetricsAndAudit(t *testing.T) {
	sink := goVolunteer.NewChannelSink(16)
	store, err := goVolunteer.New().
		WithAuthService(newBackend()).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer store.Close()

	g := New(store, nil, nil)
	_ = g.Navigate(context.Background(), "/map")
	_ = g.Navigate(context.Background(), "/bookings")

	counters := store.MetricsSnapshot().Counters
	if counters[goVolunteer.MetricNavigationAllowed] != 1 ||
		counters[goVolunteer.MetricNavigationDenied] != 1 ||
		counters[goVolunteer.MetricDeniedAuthRequired] != 1 {
		t.Fatalf("unexpected counters %+v", counters)
	}

	first := <-sink.Events()
	second := <-sink.Events()
	if first.EventType != auditEventAllowed || first.Route != routes.Map {
		t.Fatalf("unexpected first event %+v", first)
	}
	if second.EventType != auditEventDenied || second.Metadata["reason"] != "auth_required" || second.Metadata["redirect"] != routes.Home {
		t.Fatalf("unexpected second event %+v", second)
	}
}

func TestWithMetricsOverridesSession(t *testing.T) {
	f := newFixture(t)
	m := goVolunteer.NewMetrics(goVolunteer.MetricsConfig{Enabled: true})
	g := New(f.store, nil, f.notifier, WithMetrics(m))

	_ = g.Navigate(context.Background(), "/admin")
	if m.Value(goVolunteer.MetricDeniedAuthRequired) != 1 {
		t.Fatal("expected the override metrics to record the denial")
	}
	if f.store.MetricsSnapshot().Counters[goVolunteer.MetricNavigationDenied] != 0 {
		t.Fatal("store metrics must stay untouched")
	}
}

func TestConcurrentNavigationsShareHydration(t *testing.T) {
	f := newFixture(t)
	_ = f.persist.Set(context.Background(), "token", "tok-org")

	var wg sync.WaitGroup
	decisions := make([]Decision, 8)
	for i := range decisions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			decisions[i] = f.guard.Navigate(context.Background(), "/dashboard")
		}(i)
	}
	wg.Wait()

	for i, d := range decisions {
		if !d.Allowed {
			t.Fatalf("navigation %d denied: %+v", i, d)
		}
	}
	if !f.store.IsOrganization() {
		t.Fatal("expected hydrated organization")
	}
}

func TestPhaseAndReasonStrings(t *testing.T) {
	if PhaseHydrating.String() != "hydrating" || Phase(99).String() != "unknown" {
		t.Fatal("unexpected phase strings")
	}
	if ReasonVolunteerOnly.String() != "volunteer_only" || Reason(99).String() != "unknown" || Reason(99).Message() != "" {
		t.Fatal("unexpected reason strings")
	}
}
