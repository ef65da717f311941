package guard

import (
	"context"
	"log/slog"

	goVolunteer "github.com/MrEthical07/goVolunteer"
	"github.com/MrEthical07/goVolunteer/routes"
	"github.com/MrEthical07/goVolunteer/toast"
)

const (
	auditEventAllowed = "navigation_allowed"
	auditEventDenied  = "navigation_denied"
)

// Session is the view of the session store the guard needs.
// *goVolunteer.Store satisfies it.
type Session interface {
	NeedsHydration(ctx context.Context) bool
	Hydrate(ctx context.Context) goVolunteer.Result
	Snapshot() goVolunteer.Snapshot
}

// Notifier receives denial messages. *toast.Center satisfies it.
type Notifier interface {
	Notify(message string, severity toast.Severity)
}

// Auditor receives navigation audit events. *goVolunteer.Store satisfies it.
type Auditor interface {
	EmitAudit(ctx context.Context, event goVolunteer.AuditEvent)
}

// Transition is the input of one permission check: the target route and
// the session as it was when evaluation started.
type Transition struct {
	Route   routes.Route
	Session goVolunteer.Snapshot
}

// Decision is the outcome of one navigation pass.
type Decision struct {
	Allowed bool
	Route   routes.Route // zero when the path matched nothing
	Path    string
	Params  map[string]string

	// Redirect is the landing route on denial; zero when allowed.
	Redirect routes.Route
	Reason   Reason
	Message  string

	// Hydrated reports whether this pass ran a hydration.
	Hydrated bool
	// HydrateResult is the hydration outcome when Hydrated is true.
	HydrateResult goVolunteer.Result
	Phases        []Phase
}

// Final returns the last phase reached.
func (d Decision) Final() Phase {
	if len(d.Phases) == 0 {
		return PhasePending
	}
	return d.Phases[len(d.Phases)-1]
}

// Target is the route the client ends up on.
func (d Decision) Target() routes.Route {
	if d.Allowed {
		return d.Route
	}
	return d.Redirect
}

type rule struct {
	requires  routes.Requirement
	reason    Reason
	satisfied func(goVolunteer.Snapshot) bool
}

// rules run in order; the first unmet one decides the denial. Role rules
// do not re-check authentication: an anonymous session holds no role and
// fails them anyway.
var rules = [...]rule{
	{routes.RequiresAuth, ReasonAuthRequired, func(s goVolunteer.Snapshot) bool { return s.Authenticated }},
	{routes.RequiresOrganization, ReasonOrganizationOnly, goVolunteer.Snapshot.IsOrganization},
	{routes.RequiresVolunteer, ReasonVolunteerOnly, goVolunteer.Snapshot.IsVolunteer},
	{routes.RequiresAdmin, ReasonAdminOnly, goVolunteer.Snapshot.IsAdmin},
}

// Check is the pure permission evaluation of t. It returns ReasonNone when
// the transition may proceed.
func Check(t Transition) Reason {
	for _, r := range rules {
		if t.Route.Requires.Has(r.requires) && !r.satisfied(t.Session) {
			return r.reason
		}
	}
	return ReasonNone
}

// Guard evaluates navigations. It holds no per-navigation state and is safe
// for concurrent use.
type Guard struct {
	session  Session
	table    *routes.Table
	notifier Notifier
	metrics  *goVolunteer.Metrics
	auditor  Auditor
	logger   *slog.Logger
}

// Option configures a [Guard].
type Option func(*Guard)

// WithMetrics records decisions in m instead of the session's metrics.
func WithMetrics(m *goVolunteer.Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

// WithAuditor sends navigation events to a instead of the session.
func WithAuditor(a Auditor) Option {
	return func(g *Guard) { g.auditor = a }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.logger = l
		}
	}
}

// New builds a Guard. When session also exposes Metrics() or EmitAudit,
// as *goVolunteer.Store does, decisions are recorded there by default. A
// nil table means [routes.Default]; a nil notifier discards messages.
func New(session Session, table *routes.Table, notifier Notifier, opts ...Option) *Guard {
	if table == nil {
		table = routes.Default()
	}
	g := &Guard{
		session:  session,
		table:    table,
		notifier: notifier,
		logger:   slog.New(slog.DiscardHandler),
	}
	if m, ok := session.(interface{ Metrics() *goVolunteer.Metrics }); ok {
		g.metrics = m.Metrics()
	}
	if a, ok := session.(Auditor); ok {
		g.auditor = a
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "guard")
	return g
}

// Table returns the route table the guard consults.
func (g *Guard) Table() *routes.Table {
	return g.table
}

// Navigate resolves path and evaluates the transition. Paths that match no
// route are denied with [ReasonNotFound] and redirected silently.
func (g *Guard) Navigate(ctx context.Context, path string) Decision {
	m, ok := g.table.Match(path)
	if !ok {
		return g.evaluate(ctx, routes.Route{}, path, nil, false)
	}
	return g.evaluate(ctx, m.Route, m.Path, m.Params, true)
}

// NavigateTo evaluates the transition to the named route. An unknown name,
// or missing parameters, behave like an unmatched path.
func (g *Guard) NavigateTo(ctx context.Context, name string, params map[string]string) Decision {
	path, err := g.table.Path(name, params)
	if err != nil {
		g.logger.DebugContext(ctx, "cannot build route path", "route", name, "error", err)
		return g.evaluate(ctx, routes.Route{}, "", nil, false)
	}
	return g.Navigate(ctx, path)
}

// Evaluate runs the guard for a route the caller already resolved.
func (g *Guard) Evaluate(ctx context.Context, route routes.Route) Decision {
	return g.evaluate(ctx, route, route.Path, nil, true)
}

func (g *Guard) evaluate(ctx context.Context, route routes.Route, path string, params map[string]string, found bool) Decision {
	d := Decision{
		Route:  route,
		Path:   path,
		Params: params,
		Phases: make([]Phase, 1, 4),
	}
	d.Phases[0] = PhasePending

	if g.session != nil && g.session.NeedsHydration(ctx) {
		d.Phases = append(d.Phases, PhaseHydrating)
		d.Hydrated = true
		d.HydrateResult = g.session.Hydrate(ctx)
		if !d.HydrateResult.Success {
			g.logger.InfoContext(ctx, "hydration before navigation failed", "path", path, "error", d.HydrateResult.Err)
		}
	}

	d.Phases = append(d.Phases, PhaseEvaluating)

	var snap goVolunteer.Snapshot
	if g.session != nil {
		snap = g.session.Snapshot()
	}

	d.Reason = ReasonNotFound
	if found {
		d.Reason = Check(Transition{Route: route, Session: snap})
	}

	if d.Reason == ReasonNone {
		d.Allowed = true
		d.Phases = append(d.Phases, PhaseAllowed)
		g.record(ctx, d, snap)
		return d
	}

	d.Redirect = g.table.Landing()
	d.Message = d.Reason.Message()
	d.Phases = append(d.Phases, PhaseDenied)
	if d.Message != "" && g.notifier != nil {
		g.notifier.Notify(d.Message, toast.Error)
	}
	g.record(ctx, d, snap)
	return d
}

var deniedMetric = [...]goVolunteer.MetricID{
	ReasonAuthRequired:     goVolunteer.MetricDeniedAuthRequired,
	ReasonOrganizationOnly: goVolunteer.MetricDeniedOrganizationOnly,
	ReasonVolunteerOnly:    goVolunteer.MetricDeniedVolunteerOnly,
	ReasonAdminOnly:        goVolunteer.MetricDeniedAdminOnly,
	ReasonNotFound:         goVolunteer.MetricNavigationNotFound,
}

func (g *Guard) record(ctx context.Context, d Decision, snap goVolunteer.Snapshot) {
	if d.Allowed {
		g.metrics.Inc(goVolunteer.MetricNavigationAllowed)
		g.logger.DebugContext(ctx, "navigation allowed", "route", d.Route.Name, "path", d.Path)
	} else {
		if d.Reason != ReasonNotFound {
			g.metrics.Inc(goVolunteer.MetricNavigationDenied)
		}
		if int(d.Reason) < len(deniedMetric) {
			g.metrics.Inc(deniedMetric[d.Reason])
		}
		g.logger.InfoContext(ctx, "navigation denied",
			"route", d.Route.Name,
			"path", d.Path,
			"reason", d.Reason.String(),
			"redirect", d.Redirect.Name,
		)
	}

	if g.auditor == nil {
		return
	}
	event := goVolunteer.AuditEvent{
		EventType: auditEventAllowed,
		UserID:    snap.UserID,
		Role:      string(snap.Role),
		Route:     d.Route.Name,
		Success:   d.Allowed,
		Metadata:  map[string]string{"path": d.Path},
	}
	if !d.Allowed {
		event.EventType = auditEventDenied
		event.Metadata["reason"] = d.Reason.String()
		event.Metadata["redirect"] = d.Redirect.Name
	}
	g.auditor.EmitAudit(ctx, event)
}
