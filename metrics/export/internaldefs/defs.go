package internaldefs

import (
	goVolunteer "github.com/MrEthical07/goVolunteer"
)

// CounterDef names one counter for every exporter.
type CounterDef struct {
	ID   goVolunteer.MetricID
	Name string
	Help string
}

// HistogramDef names one histogram for every exporter.
type HistogramDef struct {
	ID   goVolunteer.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter of audit events lost to backpressure.
const AuditDroppedName = "volunteerhub_audit_dropped_total"

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goVolunteer.MetricLoginSuccess, Name: "volunteerhub_login_success_total", Help: "Successful logins."},
	{ID: goVolunteer.MetricLoginFailure, Name: "volunteerhub_login_failure_total", Help: "Failed logins."},
	{ID: goVolunteer.MetricRegisterSuccess, Name: "volunteerhub_register_success_total", Help: "Successful registrations."},
	{ID: goVolunteer.MetricRegisterFailure, Name: "volunteerhub_register_failure_total", Help: "Failed registrations."},
	{ID: goVolunteer.MetricHydrateSuccess, Name: "volunteerhub_hydrate_success_total", Help: "Hydrations that restored a user."},
	{ID: goVolunteer.MetricHydrateFailure, Name: "volunteerhub_hydrate_failure_total", Help: "Hydrations that forced a logout."},
	{ID: goVolunteer.MetricHydrateShared, Name: "volunteerhub_hydrate_shared_total", Help: "Callers that joined an in-flight hydration."},
	{ID: goVolunteer.MetricHydrateExpired, Name: "volunteerhub_hydrate_expired_total", Help: "Stored credentials rejected locally as expired."},
	{ID: goVolunteer.MetricLogout, Name: "volunteerhub_logout_total", Help: "Explicit logouts."},
	{ID: goVolunteer.MetricUnauthorizedLogout, Name: "volunteerhub_unauthorized_logout_total", Help: "Logouts forced by a 401 from the backend."},
	{ID: goVolunteer.MetricNavigationAllowed, Name: "volunteerhub_navigation_allowed_total", Help: "Allowed route transitions."},
	{ID: goVolunteer.MetricNavigationDenied, Name: "volunteerhub_navigation_denied_total", Help: "Denied route transitions."},
	{ID: goVolunteer.MetricDeniedAuthRequired, Name: "volunteerhub_navigation_denied_auth_required_total", Help: "Transitions denied for lack of a credential."},
	{ID: goVolunteer.MetricDeniedOrganizationOnly, Name: "volunteerhub_navigation_denied_organization_only_total", Help: "Transitions denied to non-organization sessions."},
	{ID: goVolunteer.MetricDeniedVolunteerOnly, Name: "volunteerhub_navigation_denied_volunteer_only_total", Help: "Transitions denied to non-volunteer sessions."},
	{ID: goVolunteer.MetricDeniedAdminOnly, Name: "volunteerhub_navigation_denied_admin_only_total", Help: "Transitions denied to non-admin sessions."},
	{ID: goVolunteer.MetricNavigationNotFound, Name: "volunteerhub_navigation_not_found_total", Help: "Transitions to undeclared paths."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goVolunteer.MetricHydrateLatency, Name: "volunteerhub_hydrate_latency_seconds", Help: "Current-user fetch latency during hydration."},
}

// HistogramBounds are the upper bounds of the eight latency buckets, in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix names each bucket for exporters that cannot carry
// an "le" label.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// Session gauges, exported when the source can report a session snapshot.
const (
	SessionAuthenticatedName = "volunteerhub_session_authenticated"
	SessionAuthenticatedHelp = "1 when the client holds a credential."
	SessionHydratedName      = "volunteerhub_session_hydrated"
	SessionHydratedHelp      = "1 when the current user has been loaded."
)

// NormalizeBuckets copies raw into a fixed eight-bucket array, padding
// missing buckets with zero.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
