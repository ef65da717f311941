// Package prometheus renders goVolunteer metrics in Prometheus text
// exposition format.
//
// [New] accepts a *goVolunteer.Store and exposes an [http.Handler]. Counter
// names are prefixed volunteerhub_*_total; the single histogram is
// volunteerhub_hydrate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate session state.
package prometheus
