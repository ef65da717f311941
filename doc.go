// Package goVolunteer is the client-side session core of the volunteer
// platform: it knows who the current actor is, restores that knowledge from
// a persisted credential, and lets the navigation guard decide whether a
// page transition may proceed.
//
// The package is designed for concurrent use: [Store] methods are safe to
// call from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goVolunteer is the public surface. It exposes [Store], [Builder], [Config]
// and value types (Role, User, Result, Snapshot, MetricsSnapshot). The HTTP
// client lives in package api, the credential backends in package persist,
// and the route table, toast center and guard in their own packages. Audit
// dispatch lives under internal/.
//
// # What this package must NOT do
//
//   - Import api, guard or any sub-package that re-imports goVolunteer.
//   - Let anything other than [Store] write the token or user keys of the
//     persistence backend.
//   - Return errors from Store operations; outcomes travel in [Result].
//   - Perform I/O in [Builder]. The first network call is [Store.Bootstrap].
//
// # Hydration contract
//
// Concurrent [Store.Hydrate] calls for the same credential share a single
// current-user request. A failed hydration always ends in the anonymous
// state, unless a login or logout changed the session while the request was
// in flight.
package goVolunteer
