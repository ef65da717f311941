// Package guard gates every route transition against the session store.
//
// Each navigation runs a linear pass: Pending, then Hydrating when a
// persisted credential has not been turned into a user yet, then
// Evaluating, ending in Allowed or Denied. Requirements are checked in a
// fixed order (authentication, organization, volunteer, admin) and the
// first unmet one decides the denial. Denials never surface as errors:
// they become a redirect to the landing route plus a notification.
//
// # What this package must NOT do
//
//   - Mutate the session other than through Session.Hydrate.
//   - Retry a failed hydration within one navigation.
//   - Treat the admin role as satisfying organization or volunteer routes.
package guard
