// Package internal holds the pieces that are private to goVolunteer.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - cli: the volunteerhub command tree, config loading and app wiring
//   - fakeapi: a local stand-in for the platform's authentication endpoints
//   - rate: Redis-backed login throttling used by fakeapi
//
// # What this package must NOT do
//
//   - Export types that appear in the public goVolunteer API.
//   - Be imported by any package outside the goVolunteer module.
package internal
