// Package fakeapi is an in-memory stand-in for the platform backend's
// authentication endpoints. It signs HS256 tokens, hashes passwords with
// argon2id and keeps accounts in any [persist.Store], which lets the
// development server and the integration tests run against Redis
// (miniredis) or plain memory.
//
// Only the surface the client core talks to is served:
//
//	POST /api/auth/login
//	POST /api/auth/register
//	GET  /api/auth/me
//	GET  /api/notifications   (bearer protected, exercises the 401 hook)
//
// Error bodies use the backend's shape: {"message": ..., "errors": [{"msg", "path", "location"}]}.
package fakeapi
