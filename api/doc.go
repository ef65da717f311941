// Package api is the HTTP client for the platform's authentication
// endpoints. It implements goVolunteer.AuthService.
//
// The client is a thin transport: it attaches the bearer credential, the
// language query parameter and a request ID, and classifies failures into
// the root sentinels (ErrInvalidCredentials, ErrNetworkFailure,
// ErrServerError, ErrInvalidResponse) through [*Error].
//
// # What this package must NOT do
//
//   - Write the persisted credential. A 401 from a non-auth endpoint is
//     reported to the bound [Session] through HandleUnauthorized; the
//     session store decides what to clear.
//   - Retry or back off.
//   - Log credentials or request bodies.
package api
