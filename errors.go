package goVolunteer

import "errors"

var (
	// ErrInvalidCredentials is returned when the authentication service
	// rejects the credential (wrong password, expired or revoked token).
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNetworkFailure is returned when the authentication service cannot be reached.
	ErrNetworkFailure = errors.New("network failure")
	// ErrServerError is returned for 5xx and other unexpected server responses.
	ErrServerError = errors.New("server error")
	// ErrInvalidResponse is returned when a 2xx response lacks the token or
	// user record, or cannot be decoded.
	ErrInvalidResponse = errors.New("invalid response from server")
	// ErrNoCredential is returned by Hydrate when nothing is persisted.
	ErrNoCredential = errors.New("no stored credential")
	// ErrCredentialExpired is returned by Hydrate when the stored credential
	// carries an expiry that has already passed.
	ErrCredentialExpired = errors.New("stored credential expired")
	// ErrPersistence is returned when the persistence facility fails.
	ErrPersistence = errors.New("persistence failure")
	// ErrInvalidRole is returned by ParseRole for values outside the role set.
	ErrInvalidRole = errors.New("invalid role")
	// ErrStoreNotReady is returned when a Store method is called on a nil or
	// unbuilt Store.
	ErrStoreNotReady = errors.New("session store not initialized")
)
