// Package persist provides the key/value persistence facility the session
// store keeps its credential and last-known user record in.
//
// # Backends
//
//   - [Memory]: process-local map, lost on exit (tests, embedding).
//   - [File]: a JSON object on disk; survives restarts the way browser
//     local storage survives reloads.
//   - [Redis]: shared storage through go-redis, keys namespaced by prefix.
//
// # Architecture boundaries
//
// Backends only move strings. They know nothing about tokens, users or
// roles; the session store decides what is written and when.
package persist
