// Package routes declares the client's pages, the access requirements each
// one carries, and the path matcher that resolves a URL path to a route.
//
// A [Table] is built once and is read-only afterwards, so it can be shared
// between goroutines without locking.
package routes
