// Package toast is the client's notification sink: short severity-tagged
// messages that expire after a per-severity duration.
//
// Expiry is evaluated lazily when toasts are listed; the package starts no
// timers or goroutines.
package toast
