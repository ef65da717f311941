// Package rate throttles failed login attempts per email and per client IP
// with fixed-window Redis counters. The fake backend uses it to answer 429
// the way a production backend would.
package rate
