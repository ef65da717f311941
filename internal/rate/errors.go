package rate

import "errors"

var (
	// ErrRateLimited is returned when an identifier or IP exhausted its budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps counter read and write failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
