package service

import (
	"time"

	"github.com/sethvargo/go-retry"
)

// LinearBackoff yields base, 2*base, 3*base, ... and stops after maxRetries values.
func LinearBackoff(base time.Duration, maxRetries int) retry.Backoff {
	if base <= 0 {
		base = time.Second
	}
	var attempt int64
	next := retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		return time.Duration(attempt) * base, false
	})
	if maxRetries < 0 {
		maxRetries = 0
	}
	return retry.WithMaxRetries(uint64(maxRetries), next)
}
