package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLinearBackoff(t *testing.T) {
	b := LinearBackoff(time.Second, 3)
	var delays []time.Duration
	for {
		d, stop := b.Next()
		if stop {
			break
		}
		delays = append(delays, d)
	}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, delays)
}

func TestLinearBackoffZeroRetries(t *testing.T) {
	_, stop := LinearBackoff(time.Second, 0).Next()
	assert.True(t, stop)
}
