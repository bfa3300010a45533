package service

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestPopupServiceShowsOncePerDay(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	svc := NewPopupService(clock, "UTC")

	assert.Equal(t, "2024-05-01", svc.Today())
	assert.True(t, svc.ShouldShow(""))
	assert.True(t, svc.ShouldShow("2024-04-30"))
	assert.False(t, svc.ShouldShow("2024-05-01"))
	assert.Equal(t, 14*time.Hour, svc.EndOfDay())

	clock.Advance(14 * time.Hour)
	assert.True(t, svc.ShouldShow("2024-05-01"))
}

func TestPopupServiceUsesConfiguredTimezone(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC))
	svc := NewPopupService(clock, "Asia/Jakarta")
	assert.Equal(t, "2024-05-02", svc.Today())

	fallback := NewPopupService(clock, "Not/AZone")
	assert.Equal(t, "2024-05-01", fallback.Today())
}
