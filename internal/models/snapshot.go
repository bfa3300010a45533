package models

import (
	"encoding/json"
	"time"
)

// CachedSnapshot is the persisted form of a loader's last live state.
type CachedSnapshot struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Age returns how long ago the snapshot was written.
func (s CachedSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(s.Timestamp))
}

// FreshAt reports whether the snapshot is strictly younger than ttl.
func (s CachedSnapshot) FreshAt(now time.Time, ttl time.Duration) bool {
	return s.Age(now) < ttl
}
