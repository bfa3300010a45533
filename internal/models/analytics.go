package models

import "time"

// AnalyticsEvent is a conversion event published to the analytics exchange.
type AnalyticsEvent struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	CTA        string            `json:"cta,omitempty"`
	Page       string            `json:"page,omitempty"`
	UserHash   string            `json:"user_hash,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	Properties map[string]string `json:"properties,omitempty"`
}
