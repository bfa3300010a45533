package models

import "time"

// Hero defaults applied when the document omits a field.
const (
	DefaultHeroCTAText   = "Start learning"
	DefaultHeroCTALink   = "/courses"
	DefaultHeroAnimation = "fade"
)

// HeroConfig drives the promotional hero section (collection marketingHero).
// The first active document wins.
type HeroConfig struct {
	ID            string     `firestore:"-" json:"id"`
	Title         string     `firestore:"title" json:"title"`
	Subtitle      string     `firestore:"subtitle" json:"subtitle,omitempty"`
	CTAText       string     `firestore:"ctaText" json:"cta_text"`
	CTALink       string     `firestore:"ctaLink" json:"cta_link"`
	TimerEndDate  *time.Time `firestore:"timerEndDate" json:"timer_end_date,omitempty"`
	SpotsLeft     *int       `firestore:"spotsLeft" json:"spots_left,omitempty"`
	AnimationType string     `firestore:"animationType" json:"animation_type"`
	Images        []string   `firestore:"images" json:"images,omitempty"`
	Active        *bool      `firestore:"active" json:"active,omitempty"`
}

func (h HeroConfig) IsActive() bool {
	return h.Active == nil || *h.Active
}

// Normalize applies read-time defaults.
func (h *HeroConfig) Normalize() {
	if h.CTAText == "" {
		h.CTAText = DefaultHeroCTAText
	}
	if h.CTALink == "" {
		h.CTALink = DefaultHeroCTALink
	}
	if h.AnimationType == "" {
		h.AnimationType = DefaultHeroAnimation
	}
}

// Countdown returns the time left until TimerEndDate, never negative.
func (h HeroConfig) Countdown(now time.Time) time.Duration {
	if h.TimerEndDate == nil {
		return 0
	}
	left := h.TimerEndDate.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}
