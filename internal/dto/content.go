package dto

import (
	"time"

	"github.com/noah-isme/prepdeck-marketing-api/internal/models"
)

// SectionMeta describes where a section's data came from.
type SectionMeta struct {
	Loading   bool       `json:"loading"`
	Source    string     `json:"cache_source"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// HeroView is the hero config with its countdown resolved against the server clock.
type HeroView struct {
	models.HeroConfig
	CountdownSeconds int64 `json:"countdown_seconds"`
}

// CourseView adds the computed discount to a course.
type CourseView struct {
	models.Course
	DiscountPercent int `json:"discount_percent"`
}

// HomeSection pairs a section payload with its meta.
type HomeSection struct {
	Data interface{} `json:"data"`
	Meta SectionMeta `json:"meta"`
}

// HomeResponse aggregates every section rendered on the home page.
type HomeResponse struct {
	Banners HomeSection `json:"banners"`
	Hero    HomeSection `json:"hero"`
	Courses HomeSection `json:"courses"`
	Reviews HomeSection `json:"reviews"`
	News    HomeSection `json:"news"`
}

// SectionUpdate is pushed to stream sessions whenever a section changes.
type SectionUpdate struct {
	Section string      `json:"section"`
	Data    interface{} `json:"data"`
	Meta    SectionMeta `json:"meta"`
	// Count is the number of carousel slides the update carries.
	Count int `json:"-"`
	// Durations holds per-slide auto-advance periods in milliseconds, when the section defines them.
	Durations []int `json:"-"`
}
