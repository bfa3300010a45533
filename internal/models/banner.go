package models

// DefaultSlideDuration is the auto-advance period, in milliseconds, when a slide does not set one.
const DefaultSlideDuration = 5000

// Banner is a rotating slide on the home page (collection homeBanners).
type Banner struct {
	ID          string `firestore:"-" json:"id"`
	ImageURL    string `firestore:"imageUrl" json:"image_url,omitempty"`
	ImageBase64 string `firestore:"imageBase64" json:"image_base64,omitempty"`
	Link        string `firestore:"link" json:"link,omitempty"`
	Order       int    `firestore:"order" json:"order"`
	Active      *bool  `firestore:"active" json:"active,omitempty"`
	Duration    int    `firestore:"duration" json:"duration"`
}

// IsActive treats a missing flag as active.
func (b Banner) IsActive() bool {
	return b.Active == nil || *b.Active
}

// Image returns the best available image source.
func (b Banner) Image() string {
	return imageSource(b.ImageURL, b.ImageBase64)
}

// Normalize applies read-time defaults.
func (b *Banner) Normalize(defaultDuration int) {
	if defaultDuration <= 0 {
		defaultDuration = DefaultSlideDuration
	}
	if b.Duration <= 0 {
		b.Duration = defaultDuration
	}
}

func imageSource(url, base64 string) string {
	if url != "" {
		return url
	}
	return base64
}
