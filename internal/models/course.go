package models

import "math"

// Course is a purchasable flashcard course listed on the home page.
type Course struct {
	ID            string  `firestore:"-" json:"id"`
	Name          string  `firestore:"name" json:"name"`
	Description   string  `firestore:"description" json:"description,omitempty"`
	Price         float64 `firestore:"price" json:"price"`
	OriginalPrice float64 `firestore:"originalPrice" json:"original_price,omitempty"`
	Featured      bool    `firestore:"featured" json:"featured"`
	ImageURL      string  `firestore:"imageUrl" json:"image_url,omitempty"`
	ImageBase64   string  `firestore:"imageBase64" json:"image_base64,omitempty"`
	Active        *bool   `firestore:"active" json:"active,omitempty"`
}

func (c Course) IsActive() bool {
	return c.Active == nil || *c.Active
}

func (c Course) Image() string {
	return imageSource(c.ImageURL, c.ImageBase64)
}

// Discount returns the rounded percentage saved against OriginalPrice, or 0.
func (c Course) Discount() int {
	if c.OriginalPrice <= 0 || c.OriginalPrice <= c.Price {
		return 0
	}
	return int(math.Round((c.OriginalPrice - c.Price) / c.OriginalPrice * 100))
}
