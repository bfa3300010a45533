package models

import "time"

// Rating bounds for reviews.
const (
	MinRating = 1
	MaxRating = 5
)

// Review is a user testimonial. New reviews are written unapproved and stay hidden until moderated.
type Review struct {
	ID        string    `firestore:"-" json:"id"`
	UserID    string    `firestore:"userId" json:"user_id"`
	UserName  string    `firestore:"userName" json:"user_name"`
	UserEmail string    `firestore:"userEmail" json:"-"`
	Rating    int       `firestore:"rating" json:"rating"`
	Comment   string    `firestore:"comment" json:"comment"`
	Approved  *bool     `firestore:"approved" json:"approved,omitempty"`
	CreatedAt time.Time `firestore:"createdAt" json:"created_at"`
}

// IsApproved treats a missing flag as approved; only an explicit false hides a review.
func (r Review) IsApproved() bool {
	return r.Approved == nil || *r.Approved
}

// Normalize clamps the rating into range.
func (r *Review) Normalize() {
	if r.Rating < MinRating {
		r.Rating = MinRating
	}
	if r.Rating > MaxRating {
		r.Rating = MaxRating
	}
}
