package repository

import "github.com/noah-isme/prepdeck-marketing-api/internal/models"

// ReviewsCollection holds user reviews in both backends.
const ReviewsCollection = "reviews"

// reviewFields renders the stored shape of a new review, minus createdAt which the backend assigns.
func reviewFields(r *models.Review) map[string]any {
	approved := false
	if r.Approved != nil {
		approved = *r.Approved
	}
	return map[string]any{
		"userId":    r.UserID,
		"userName":  r.UserName,
		"userEmail": r.UserEmail,
		"rating":    r.Rating,
		"comment":   r.Comment,
		"approved":  approved,
	}
}
