package dto

// CreateReviewRequest is the review form payload.
type CreateReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"required,notblank,max=2000"`
}

// ReviewStatusResponse tells the page whether to show the review form.
type ReviewStatusResponse struct {
	HasReviewed bool `json:"has_reviewed"`
	CanReview   bool `json:"can_review"`
}
