package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/prepdeck-marketing-api/internal/dto"
	"github.com/noah-isme/prepdeck-marketing-api/internal/models"
	"github.com/noah-isme/prepdeck-marketing-api/internal/repository"
	appErrors "github.com/noah-isme/prepdeck-marketing-api/pkg/errors"
)

// ReviewRepository persists submitted reviews. Create must reject a second review by the same user
// with repository.ErrAlreadyExists.
type ReviewRepository interface {
	HasReviewed(ctx context.Context, userID string) (bool, error)
	Create(ctx context.Context, review *models.Review) error
}

// ReviewService handles review submission by signed-in users.
type ReviewService struct {
	repo      ReviewRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReviewService constructs the service.
func NewReviewService(repo ReviewRepository, validate *validator.Validate, logger *zap.Logger) *ReviewService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ReviewService{repo: repo, validator: validate, logger: logger}
	svc.validator.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return svc
}

// Status reports whether the user may still submit a review.
func (s *ReviewService) Status(ctx context.Context, claims *models.JWTClaims) (*dto.ReviewStatusResponse, error) {
	if claims == nil || claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "sign in to leave a review")
	}
	reviewed, err := s.repo.HasReviewed(ctx, claims.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check review status")
	}
	return &dto.ReviewStatusResponse{HasReviewed: reviewed, CanReview: !reviewed}, nil
}

// Submit validates and stores a new, unapproved review. Invalid input never reaches the repository.
func (s *ReviewService) Submit(ctx context.Context, claims *models.JWTClaims, req dto.CreateReviewRequest) (*models.Review, error) {
	if claims == nil || claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "sign in to leave a review")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "rating must be 1-5 and comment must not be empty")
	}

	reviewed, err := s.repo.HasReviewed(ctx, claims.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check review status")
	}
	if reviewed {
		return nil, appErrors.Clone(appErrors.ErrConflict, "you have already submitted a review")
	}

	approved := false
	review := &models.Review{
		UserID:    claims.UserID,
		UserName:  displayName(claims),
		UserEmail: claims.Email,
		Rating:    req.Rating,
		Comment:   strings.TrimSpace(req.Comment),
		Approved:  &approved,
	}
	if err := s.repo.Create(ctx, review); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "you have already submitted a review")
		}
		s.logger.Error("review submission failed", zap.String("user_id", claims.UserID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit review, please try again")
	}

	s.logger.Info("review submitted", zap.String("user_id", claims.UserID), zap.String("review_id", review.ID), zap.Int("rating", review.Rating))
	return review, nil
}

func displayName(claims *models.JWTClaims) string {
	if name := strings.TrimSpace(claims.FullName); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(claims.Email, "@"); ok && local != "" {
		return local
	}
	return "Learner"
}
