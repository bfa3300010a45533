package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/prepdeck-marketing-api/internal/dto"
	"github.com/noah-isme/prepdeck-marketing-api/internal/models"
	appErrors "github.com/noah-isme/prepdeck-marketing-api/pkg/errors"
	"github.com/noah-isme/prepdeck-marketing-api/pkg/response"
)

type reviewService interface {
	Status(ctx context.Context, claims *models.JWTClaims) (*dto.ReviewStatusResponse, error)
	Submit(ctx context.Context, claims *models.JWTClaims, req dto.CreateReviewRequest) (*models.Review, error)
}

// ReviewHandler accepts reviews from signed-in users.
type ReviewHandler struct {
	service reviewService
}

func NewReviewHandler(service reviewService) *ReviewHandler {
	return &ReviewHandler{service: service}
}

// Status godoc
// @Summary Review eligibility
// @Tags Reviews
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /reviews/status [get]
func (h *ReviewHandler) Status(c *gin.Context) {
	status, err := h.service.Status(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status)
}

// Submit godoc
// @Summary Submit a review
// @Description Stores an unapproved review; it is published after moderation
// @Tags Reviews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateReviewRequest true "Review payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reviews [post]
func (h *ReviewHandler) Submit(c *gin.Context) {
	var req dto.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}

	review, err := h.service.Submit(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, review)
}
