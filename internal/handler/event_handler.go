package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/prepdeck-marketing-api/internal/dto"
	"github.com/noah-isme/prepdeck-marketing-api/internal/models"
	"github.com/noah-isme/prepdeck-marketing-api/internal/service"
	appErrors "github.com/noah-isme/prepdeck-marketing-api/pkg/errors"
	"github.com/noah-isme/prepdeck-marketing-api/pkg/response"
)

const maxContactMessage = 500

type eventTracker interface {
	Track(claims *models.JWTClaims, req dto.TrackEventRequest) (string, error)
}

// EventHandler records conversion events and serves the contact redirect.
type EventHandler struct {
	tracker        eventTracker
	deepLink       string
	defaultMessage string
	logger         *zap.Logger
}

func NewEventHandler(tracker eventTracker, deepLink, defaultMessage string, logger *zap.Logger) *EventHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHandler{tracker: tracker, deepLink: deepLink, defaultMessage: defaultMessage, logger: logger}
}

// Track godoc
// @Summary Track a conversion event
// @Description Fire-and-forget; delivery happens in the background
// @Tags Analytics
// @Accept json
// @Param payload body dto.TrackEventRequest true "Event payload"
// @Success 202
// @Failure 400 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Track(c *gin.Context) {
	var req dto.TrackEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid event payload"))
		return
	}
	if _, err := h.tracker.Track(claimsFromContext(c), req); err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c)
}

// Contact godoc
// @Summary Contact redirect
// @Description Redirects to the messaging deep link with a prefilled message
// @Tags Analytics
// @Param message query string false "Message override"
// @Success 302
// @Router /contact [get]
func (h *EventHandler) Contact(c *gin.Context) {
	message := strings.TrimSpace(c.Query("message"))
	if message == "" || len(message) > maxContactMessage {
		message = h.defaultMessage
	}

	target, err := contactURL(h.deepLink, message)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "contact link is misconfigured"))
		return
	}

	if _, err := h.tracker.Track(claimsFromContext(c), dto.TrackEventRequest{
		Name: service.EventContactClick,
		CTA:  "contact",
		Page: c.GetHeader("Referer"),
	}); err != nil {
		h.logger.Warn("contact click not tracked", zap.Error(err))
	}

	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, target)
}

func contactURL(deepLink, message string) (string, error) {
	u, err := url.Parse(deepLink)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" {
		return "", appErrors.Clone(appErrors.ErrInternal, "contact deep link has no scheme")
	}
	if message != "" {
		q := u.Query()
		q.Set("text", message)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
