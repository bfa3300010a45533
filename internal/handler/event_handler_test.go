package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/prepdeck-marketing-api/internal/dto"
	"github.com/noah-isme/prepdeck-marketing-api/internal/models"
	"github.com/noah-isme/prepdeck-marketing-api/internal/service"
	appErrors "github.com/noah-isme/prepdeck-marketing-api/pkg/errors"
)

type fakeTracker struct {
	events []dto.TrackEventRequest
	err    error
}

func (f *fakeTracker) Track(_ *models.JWTClaims, req dto.TrackEventRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.events = append(f.events, req)
	return "evt-1", nil
}

func TestEventHandlerTrackAccepts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracker := &fakeTracker{}
	h := NewEventHandler(tracker, "https://t.me/prepdeck", "Hi", nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/events", bytes.NewBufferString(`{"name":"cta_click","cta":"hero-primary"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	h.Track(c)

	assert.Equal(t, http.StatusAccepted, c.Writer.Status())
	require.Len(t, tracker.events, 1)
	assert.Equal(t, "hero-primary", tracker.events[0].CTA)
}

func TestEventHandlerTrackRejectsInvalidPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewEventHandler(&fakeTracker{err: appErrors.Clone(appErrors.ErrValidation, "invalid event payload")}, "https://t.me/prepdeck", "", nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/events", bytes.NewBufferString(`{"name":""}`))
	c.Request.Header.Set("Content-Type", "application/json")
	h.Track(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventHandlerContactRedirects(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracker := &fakeTracker{}
	h := NewEventHandler(tracker, "https://t.me/prepdeck_support", "Hi! I have a question about the courses.", nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/contact", nil)
	c.Request.Header.Set("Referer", "https://prepdeck.app/pricing")
	h.Contact(c)

	assert.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "t.me", location.Host)
	assert.Equal(t, "/prepdeck_support", location.Path)
	assert.Equal(t, "Hi! I have a question about the courses.", location.Query().Get("text"))

	require.Len(t, tracker.events, 1)
	assert.Equal(t, service.EventContactClick, tracker.events[0].Name)
	assert.Equal(t, "https://prepdeck.app/pricing", tracker.events[0].Page)
}

func TestEventHandlerContactMessageOverride(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewEventHandler(&fakeTracker{}, "https://wa.me/15550100?src=site", "default", nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/contact?message=Need+help+with+boards", nil)
	h.Contact(c)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "Need help with boards", location.Query().Get("text"))
	assert.Equal(t, "site", location.Query().Get("src"))
}

func TestEventHandlerContactStillRedirectsWhenTrackingFails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewEventHandler(&fakeTracker{err: appErrors.ErrUnavailable}, "https://t.me/prepdeck", "", nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/contact", nil)
	h.Contact(c)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://t.me/prepdeck", rec.Header().Get("Location"))
}

func TestContactURLRequiresScheme(t *testing.T) {
	_, err := contactURL("t.me/prepdeck", "hi")
	assert.Error(t, err)
}
