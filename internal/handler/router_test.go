package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/prepdeck-marketing-api/internal/dto"
	"github.com/noah-isme/prepdeck-marketing-api/internal/models"
	"github.com/noah-isme/prepdeck-marketing-api/internal/service"
	appErrors "github.com/noah-isme/prepdeck-marketing-api/pkg/errors"
)

type staticValidator struct{}

func (staticValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if token == "valid" {
		return &models.JWTClaims{UserID: "user-1"}, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

func buildTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	content := &fakeContent{banners: []models.Banner{}, news: []models.NewsItem{}, meta: dto.SectionMeta{Source: service.SourceEmpty}}
	RegisterRoutes(router.Group("/api/v1"), Handlers{
		Content: NewContentHandler(content, fakePopupGate{today: "2024-05-01"}, "", false),
		Reviews: NewReviewHandler(&fakeReviewService{}),
		Events:  NewEventHandler(&fakeTracker{}, "https://t.me/prepdeck", "Hi", nil),
		Images:  NewImageHandler(&fakeImageLoader{result: service.ImageResult{Status: service.ImageLoaded, Src: "/x.png"}}),
	}, staticValidator{})
	return router
}

func performRequest(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRoutesIntegration(t *testing.T) {
	router := buildTestRouter()

	t.Run("public sections", func(t *testing.T) {
		for _, path := range []string{"/home", "/banners", "/hero", "/courses", "/reviews", "/news?search=x", "/popup", "/images/probe?src=/x.png"} {
			req, _ := http.NewRequest(http.MethodGet, "/api/v1"+path, nil)
			resp := performRequest(router, req)
			require.Equal(t, http.StatusOK, resp.Code, path)
		}
	})

	t.Run("section meta", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/banners", nil)
		resp := performRequest(router, req)
		require.Contains(t, resp.Body.String(), `"cache_source":"empty"`)
		require.Contains(t, resp.Body.String(), `"processing_time_ms"`)
	})

	t.Run("review status requires token", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/reviews/status", nil)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("review submission", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/api/v1/reviews", bytes.NewBufferString(`{"rating":5,"comment":"great"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer valid")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusCreated, resp.Code)
	})

	t.Run("review submission unauthenticated", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/api/v1/reviews", bytes.NewBufferString(`{"rating":5,"comment":"great"}`))
		req.Header.Set("Content-Type", "application/json")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("events", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPost, "/api/v1/events", bytes.NewBufferString(`{"name":"cta_click"}`))
		req.Header.Set("Content-Type", "application/json")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusAccepted, resp.Code)
	})

	t.Run("contact", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/contact", nil)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusFound, resp.Code)
		require.Equal(t, "https://t.me/prepdeck?text=Hi", resp.Header().Get("Location"))
	})
}
