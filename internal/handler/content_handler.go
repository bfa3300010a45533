package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/prepdeck-marketing-api/internal/dto"
	"github.com/noah-isme/prepdeck-marketing-api/internal/middleware"
	"github.com/noah-isme/prepdeck-marketing-api/internal/models"
	"github.com/noah-isme/prepdeck-marketing-api/pkg/response"
)

type contentService interface {
	Home() dto.HomeResponse
	Banners() ([]models.Banner, dto.SectionMeta)
	Hero() (*dto.HeroView, dto.SectionMeta)
	Courses() ([]dto.CourseView, dto.SectionMeta)
	Reviews() ([]models.Review, dto.SectionMeta)
	News(search string) ([]models.NewsItem, dto.SectionMeta)
	Popup() (*models.PopupBanner, dto.SectionMeta)
}

type popupGate interface {
	Today() string
	ShouldShow(lastShown string) bool
	EndOfDay() time.Duration
}

// ContentHandler serves the home page sections.
type ContentHandler struct {
	content      contentService
	popup        popupGate
	cookieName   string
	secureCookie bool
}

// NewContentHandler constructs the handler. The popup cookie is marked Secure when secureCookie is set.
func NewContentHandler(content contentService, popup popupGate, cookieName string, secureCookie bool) *ContentHandler {
	if cookieName == "" {
		cookieName = "popupBannerLastShown"
	}
	return &ContentHandler{content: content, popup: popup, cookieName: cookieName, secureCookie: secureCookie}
}

// Home godoc
// @Summary Home page content
// @Description Every home page section with its load state and cache source
// @Tags Content
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /home [get]
func (h *ContentHandler) Home(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.content.Home(), middleware.ExtractMeta(c))
}

// Banners godoc
// @Summary Active banners
// @Tags Content
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /banners [get]
func (h *ContentHandler) Banners(c *gin.Context) {
	items, meta := h.content.Banners()
	response.JSON(c, http.StatusOK, items, sectionMeta(c, meta))
}

// Hero godoc
// @Summary Active hero configuration
// @Tags Content
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /hero [get]
func (h *ContentHandler) Hero(c *gin.Context) {
	hero, meta := h.content.Hero()
	response.JSON(c, http.StatusOK, hero, sectionMeta(c, meta))
}

// Courses godoc
// @Summary Active courses, featured first
// @Tags Content
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *ContentHandler) Courses(c *gin.Context) {
	items, meta := h.content.Courses()
	response.JSON(c, http.StatusOK, items, sectionMeta(c, meta))
}

// Reviews godoc
// @Summary Approved reviews, newest first
// @Tags Reviews
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reviews [get]
func (h *ContentHandler) Reviews(c *gin.Context) {
	items, meta := h.content.Reviews()
	response.JSON(c, http.StatusOK, items, sectionMeta(c, meta))
}

// News godoc
// @Summary News posts, newest first
// @Tags Content
// @Produce json
// @Param search query string false "Case-insensitive text search"
// @Success 200 {object} response.Envelope
// @Router /news [get]
func (h *ContentHandler) News(c *gin.Context) {
	items, meta := h.content.News(strings.TrimSpace(c.Query("search")))
	response.JSON(c, http.StatusOK, items, sectionMeta(c, meta))
}

// Popup godoc
// @Summary Promotional popup
// @Description Returns the popup at most once per calendar day, tracked with a cookie
// @Tags Content
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /popup [get]
func (h *ContentHandler) Popup(c *gin.Context) {
	banner, meta := h.content.Popup()
	lastShown, _ := c.Cookie(h.cookieName)

	res := dto.PopupResponse{}
	if banner != nil && h.popup.ShouldShow(lastShown) {
		res.Show = true
		res.Banner = banner
		maxAge := int(h.popup.EndOfDay() / time.Second)
		if maxAge < 1 {
			maxAge = 1
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(h.cookieName, h.popup.Today(), maxAge, "/", "", h.secureCookie, false)
	}
	response.JSON(c, http.StatusOK, res, sectionMeta(c, meta))
}
