package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/prepdeck-marketing-api/internal/middleware"
)

// Handlers groups every HTTP handler served under the API prefix.
type Handlers struct {
	Content *ContentHandler
	Reviews *ReviewHandler
	Events  *EventHandler
	Images  *ImageHandler
	Stream  *StreamHandler
}

// RegisterRoutes mounts the public API on group.
func RegisterRoutes(group *gin.RouterGroup, h Handlers, auth middleware.TokenValidator) {
	group.Use(middleware.WithResponseMeta())

	group.GET("/home", h.Content.Home)
	group.GET("/banners", h.Content.Banners)
	group.GET("/hero", h.Content.Hero)
	group.GET("/courses", h.Content.Courses)
	group.GET("/news", h.Content.News)
	group.GET("/popup", h.Content.Popup)
	group.GET("/reviews", h.Content.Reviews)

	reviews := group.Group("/reviews", middleware.JWT(auth))
	reviews.GET("/status", h.Reviews.Status)
	reviews.POST("", h.Reviews.Submit)

	group.GET("/images/probe", h.Images.Probe)

	tracked := group.Group("", middleware.OptionalJWT(auth))
	tracked.POST("/events", h.Events.Track)
	tracked.GET("/contact", h.Events.Contact)

	if h.Stream != nil {
		group.GET("/stream", h.Stream.Serve)
	}
}
