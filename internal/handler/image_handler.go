package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/prepdeck-marketing-api/internal/dto"
	"github.com/noah-isme/prepdeck-marketing-api/internal/service"
	appErrors "github.com/noah-isme/prepdeck-marketing-api/pkg/errors"
	"github.com/noah-isme/prepdeck-marketing-api/pkg/response"
)

type imageLoader interface {
	Load(ctx context.Context, req service.ImageRequest, visibility <-chan service.ViewportEvent, onError func(service.ImageFailure)) service.ImageResult
}

// ImageHandler probes image sources for pages that cannot hold a stream open.
type ImageHandler struct {
	loader imageLoader
}

func NewImageHandler(loader imageLoader) *ImageHandler {
	return &ImageHandler{loader: loader}
}

// Probe godoc
// @Summary Probe an image source
// @Description Loads the source with retries and returns it, or the placeholder when unavailable
// @Tags Images
// @Produce json
// @Param src query string true "Image URL, data URI or base64 payload"
// @Param priority query bool false "Priority image"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /images/probe [get]
func (h *ImageHandler) Probe(c *gin.Context) {
	src := strings.TrimSpace(c.Query("src"))
	if src == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "src is required"))
		return
	}
	priority, _ := strconv.ParseBool(c.DefaultQuery("priority", "false"))

	// Nothing reports visibility over plain HTTP, so the load starts immediately.
	result := h.loader.Load(c.Request.Context(), service.ImageRequest{ID: src, Src: src, Priority: priority}, nil, nil)
	if result.Status == service.ImageCancelled {
		response.Error(c, appErrors.Clone(appErrors.ErrUnavailable, "request cancelled"))
		return
	}
	response.JSON(c, http.StatusOK, dto.ImageProbeResponse{Status: result.Status, Src: result.Src, Attempts: result.Attempts})
}
