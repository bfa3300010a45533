package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/prepdeck-marketing-api/internal/dto"
	"github.com/noah-isme/prepdeck-marketing-api/internal/middleware"
	"github.com/noah-isme/prepdeck-marketing-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

// sectionMeta records meta on the request and returns the response meta map.
func sectionMeta(c *gin.Context, meta dto.SectionMeta) map[string]interface{} {
	middleware.SetSectionMeta(c, meta)
	return middleware.ExtractMeta(c)
}
