package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/prepdeck-marketing-api/internal/dto"
)

const (
	responseMetaKey  = "response_meta"
	requestStartKey  = "request_started_at"
	cacheSourceKey   = "cache_source"
	cacheLoadingKey  = "loading"
	cacheUpdatedKey  = "updated_at"
	processingTimeMs = "processing_time_ms"
)

// WithResponseMeta initialises response metadata storage on the request context.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetSectionMeta records where the section served by this response came from.
func SetSectionMeta(c *gin.Context, meta dto.SectionMeta) {
	m := ensureMeta(c)
	m[cacheSourceKey] = meta.Source
	m[cacheLoadingKey] = meta.Loading
	if meta.UpdatedAt != nil {
		m[cacheUpdatedKey] = meta.UpdatedAt.Format(time.RFC3339)
	}
}

// ExtractMeta returns the metadata map stored on the context, stamped with the time spent so far.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	value, exists := c.Get(responseMetaKey)
	if !exists {
		return nil
	}
	meta, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	if started, ok := c.Get(requestStartKey); ok {
		if t, ok := started.(time.Time); ok {
			meta[processingTimeMs] = time.Since(t).Milliseconds()
		}
	}
	return meta
}

func ensureMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return map[string]interface{}{}
	}
	if meta, exists := c.Get(responseMetaKey); exists {
		if typed, ok := meta.(map[string]interface{}); ok {
			return typed
		}
	}
	newMeta := make(map[string]interface{})
	c.Set(responseMetaKey, newMeta)
	return newMeta
}
