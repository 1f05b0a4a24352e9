package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/kb-api/pkg/middleware/requestid"
)

const (
	responseMetaKey  = "kb.response_meta"
	requestStartKey  = "kb.request_start"
	cacheHitKey      = "cache_hit"
	requestIDMetaKey = "request_id"
	elapsedMetaKey   = "processing_time_ms"
)

// WithResponseMeta seeds the envelope meta of the request with its request id and start time.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		meta := map[string]interface{}{}
		if id := requestid.Value(c); id != "" {
			meta[requestIDMetaKey] = id
		}
		c.Set(responseMetaKey, meta)
		c.Set(requestStartKey, time.Now())
		c.Next()
	}
}

// SetCacheHit records whether the payload of the current response came from the stats cache.
func SetCacheHit(c *gin.Context, hit bool) {
	if c == nil {
		return
	}
	meta, ok := metaOf(c)
	if !ok {
		meta = map[string]interface{}{}
		c.Set(responseMetaKey, meta)
	}
	meta[cacheHitKey] = hit
}

// ExtractMeta returns the meta collected so far, stamped with the elapsed processing time.
// It returns nil when WithResponseMeta did not run and nothing was recorded.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	meta, ok := metaOf(c)
	if !ok {
		return nil
	}
	if start, exists := c.Get(requestStartKey); exists {
		if t, ok := start.(time.Time); ok {
			meta[elapsedMetaKey] = time.Since(t).Milliseconds()
		}
	}
	return meta
}

func metaOf(c *gin.Context) (map[string]interface{}, bool) {
	raw, exists := c.Get(responseMetaKey)
	if !exists {
		return nil, false
	}
	meta, ok := raw.(map[string]interface{})
	return meta, ok
}
