package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// LimitConcurrentRequests caps the number of requests being processed at
// once. Excess requests get an immediate HTTP 429 rather than queueing;
// the invocation path already has its own admission queue, and stacking
// HTTP requests behind it just ties up connections.
//
// Example usage:
//
//	router.Use(LimitConcurrentRequests(64))
func LimitConcurrentRequests(maxConcurrent int) gin.HandlerFunc {
	slots := make(chan struct{}, maxConcurrent)

	return func(c *gin.Context) {
		select {
		case slots <- struct{}{}:
			defer func() { <-slots }()
			c.Next()
		default:
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many concurrent requests",
			})
		}
	}
}
