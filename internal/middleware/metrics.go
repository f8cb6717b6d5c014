package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/enfermeria-api/internal/service"
)

// unmatchedRoute is the path label of requests that matched no route.
const unmatchedRoute = "unmatched"

// Metrics records method, route template and status for every request.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
