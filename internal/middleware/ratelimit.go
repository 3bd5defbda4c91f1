package middleware

import (
	"net/http"

	"github.com/GoPolymarket/arena/internal/service"
	"github.com/gin-gonic/gin"
)

func RateLimitMiddleware(limiter *service.IdentityLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 已认证的按身份限流，匿名读取按 IP
		key := "ip:" + c.ClientIP()
		if id, ok := Identity(c); ok {
			key = "id:" + id.String()
		}

		if !limiter.Allow(key) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": "1s",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
