package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hisaab-app/hisaab-backend/internal/service"
	"github.com/hisaab-app/hisaab-backend/pkg/logger"
)

// AuthMiddleware validates JWT tokens and sets the caller's mobile in context
func AuthMiddleware(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		token, err := authService.ValidateToken(parts[1])
		if err != nil || !token.Valid {
			logger.L().Debugw("token rejected", "path", c.Request.URL.Path, "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		mobile, err := authService.MobileFromToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			c.Abort()
			return
		}

		c.Set("mobile", mobile)
		c.Next()
	}
}

// RequestLogger logs all incoming requests with details
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		logger.L().Infow("request", "method", method, "path", path, "status", status, "duration", duration)

		if len(c.Errors) > 0 {
			for _, e := range c.Errors {
				logger.L().Errorw("request error", "path", path, "error", e.Err)
			}
		}
	}
}

// GetMobile extracts the authenticated caller's mobile from gin context
func GetMobile(c *gin.Context) string {
	mobile, exists := c.Get("mobile")
	if !exists {
		return ""
	}
	return mobile.(string)
}

// RequireMobile returns false and writes a 401 if the caller is anonymous
func RequireMobile(c *gin.Context) (string, bool) {
	mobile := GetMobile(c)
	if mobile == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return "", false
	}
	return mobile, true
}
