package auth

import (
	"net/http"
	"strings"

	"wavely/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware resolves the caller identity from a bearer token and aborts
// with 401 when none is present or valid. The token is taken from the
// Authorization header, falling back to the "token" cookie for browser
// clients.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authentication required"})
			return
		}

		userID, err := jwt.ParseToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid or expired token"})
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	if cookie, err := c.Cookie("token"); err == nil {
		return cookie
	}
	return ""
}
