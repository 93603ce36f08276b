package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "convivo.im.messaging/internal/errors"
	"convivo.im.messaging/internal/jwt"
	"convivo.im.messaging/pkg/response"
)

// JWTAuth rejects requests without a valid bearer token and stores the
// caller's user id on the context.
func JWTAuth(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c.GetHeader("Authorization"))
		if token == "" {
			response.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			if err == jwt.ErrTokenExpired {
				response.Error(c, apperrors.CodeTokenExpired)
			} else {
				response.Error(c, apperrors.CodeTokenInvalid)
			}
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Next()
	}
}

func extractToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return parts[1]
}

// GetUserID returns the authenticated user id, 0 when unauthenticated.
func GetUserID(c *gin.Context) int64 {
	userID, exists := c.Get("user_id")
	if !exists {
		return 0
	}
	return userID.(int64)
}
