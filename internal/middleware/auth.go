package middleware

import (
	"net/http"

	"github.com/getmentor/getmentor-sessions/pkg/jwt"
	"github.com/getmentor/getmentor-sessions/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// InternalAPITokenHeader carries the token for /api/internal routes
const InternalAPITokenHeader = "x-internal-sessions-api-auth-token"

// InternalAPIAuthMiddleware validates internal API token
func InternalAPIAuthMiddleware(validToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(InternalAPITokenHeader)

		if token == "" || validToken == "" || !jwt.TimingSafeCompare(token, validToken) {
			logger.Warn("Invalid internal API token",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or missing internal API token"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireMentor rejects users whose session role is not mentor.
// It must run after UserSessionMiddleware.
func RequireMentor() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, err := GetUserSession(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}
		if !session.IsMentor() {
			c.JSON(http.StatusForbidden, gin.H{"error": "Only mentors can manage availability"})
			c.Abort()
			return
		}
		c.Next()
	}
}
