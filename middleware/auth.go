package middleware

import (
	"strings"

	"tripsplit-backend/utils"

	"github.com/gin-gonic/gin"
)

// AuthRequired verifies the bearer token and stores the caller's member id
// under "user_id".
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			utils.Unauthorized(c, "Authorization header required")
			return
		}

		memberID, err := utils.ParseToken(strings.TrimSpace(token), secret)
		if err != nil {
			utils.Unauthorized(c, "Invalid or expired token")
			return
		}

		c.Set("user_id", memberID)
		c.Next()
	}
}
