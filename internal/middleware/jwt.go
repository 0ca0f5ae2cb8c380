package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/isml-edu/student-portal-api/internal/service"
	appErrors "github.com/isml-edu/student-portal-api/pkg/errors"
	"github.com/isml-edu/student-portal-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentStudent"

// ContextTokenKey is the gin context key storing the raw bearer token. The
// upstream API is token-scoped, so handlers forward the student's own token.
const ContextTokenKey = "studentToken"

// JWT protects routes by requiring a valid student token.
func JWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Set(ContextTokenKey, parts[1])
		c.Next()
	}
}
