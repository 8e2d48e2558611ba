package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/authgate/internal/models"
	"github.com/noah-isme/authgate/internal/service"
	appErrors "github.com/noah-isme/authgate/pkg/errors"
	"github.com/noah-isme/authgate/pkg/response"
)

// ContextUserKey is the gin context key storing verified token claims.
const ContextUserKey = "currentUser"

// ContextTokenKey stores the raw bearer token for revocation flows.
const ContextTokenKey = "currentToken"

// Authenticate runs the per-request authentication gate. A missing header
// or a non-Bearer scheme passes through anonymously; a presented token must
// survive the revocation check and verification or the request ends with a
// structured 401.
func Authenticate(authService *service.AuthService, metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		claims, err := authService.Authenticate(c.Request.Context(), token)
		if err != nil {
			if metrics != nil {
				metrics.IncAuthFailure(appErrors.FromError(err).Code)
			}
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Set(ContextTokenKey, token)
		c.Next()
	}
}

// RequireAuth aborts requests that reached the handler without a bound
// identity. Mount after Authenticate on protected routes.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextUserKey); !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Next()
	}
}

// ClaimsFromContext returns the bound claims, or nil for anonymous requests.
func ClaimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// TokenFromContext returns the raw bearer token bound by Authenticate.
func TokenFromContext(c *gin.Context) string {
	value, exists := c.Get(ContextTokenKey)
	if !exists {
		return ""
	}
	token, ok := value.(string)
	if !ok {
		return ""
	}
	return token
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
