package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const contextUserKey = "openlibrary_token_user"

// CurrentUser retrieves the authenticated identity set by Middleware.
func CurrentUser(c *gin.Context) (TokenUser, bool) {
	v, ok := c.Get(contextUserKey)
	if !ok {
		return TokenUser{}, false
	}
	user, ok := v.(TokenUser)
	return user, ok
}

// Middleware resolves the bearer token, if any, into a TokenUser on the
// request context. A missing or malformed Authorization header leaves the
// request anonymous rather than failing it; verification failures fail
// closed before any handler runs.
func Middleware(verifier Verifier, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.Next()
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" {
			c.Next()
			return
		}

		user, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			status := http.StatusUnauthorized
			switch {
			case errors.Is(err, ErrAuthBackendUnavailable):
				status = http.StatusServiceUnavailable
			case errors.Is(err, ErrInvalidAuthResponse):
				status = http.StatusBadGateway
			}
			log.Warn("Token verification failed", zap.Error(err))
			c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
			return
		}

		c.Set(contextUserKey, user)
		c.Next()
	}
}

// RequireRole gates a route to the given roles. Unauthenticated requests get
// 401, authenticated ones whose role matches no rule get 403.
func RequireRole(roles ...Role) gin.HandlerFunc {
	allowed := make(map[Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if _, ok := allowed[user.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}
