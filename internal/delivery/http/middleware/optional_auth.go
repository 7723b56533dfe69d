package middleware

import (
	"strings"

	"contactus-backend/internal/domain"
	"contactus-backend/pkg/security"

	"github.com/gin-gonic/gin"
)

// TokenVerifier resolves a bearer token to a site user
type TokenVerifier interface {
	Verify(token string) (*domain.User, error)
}

// OptionalAuth identifies signed-in users from a bearer token or auth_token
// cookie. Requests without a usable token continue as the guest user.
func OptionalAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := domain.GuestUser()

		token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if token == "" {
			if cookie, err := c.Cookie("auth_token"); err == nil {
				token = cookie
			}
		}

		if token != "" && verifier != nil {
			verified, err := verifier.Verify(token)
			if err != nil {
				security.DefaultLogger().Log(c.Request.Context(), security.SecurityEvent{
					Event:     security.EventInvalidToken,
					IP:        c.ClientIP(),
					UserAgent: c.Request.UserAgent(),
					RequestID: c.GetString(RequestIDKey),
					Details:   map[string]interface{}{"error": err.Error()},
				})
			} else {
				user = verified
			}
		}

		c.Set(string(domain.KeyUser), user)
		c.Next()
	}
}

// CurrentUser returns the user set by OptionalAuth, or the guest user
func CurrentUser(c *gin.Context) *domain.User {
	if v, ok := c.Get(string(domain.KeyUser)); ok {
		if u, ok := v.(*domain.User); ok && u != nil {
			return u
		}
	}
	return domain.GuestUser()
}
