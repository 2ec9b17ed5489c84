package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"dispatch/internal/auth"
)

const (
	sessionKey = "session"
	tokenKey   = "sessionToken"
)

// Authenticator validates session tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Session, error)
}

// TokenFromRequest returns the bearer token, falling back to the session cookie.
func TokenFromRequest(c *gin.Context, cookieName string) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if cookie, err := c.Cookie(cookieName); err == nil {
		return cookie
	}
	return ""
}

// RequireSession rejects requests without a live session and stores the
// session in the gin context.
func RequireSession(authenticator Authenticator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c, cookieName)
		session, err := authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			status := http.StatusUnauthorized
			message := auth.ErrNotAuthenticated.Error()
			if !errors.Is(err, auth.ErrNotAuthenticated) {
				status = http.StatusServiceUnavailable
				message = "session lookup failed"
			}
			c.AbortWithStatusJSON(status, gin.H{"error": message})
			return
		}

		c.Set(sessionKey, session)
		c.Set(tokenKey, token)
		c.Next()
	}
}

// GetSession returns the session stored by RequireSession.
func GetSession(c *gin.Context) *auth.Session {
	val, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	session, _ := val.(*auth.Session)
	return session
}

// GetToken returns the raw token stored by RequireSession.
func GetToken(c *gin.Context) string {
	return c.GetString(tokenKey)
}
