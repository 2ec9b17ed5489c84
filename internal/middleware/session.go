package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"dispatch/internal/auth"
)

const (
	loginPath     = "/"
	dashboardPath = "/dashboard"
)

// SessionChecker reports whether a request carries a valid session.
type SessionChecker interface {
	HasValidSession(c *gin.Context) (bool, error)
}

// IsPublicRoute reports whether path is reachable without a session.
func IsPublicRoute(path string) bool {
	return path == loginPath
}

// isUngated reports whether the gate leaves path alone entirely.
func isUngated(path string) bool {
	return strings.HasPrefix(path, "/v1/") || path == "/health" || path == "/favicon.ico"
}

// RouteGate redirects page requests based on session state: signed-out users
// go to the login page, signed-in users skip it. Checker failures let the
// request through so the page can report the problem.
func RouteGate(checker SessionChecker, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if isUngated(path) {
			c.Next()
			return
		}

		authenticated, err := checker.HasValidSession(c)
		if err != nil {
			log.Warn("session check failed", zap.String("path", path), zap.Error(err))
			c.Next()
			return
		}

		public := IsPublicRoute(path)
		switch {
		case public && authenticated:
			c.Redirect(http.StatusFound, dashboardPath)
			c.Abort()
		case !public && !authenticated:
			c.Redirect(http.StatusFound, loginPath)
			c.Abort()
		default:
			c.Next()
		}
	}
}

// TokenSessionChecker checks the request token with an Authenticator.
type TokenSessionChecker struct {
	Authenticator Authenticator
	CookieName    string
}

// HasValidSession implements SessionChecker.
func (t TokenSessionChecker) HasValidSession(c *gin.Context) (bool, error) {
	token := TokenFromRequest(c, t.CookieName)
	if token == "" {
		return false, nil
	}
	_, err := t.Authenticator.Authenticate(c.Request.Context(), token)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, auth.ErrNotAuthenticated) {
		return false, nil
	}
	return false, err
}
