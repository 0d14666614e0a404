package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/imprecode/gestion-visitas/internal/token"
	"go.uber.org/zap"
)

// Cookie names for the session token pair.
const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

const identityKey = "session_identity"

// Identity retrieves the authenticated identity from the gin context.
// Only valid behind the session gateway.
func Identity(c *gin.Context) (token.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return token.Identity{}, false
	}
	id, ok := v.(token.Identity)
	return id, ok
}

// SessionGateway validates the access token on every protected route and
// transparently renews it from the refresh token when expired. It is the only
// place a renewed access token is minted; handlers downstream only read the
// identity it attaches. On any refresh failure browser requests are
// redirected to the login page and API requests get a 401.
func SessionGateway(tokens *token.Service, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		access, _ := c.Cookie(AccessCookie)

		claims, err := tokens.VerifyAccess(access)
		if err == nil {
			proceed(c, claims)
			return
		}

		refresh, cookieErr := c.Cookie(RefreshCookie)
		if cookieErr != nil {
			reject(c, logger, "no refresh token")
			return
		}

		newAccess, renewErr := tokens.Renew(refresh)
		if renewErr != nil {
			reject(c, logger, renewErr.Error())
			return
		}

		claims, err = tokens.VerifyAccess(newAccess)
		if err != nil {
			reject(c, logger, err.Error())
			return
		}

		c.SetCookie(AccessCookie, newAccess, int(tokens.AccessTTL().Seconds()), "/", "", false, true)
		logger.Debug("Access token renewed", zap.String("email", claims.Email))
		proceed(c, claims)
	}
}

func proceed(c *gin.Context, claims *token.Claims) {
	id, err := claims.Identity()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
		return
	}
	c.Set(identityKey, id)
	c.Next()
}

func reject(c *gin.Context, logger *zap.Logger, reason string) {
	logger.Info("Session rejected",
		zap.String("path", c.Request.URL.Path),
		zap.String("reason", reason))

	ClearSessionCookies(c)
	if wantsHTML(c) {
		c.Redirect(http.StatusFound, "/login")
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
}

// ClearSessionCookies removes both session cookies. Logout does not revoke
// outstanding tokens; they expire naturally.
func ClearSessionCookies(c *gin.Context) {
	c.SetCookie(AccessCookie, "", -1, "/", "", false, true)
	c.SetCookie(RefreshCookie, "", -1, "/", "", false, true)
}

// RequireRole aborts with 403 unless the session identity holds one of the
// given roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := Identity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		for _, role := range roles {
			if id.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
	}
}

func wantsHTML(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		return false
	}
	return strings.Contains(c.GetHeader("Accept"), "text/html")
}
