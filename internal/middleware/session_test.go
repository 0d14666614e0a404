package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/imprecode/gestion-visitas/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTokenService(now func() time.Time) *token.Service {
	return token.NewService(token.Config{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		Issuer:        "gestion-visitas",
	}).WithClock(now)
}

func newGatewayRouter(tokens *token.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SessionGateway(tokens, zap.NewNop()))
	r.GET("/api/perfil", func(c *gin.Context) {
		id, ok := Identity(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"email": id.Email})
	})
	r.GET("/panel", func(c *gin.Context) {
		c.String(http.StatusOK, "panel")
	})
	return r
}

func testIdentity() token.Identity {
	return token.Identity{UserID: 42, Email: "gestor@imprecode.co", Role: "gestor"}
}

func TestSessionGateway_ValidAccessToken(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tokens := newTokenService(func() time.Time { return issuedAt })

	pair, err := tokens.IssuePair(testIdentity())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/perfil", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: pair.Access})

	w := httptest.NewRecorder()
	newGatewayRouter(tokens).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gestor@imprecode.co")
	assert.Empty(t, w.Result().Cookies(), "a valid access token must not trigger a renewal")
}

func TestSessionGateway_RenewsExpiredAccessToken(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tokens := newTokenService(func() time.Time { return issuedAt })

	pair, err := tokens.IssuePair(testIdentity())
	require.NoError(t, err)

	// Past the access TTL, inside the refresh TTL.
	tokens.WithClock(func() time.Time { return issuedAt.Add(time.Hour) })

	req := httptest.NewRequest(http.MethodGet, "/api/perfil", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: pair.Access})
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: pair.Refresh})

	w := httptest.NewRecorder()
	newGatewayRouter(tokens).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gestor@imprecode.co")

	var renewed *http.Cookie
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == AccessCookie {
			renewed = cookie
		}
	}
	require.NotNil(t, renewed, "renewal must set a fresh access cookie")
	assert.NotEqual(t, pair.Access, renewed.Value)

	_, err = tokens.VerifyAccess(renewed.Value)
	assert.NoError(t, err)
}

func TestSessionGateway_MissingTokens(t *testing.T) {
	tokens := newTokenService(time.Now)

	req := httptest.NewRequest(http.MethodGet, "/api/perfil", nil)
	w := httptest.NewRecorder()
	newGatewayRouter(tokens).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionGateway_ExpiredRefreshToken(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tokens := newTokenService(func() time.Time { return issuedAt })

	pair, err := tokens.IssuePair(testIdentity())
	require.NoError(t, err)

	// Past both TTLs: the session is over.
	tokens.WithClock(func() time.Time { return issuedAt.Add(25 * time.Hour) })

	req := httptest.NewRequest(http.MethodGet, "/api/perfil", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: pair.Access})
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: pair.Refresh})

	w := httptest.NewRecorder()
	newGatewayRouter(tokens).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Both cookies are cleared on rejection.
	cleared := map[string]bool{}
	for _, cookie := range w.Result().Cookies() {
		if cookie.MaxAge < 0 {
			cleared[cookie.Name] = true
		}
	}
	assert.True(t, cleared[AccessCookie])
	assert.True(t, cleared[RefreshCookie])
}

func TestSessionGateway_BrowserRedirectsToLogin(t *testing.T) {
	tokens := newTokenService(time.Now)

	req := httptest.NewRequest(http.MethodGet, "/panel", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	w := httptest.NewRecorder()
	newGatewayRouter(tokens).ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestRequireRole(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tokens := newTokenService(func() time.Time { return issuedAt })

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SessionGateway(tokens, zap.NewNop()))
	r.GET("/api/admin/usuarios", RequireRole("admin"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	request := func(role string) int {
		pair, err := tokens.IssuePair(token.Identity{UserID: 1, Email: "u@imprecode.co", Role: role})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/admin/usuarios", nil)
		req.AddCookie(&http.Cookie{Name: AccessCookie, Value: pair.Access})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, request("admin"))
	assert.Equal(t, http.StatusForbidden, request("gestor"))
}
