package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imprecode/gestion-visitas/internal/identity"
	"github.com/imprecode/gestion-visitas/internal/middleware"
	"github.com/imprecode/gestion-visitas/internal/models"
	"github.com/imprecode/gestion-visitas/internal/token"
	"go.uber.org/zap"
)

// AuthHandler serves login, logout and token refresh.
type AuthHandler struct {
	identity *identity.Service
	tokens   *token.Service
	logger   *zap.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(identitySvc *identity.Service, tokens *token.Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{identity: identitySvc, tokens: tokens, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates against the directory or a local password and sets the
// session cookie pair.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	user, err := h.identity.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) || errors.Is(err, identity.ErrUserDisabled) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.logger.Error("Login failed", zap.String("email", req.Email), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	pair, err := h.tokens.IssuePair(identityFor(user))
	if err != nil {
		h.logger.Error("Failed to issue token pair", zap.String("email", user.Email), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.SetCookie(middleware.AccessCookie, pair.Access, int(h.tokens.AccessTTL().Seconds()), "/", "", false, true)
	c.SetCookie(middleware.RefreshCookie, pair.Refresh, int(h.tokens.RefreshTTL().Seconds()), "/", "", false, true)

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Logout clears the session cookies. Outstanding tokens stay valid until
// natural expiry; there is no server-side revocation.
func (h *AuthHandler) Logout(c *gin.Context) {
	middleware.ClearSessionCookies(c)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Refresh mints a new access token from the refresh cookie. The session
// gateway does this transparently; the endpoint exists for API clients that
// renew explicitly.
func (h *AuthHandler) Refresh(c *gin.Context) {
	refresh, err := c.Cookie(middleware.RefreshCookie)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no refresh token"})
		return
	}

	access, err := h.tokens.Renew(refresh)
	if err != nil {
		middleware.ClearSessionCookies(c)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
		return
	}

	c.SetCookie(middleware.AccessCookie, access, int(h.tokens.AccessTTL().Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "token renewed"})
}

func identityFor(user *models.User) token.Identity {
	return token.Identity{
		UserID:  user.ID,
		Email:   user.Email,
		Role:    user.Role,
		Subtype: user.Subtype,
	}
}
