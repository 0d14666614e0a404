package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/imprecode/gestion-visitas/internal/identity"
	"github.com/imprecode/gestion-visitas/internal/middleware"
	"github.com/imprecode/gestion-visitas/internal/models"
	"github.com/imprecode/gestion-visitas/internal/repository"
	"go.uber.org/zap"
)

// UserHandler serves admin user management and self-service password change.
type UserHandler struct {
	userRepo *repository.UserRepository
	identity *identity.Service
	logger   *zap.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(userRepo *repository.UserRepository, identitySvc *identity.Service, logger *zap.Logger) *UserHandler {
	return &UserHandler{userRepo: userRepo, identity: identitySvc, logger: logger}
}

// List lists all active users.
func (h *UserHandler) List(c *gin.Context) {
	includeDeleted := c.Query("include_deleted") == "true"
	users, err := h.userRepo.List(includeDeleted)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

type createUserRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Name       string `json:"name" binding:"required"`
	Role       string `json:"role" binding:"required"`
	Subtype    string `json:"subtype"`
	Department string `json:"department"`
	Password   string `json:"password" binding:"required"`
}

// Create creates a local account with a password.
func (h *UserHandler) Create(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := &models.User{
		Email:      req.Email,
		Name:       req.Name,
		Role:       req.Role,
		Subtype:    req.Subtype,
		Department: req.Department,
	}
	if err := h.identity.CreateUser(c.Request.Context(), user, req.Password); err != nil {
		if errors.Is(err, identity.ErrWeakPassword) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

type updateRoleRequest struct {
	Role    string `json:"role" binding:"required"`
	Subtype string `json:"subtype"`
}

// UpdateRole changes a user's role and approver subtype.
func (h *UserHandler) UpdateRole(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userRepo.GetByID(userID)
	if err != nil {
		writeError(c, err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	if err := h.userRepo.UpdateRole(nil, userID, req.Role, req.Subtype); err != nil {
		writeError(c, err)
		return
	}

	h.logger.Info("User role updated",
		zap.Int64("user_id", userID),
		zap.String("role", req.Role),
		zap.String("subtype", req.Subtype))
	c.JSON(http.StatusOK, gin.H{"message": "role updated"})
}

// Delete soft-deletes a user. The row stays for referential history.
func (h *UserHandler) Delete(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if err := h.userRepo.SoftDelete(nil, userID, time.Now()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}

type changePasswordRequest struct {
	Current string `json:"current" binding:"required"`
	New     string `json:"new" binding:"required"`
}

// ChangePassword lets a local-account user rotate their own password.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	id, _ := middleware.Identity(c)

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.identity.ChangePassword(c.Request.Context(), id.UserID, req.Current, req.New)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "current password is wrong"})
		case errors.Is(err, identity.ErrWeakPassword):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			writeError(c, err)
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}
