package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/imprecode/gestion-visitas/internal/approval"
	"github.com/imprecode/gestion-visitas/internal/middleware"
	"github.com/imprecode/gestion-visitas/internal/repository"
	"go.uber.org/zap"
)

// ApprovalHandler serves the approver queue and decision endpoint.
type ApprovalHandler struct {
	engine   *approval.Engine
	userRepo *repository.UserRepository
	logger   *zap.Logger
}

// NewApprovalHandler creates a new approval handler.
func NewApprovalHandler(engine *approval.Engine, userRepo *repository.UserRepository, logger *zap.Logger) *ApprovalHandler {
	return &ApprovalHandler{engine: engine, userRepo: userRepo, logger: logger}
}

// Queue lists the approvals the authenticated approver may act on, with the
// vice-presidency gating projection applied.
func (h *ApprovalHandler) Queue(c *gin.Context) {
	id, _ := middleware.Identity(c)

	user, err := h.userRepo.GetByID(id.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}

	items, err := h.engine.ListForApprover(c.Request.Context(), user)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"approvals": items})
}

type decideRequest struct {
	Decision string `json:"decision" binding:"required"`
	Comment  string `json:"comment"`
}

// Decide records an approve/reject decision. A failed notification does not
// undo the decision; it comes back as a warning next to the updated rows.
func (h *ApprovalHandler) Decide(c *gin.Context) {
	approvalID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid approval id"})
		return
	}

	var req decideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "decision is required"})
		return
	}

	id, _ := middleware.Identity(c)
	if err := h.authorizeDecision(c, approvalID, id.UserID); err != nil {
		return // response already written
	}

	result, err := h.engine.Decide(c.Request.Context(), approvalID, req.Decision, req.Comment)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := gin.H{
		"approval": result.Approval,
		"visit":    result.Visit,
	}
	if result.NotificationErr != nil {
		resp["warning"] = "decision saved but notification delivery failed"
	}
	c.JSON(http.StatusOK, resp)
}

// authorizeDecision checks that the approval's role belongs to the
// authenticated approver. Writes the error response itself.
func (h *ApprovalHandler) authorizeDecision(c *gin.Context, approvalID, userID int64) error {
	user, err := h.userRepo.GetByID(userID)
	if err != nil {
		writeError(c, err)
		return err
	}
	if user == nil || !user.IsApprover() {
		c.JSON(http.StatusForbidden, gin.H{"error": "not an approver"})
		return errNotApprover
	}

	allowed := approval.RolesFor(user)
	target, err := h.engine.GetApproval(c.Request.Context(), approvalID)
	if err != nil {
		writeError(c, err)
		return err
	}
	for _, role := range allowed {
		if target.Role == role {
			return nil
		}
	}
	h.logger.Warn("Decision on foreign approval role blocked",
		zap.Int64("approval_id", approvalID),
		zap.String("user", user.Email),
		zap.String("approval_role", target.Role))
	c.JSON(http.StatusForbidden, gin.H{"error": "approval outside your role"})
	return errNotApprover
}

var errNotApprover = &forbiddenError{}

type forbiddenError struct{}

func (*forbiddenError) Error() string { return "forbidden" }
