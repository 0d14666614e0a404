package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/imprecode/gestion-visitas/internal/approval"
	"github.com/imprecode/gestion-visitas/internal/middleware"
	"github.com/imprecode/gestion-visitas/internal/models"
	"github.com/imprecode/gestion-visitas/internal/repository"
	"go.uber.org/zap"
)

// VisitHandler serves visit creation and listing for managers.
type VisitHandler struct {
	engine       *approval.Engine
	visitRepo    *repository.VisitRepository
	approvalRepo *repository.ApprovalRepository
	invoiceRepo  *repository.InvoiceRepository
	logger       *zap.Logger
}

// NewVisitHandler creates a new visit handler.
func NewVisitHandler(
	engine *approval.Engine,
	visitRepo *repository.VisitRepository,
	approvalRepo *repository.ApprovalRepository,
	invoiceRepo *repository.InvoiceRepository,
	logger *zap.Logger,
) *VisitHandler {
	return &VisitHandler{
		engine:       engine,
		visitRepo:    visitRepo,
		approvalRepo: approvalRepo,
		invoiceRepo:  invoiceRepo,
		logger:       logger,
	}
}

type createVisitRequest struct {
	ClientName string    `json:"client_name" binding:"required"`
	City       string    `json:"city" binding:"required"`
	Departure  time.Time `json:"departure" binding:"required"`
	Return     time.Time `json:"return" binding:"required"`
	Purpose    string    `json:"purpose"`
	AirTravel  bool      `json:"air_travel"`
}

// Create schedules a new visit with its approval fan-out.
func (h *VisitHandler) Create(c *gin.Context) {
	id, _ := middleware.Identity(c)

	var req createVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	visit := &models.Visit{
		ClientName: req.ClientName,
		City:       req.City,
		Departure:  req.Departure,
		Return:     req.Return,
		Purpose:    req.Purpose,
		AirTravel:  req.AirTravel,
		ManagerID:  id.UserID,
	}

	if err := h.engine.CreateVisit(c.Request.Context(), visit); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, visit)
}

// ListMine lists the requesting manager's visits.
func (h *VisitHandler) ListMine(c *gin.Context) {
	id, _ := middleware.Identity(c)

	visits, err := h.visitRepo.ListByManager(id.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"visits": visits})
}

// Get returns a visit with its approvals and invoice.
func (h *VisitHandler) Get(c *gin.Context) {
	visitID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid visit id"})
		return
	}

	visit, err := h.visitRepo.GetByID(visitID)
	if err != nil {
		writeError(c, err)
		return
	}
	if visit == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "visit not found"})
		return
	}

	id, _ := middleware.Identity(c)
	if visit.ManagerID != id.UserID && id.Role != models.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your visit"})
		return
	}

	approvals, err := h.approvalRepo.ListByVisit(visitID)
	if err != nil {
		writeError(c, err)
		return
	}
	visit.Approvals = approvals

	invoice, err := h.invoiceRepo.GetByVisit(visitID)
	if err != nil {
		writeError(c, err)
		return
	}
	visit.Invoice = invoice

	c.JSON(http.StatusOK, visit)
}

// Complete marks an approved visit as completed after the trip.
func (h *VisitHandler) Complete(c *gin.Context) {
	visitID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid visit id"})
		return
	}

	id, _ := middleware.Identity(c)
	if err := h.engine.CompleteVisit(c.Request.Context(), visitID, id.UserID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "visit completed"})
}
