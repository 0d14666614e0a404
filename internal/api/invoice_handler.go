package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/imprecode/gestion-visitas/internal/legalization"
	"github.com/imprecode/gestion-visitas/internal/middleware"
	"go.uber.org/zap"
)

// InvoiceHandler serves the expense legalization endpoints.
type InvoiceHandler struct {
	legalization *legalization.Service
	logger       *zap.Logger
}

// NewInvoiceHandler creates a new invoice handler.
func NewInvoiceHandler(svc *legalization.Service, logger *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{legalization: svc, logger: logger}
}

type submitInvoiceRequest struct {
	Description string  `json:"description" binding:"required"`
	Total       float64 `json:"total" binding:"required"`
}

// Submit creates or updates the expense record for an approved visit.
func (h *InvoiceHandler) Submit(c *gin.Context) {
	visitID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid visit id"})
		return
	}

	var req submitInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, _ := middleware.Identity(c)
	invoice, err := h.legalization.SubmitInvoice(c.Request.Context(), visitID, id.UserID, req.Description, req.Total)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

// Upload attaches one evidence file to the visit's invoice.
func (h *InvoiceHandler) Upload(c *gin.Context) {
	visitID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid visit id"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read uploaded file"})
		return
	}
	defer src.Close()

	id, _ := middleware.Identity(c)
	file, err := h.legalization.AttachFile(c.Request.Context(), visitID, id.UserID, fileHeader.Filename, src)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, file)
}

// Get returns the invoice and files for a visit.
func (h *InvoiceHandler) Get(c *gin.Context) {
	visitID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid visit id"})
		return
	}

	invoice, err := h.legalization.GetInvoice(c.Request.Context(), visitID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}
