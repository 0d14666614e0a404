package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/imprecode/gestion-visitas/internal/reports"
	"go.uber.org/zap"
)

// ReportHandler serves the admin aggregate reports.
type ReportHandler struct {
	reports *reports.Service
	logger  *zap.Logger
}

// NewReportHandler creates a new report handler.
func NewReportHandler(svc *reports.Service, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{reports: svc, logger: logger}
}

// Summary returns the aggregate dashboard figures.
func (h *ReportHandler) Summary(c *gin.Context) {
	summary, err := h.reports.BuildSummary(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Export streams the visit summary workbook.
func (h *ReportHandler) Export(c *gin.Context) {
	filename := fmt.Sprintf("visitas-%s.xlsx", time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")

	if err := h.reports.ExportXLSX(c.Request.Context(), c.Writer); err != nil {
		h.logger.Error("Report export failed", zap.Error(err))
		c.Status(http.StatusInternalServerError)
	}
}
