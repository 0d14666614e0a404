package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/imprecode/gestion-visitas/internal/approval"
	"github.com/imprecode/gestion-visitas/internal/legalization"
)

// writeError maps service sentinels onto HTTP status codes. Anything
// unrecognized is a 500.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, approval.ErrValidation),
		errors.Is(err, legalization.ErrValidation),
		errors.Is(err, legalization.ErrDeadlineExpired),
		errors.Is(err, approval.ErrAlreadyDecided):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, approval.ErrNotFound),
		errors.Is(err, legalization.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
