package legalization

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/imprecode/gestion-visitas/internal/models"
	"github.com/imprecode/gestion-visitas/internal/repository"
	"go.uber.org/zap"
)

var (
	// ErrNotFound signals a missing visit or invoice.
	ErrNotFound = errors.New("legalization: not found")
	// ErrValidation signals a rejected submission (wrong owner, wrong visit
	// state, malformed input).
	ErrValidation = errors.New("legalization: validation failed")
	// ErrDeadlineExpired signals a submission past the legalization window.
	ErrDeadlineExpired = errors.New("legalization: deadline expired")
)

// Config holds legalization configuration.
type Config struct {
	GraceDays int    // days after the return date to submit expenses
	UploadDir string // where invoice evidence files are stored
}

// Service manages expense legalization: the invoice record, its uploaded
// evidence files and the submission deadline.
type Service struct {
	cfg         Config
	visitRepo   *repository.VisitRepository
	invoiceRepo *repository.InvoiceRepository
	logger      *zap.Logger
	now         func() time.Time
}

// NewService creates a new legalization service.
func NewService(
	cfg Config,
	visitRepo *repository.VisitRepository,
	invoiceRepo *repository.InvoiceRepository,
	logger *zap.Logger,
) *Service {
	if cfg.GraceDays <= 0 {
		cfg.GraceDays = 5
	}
	return &Service{
		cfg:         cfg,
		visitRepo:   visitRepo,
		invoiceRepo: invoiceRepo,
		logger:      logger,
		now:         time.Now,
	}
}

// Deadline returns the submission deadline for a visit.
func (s *Service) Deadline(visit *models.Visit) time.Time {
	return visit.Return.AddDate(0, 0, s.cfg.GraceDays)
}

// SubmitInvoice creates or updates the expense record for a visit. The visit
// must belong to the manager, be approved or completed, and still be within
// the legalization window.
func (s *Service) SubmitInvoice(ctx context.Context, visitID, managerID int64, description string, total float64) (*models.Invoice, error) {
	visit, err := s.eligibleVisit(visitID, managerID)
	if err != nil {
		return nil, err
	}

	if total < 0 {
		return nil, fmt.Errorf("%w: total cannot be negative", ErrValidation)
	}

	existing, err := s.invoiceRepo.GetByVisit(visit.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := s.invoiceRepo.Update(nil, existing.ID, description, total); err != nil {
			return nil, err
		}
		existing.Description = description
		existing.Total = total
		return existing, nil
	}

	invoice := &models.Invoice{
		VisitID:     visit.ID,
		Description: description,
		Total:       total,
	}
	if err := s.invoiceRepo.Create(nil, invoice); err != nil {
		return nil, err
	}

	s.logger.Info("Invoice submitted",
		zap.Int64("visit_id", visit.ID),
		zap.Float64("total", total))
	return invoice, nil
}

// AttachFile stores an uploaded evidence file and records it against the
// visit's invoice. Files are stored under a uuid name; the original name is
// kept on the row.
func (s *Service) AttachFile(ctx context.Context, visitID, managerID int64, originalName string, src io.Reader) (*models.InvoiceFile, error) {
	if _, err := s.eligibleVisit(visitID, managerID); err != nil {
		return nil, err
	}

	invoice, err := s.invoiceRepo.GetByVisit(visitID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, fmt.Errorf("%w: submit the invoice before attaching files", ErrValidation)
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	storedName := uuid.NewString() + filepath.Ext(originalName)
	storedPath := filepath.Join(s.cfg.UploadDir, storedName)

	dst, err := os.Create(storedPath)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(storedPath)
		return nil, fmt.Errorf("write upload file: %w", err)
	}

	file := &models.InvoiceFile{
		InvoiceID:    invoice.ID,
		OriginalName: originalName,
		StoredPath:   storedPath,
	}
	if err := s.invoiceRepo.AddFile(nil, file); err != nil {
		os.Remove(storedPath)
		return nil, err
	}

	s.logger.Info("Invoice file attached",
		zap.Int64("invoice_id", invoice.ID),
		zap.String("original_name", originalName))
	return file, nil
}

// GetInvoice returns the invoice for a visit, or ErrNotFound.
func (s *Service) GetInvoice(ctx context.Context, visitID int64) (*models.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByVisit(visitID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, fmt.Errorf("%w: invoice for visit %d", ErrNotFound, visitID)
	}
	return invoice, nil
}

func (s *Service) eligibleVisit(visitID, managerID int64) (*models.Visit, error) {
	visit, err := s.visitRepo.GetByID(visitID)
	if err != nil {
		return nil, err
	}
	if visit == nil {
		return nil, fmt.Errorf("%w: visit %d", ErrNotFound, visitID)
	}
	if visit.ManagerID != managerID {
		return nil, fmt.Errorf("%w: visit belongs to another manager", ErrValidation)
	}
	if visit.Status != models.VisitAprobado && visit.Status != models.VisitCompletado {
		return nil, fmt.Errorf("%w: visit is %s, expenses require an approved visit", ErrValidation, visit.Status)
	}
	if s.now().After(s.Deadline(visit)) {
		return nil, fmt.Errorf("%w: deadline was %s", ErrDeadlineExpired, s.Deadline(visit).Format("2006-01-02"))
	}
	return visit, nil
}
