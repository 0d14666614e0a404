package reports

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/imprecode/gestion-visitas/internal/repository"
	"go.uber.org/zap"
)

// Summary aggregates visit and expense figures for the admin dashboard.
type Summary struct {
	ByStatus        map[string]int `json:"by_status"`
	ByMonth         []MonthCount   `json:"by_month"`
	TotalsByManager []ManagerTotal `json:"totals_by_manager"`
}

// MonthCount is the number of visits created in one month.
type MonthCount struct {
	Month string `json:"month"` // YYYY-MM
	Count int    `json:"count"`
}

// ManagerTotal is the legalized expense total for one manager.
type ManagerTotal struct {
	ManagerID    int64   `json:"manager_id"`
	ManagerEmail string  `json:"manager_email"`
	Total        float64 `json:"total"`
}

// Service runs the aggregate report queries.
type Service struct {
	db          *sql.DB
	visitRepo   *repository.VisitRepository
	invoiceRepo *repository.InvoiceRepository
	userRepo    *repository.UserRepository
	logger      *zap.Logger
}

// NewService creates a new reports service.
func NewService(
	db *sql.DB,
	visitRepo *repository.VisitRepository,
	invoiceRepo *repository.InvoiceRepository,
	userRepo *repository.UserRepository,
	logger *zap.Logger,
) *Service {
	return &Service{
		db:          db,
		visitRepo:   visitRepo,
		invoiceRepo: invoiceRepo,
		userRepo:    userRepo,
		logger:      logger,
	}
}

// BuildSummary assembles the aggregate report.
func (s *Service) BuildSummary(ctx context.Context) (*Summary, error) {
	byStatus, err := s.visitRepo.CountByStatus()
	if err != nil {
		return nil, err
	}

	byMonth, err := s.visitsByMonth()
	if err != nil {
		return nil, err
	}

	totals, err := s.invoiceRepo.TotalsByManager()
	if err != nil {
		return nil, err
	}

	managerTotals := make([]ManagerTotal, 0, len(totals))
	for managerID, total := range totals {
		mt := ManagerTotal{ManagerID: managerID, Total: total}
		if user, err := s.userRepo.GetByID(managerID); err == nil && user != nil {
			mt.ManagerEmail = user.Email
		}
		managerTotals = append(managerTotals, mt)
	}

	return &Summary{
		ByStatus:        byStatus,
		ByMonth:         byMonth,
		TotalsByManager: managerTotals,
	}, nil
}

func (s *Service) visitsByMonth() ([]MonthCount, error) {
	rows, err := s.db.Query(`
		SELECT strftime('%Y-%m', created_at) AS month, COUNT(*)
		FROM visits
		GROUP BY month
		ORDER BY month
	`)
	if err != nil {
		s.logger.Error("Failed to count visits by month", zap.Error(err))
		return nil, fmt.Errorf("failed to count visits by month: %w", err)
	}
	defer rows.Close()

	var counts []MonthCount
	for rows.Next() {
		var mc MonthCount
		if err := rows.Scan(&mc.Month, &mc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan month count: %w", err)
		}
		counts = append(counts, mc)
	}
	return counts, rows.Err()
}
