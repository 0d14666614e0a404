package repository

import (
	"database/sql"
	"fmt"

	"github.com/imprecode/gestion-visitas/internal/models"
	"go.uber.org/zap"
)

// VisitRepository handles visit database operations
type VisitRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVisitRepository creates a new visit repository
func NewVisitRepository(db *sql.DB, logger *zap.Logger) *VisitRepository {
	return &VisitRepository{db: db, logger: logger}
}

const visitColumns = `id, client_name, city, departure, return_date, purpose, air_travel, manager_id, status, created_at`

func scanVisit(row interface{ Scan(...any) error }) (*models.Visit, error) {
	var v models.Visit
	err := row.Scan(
		&v.ID,
		&v.ClientName,
		&v.City,
		&v.Departure,
		&v.Return,
		&v.Purpose,
		&v.AirTravel,
		&v.ManagerID,
		&v.Status,
		&v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Create creates a new visit
func (r *VisitRepository) Create(tx *sql.Tx, visit *models.Visit) error {
	query := `
		INSERT INTO visits (client_name, city, departure, return_date, purpose, air_travel, manager_id, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	args := []any{
		visit.ClientName,
		visit.City,
		visit.Departure,
		visit.Return,
		visit.Purpose,
		visit.AirTravel,
		visit.ManagerID,
		visit.Status,
	}

	var result sql.Result
	var err error
	if tx != nil {
		result, err = tx.Exec(query, args...)
	} else {
		result, err = r.db.Exec(query, args...)
	}
	if err != nil {
		r.logger.Error("Failed to create visit", zap.Error(err))
		return fmt.Errorf("failed to create visit: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	visit.ID = id
	return nil
}

// GetByID retrieves a visit by ID. Returns (nil, nil) when not found.
func (r *VisitRepository) GetByID(id int64) (*models.Visit, error) {
	query := `SELECT ` + visitColumns + ` FROM visits WHERE id = ?`

	visit, err := scanVisit(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get visit by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get visit: %w", err)
	}
	return visit, nil
}

// GetByIDTx retrieves a visit inside an open transaction so the status
// recompute reads the row the decision will update.
func (r *VisitRepository) GetByIDTx(tx *sql.Tx, id int64) (*models.Visit, error) {
	query := `SELECT ` + visitColumns + ` FROM visits WHERE id = ?`

	visit, err := scanVisit(tx.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get visit: %w", err)
	}
	return visit, nil
}

// ListByManager retrieves visits requested by a manager, newest first.
func (r *VisitRepository) ListByManager(managerID int64) ([]*models.Visit, error) {
	query := `SELECT ` + visitColumns + ` FROM visits WHERE manager_id = ? ORDER BY created_at DESC`
	return r.queryVisits(query, managerID)
}

// List retrieves all visits with pagination, newest first.
func (r *VisitRepository) List(limit, offset int) ([]*models.Visit, error) {
	query := `SELECT ` + visitColumns + ` FROM visits ORDER BY created_at DESC LIMIT ? OFFSET ?`
	return r.queryVisits(query, limit, offset)
}

func (r *VisitRepository) queryVisits(query string, args ...any) ([]*models.Visit, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Error("Failed to list visits", zap.Error(err))
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}
	defer rows.Close()

	var visits []*models.Visit
	for rows.Next() {
		visit, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		visits = append(visits, visit)
	}
	return visits, rows.Err()
}

// UpdateStatus updates the derived status of a visit.
func (r *VisitRepository) UpdateStatus(tx *sql.Tx, id int64, newStatus string) error {
	query := `UPDATE visits SET status = ? WHERE id = ?`

	var err error
	if tx != nil {
		_, err = tx.Exec(query, newStatus, id)
	} else {
		_, err = r.db.Exec(query, newStatus, id)
	}
	if err != nil {
		r.logger.Error("Failed to update visit status",
			zap.Int64("id", id),
			zap.String("status", newStatus),
			zap.Error(err))
		return fmt.Errorf("failed to update visit status: %w", err)
	}
	return nil
}

// CountByStatus returns visit counts grouped by status.
func (r *VisitRepository) CountByStatus() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM visits GROUP BY status`)
	if err != nil {
		r.logger.Error("Failed to count visits by status", zap.Error(err))
		return nil, fmt.Errorf("failed to count visits by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
