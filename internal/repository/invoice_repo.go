package repository

import (
	"database/sql"
	"fmt"

	"github.com/imprecode/gestion-visitas/internal/models"
	"go.uber.org/zap"
)

// InvoiceRepository handles expense record database operations
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) *InvoiceRepository {
	return &InvoiceRepository{db: db, logger: logger}
}

// Create creates an invoice for a visit.
func (r *InvoiceRepository) Create(tx *sql.Tx, invoice *models.Invoice) error {
	query := `INSERT INTO invoices (visit_id, description, total) VALUES (?, ?, ?)`

	var result sql.Result
	var err error
	if tx != nil {
		result, err = tx.Exec(query, invoice.VisitID, invoice.Description, invoice.Total)
	} else {
		result, err = r.db.Exec(query, invoice.VisitID, invoice.Description, invoice.Total)
	}
	if err != nil {
		r.logger.Error("Failed to create invoice", zap.Int64("visit_id", invoice.VisitID), zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	invoice.ID = id
	return nil
}

// GetByVisit retrieves a visit's invoice with its files. Returns (nil, nil)
// when the visit has no invoice yet.
func (r *InvoiceRepository) GetByVisit(visitID int64) (*models.Invoice, error) {
	query := `SELECT id, visit_id, description, total, created_at FROM invoices WHERE visit_id = ?`

	var inv models.Invoice
	err := r.db.QueryRow(query, visitID).Scan(
		&inv.ID,
		&inv.VisitID,
		&inv.Description,
		&inv.Total,
		&inv.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice", zap.Int64("visit_id", visitID), zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	files, err := r.listFiles(inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Files = files
	return &inv, nil
}

// Update updates the description and total of an invoice.
func (r *InvoiceRepository) Update(tx *sql.Tx, id int64, description string, total float64) error {
	query := `UPDATE invoices SET description = ?, total = ? WHERE id = ?`

	var err error
	if tx != nil {
		_, err = tx.Exec(query, description, total, id)
	} else {
		_, err = r.db.Exec(query, description, total, id)
	}
	if err != nil {
		r.logger.Error("Failed to update invoice", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	return nil
}

// AddFile records an uploaded file against an invoice.
func (r *InvoiceRepository) AddFile(tx *sql.Tx, file *models.InvoiceFile) error {
	query := `INSERT INTO invoice_files (invoice_id, original_name, stored_path) VALUES (?, ?, ?)`

	var result sql.Result
	var err error
	if tx != nil {
		result, err = tx.Exec(query, file.InvoiceID, file.OriginalName, file.StoredPath)
	} else {
		result, err = r.db.Exec(query, file.InvoiceID, file.OriginalName, file.StoredPath)
	}
	if err != nil {
		r.logger.Error("Failed to add invoice file", zap.Int64("invoice_id", file.InvoiceID), zap.Error(err))
		return fmt.Errorf("failed to add invoice file: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	file.ID = id
	return nil
}

func (r *InvoiceRepository) listFiles(invoiceID int64) ([]*models.InvoiceFile, error) {
	query := `SELECT id, invoice_id, original_name, stored_path, uploaded_at
		FROM invoice_files WHERE invoice_id = ? ORDER BY id`

	rows, err := r.db.Query(query, invoiceID)
	if err != nil {
		r.logger.Error("Failed to list invoice files", zap.Int64("invoice_id", invoiceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list invoice files: %w", err)
	}
	defer rows.Close()

	var files []*models.InvoiceFile
	for rows.Next() {
		var f models.InvoiceFile
		if err := rows.Scan(&f.ID, &f.InvoiceID, &f.OriginalName, &f.StoredPath, &f.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invoice file: %w", err)
		}
		files = append(files, &f)
	}
	return files, rows.Err()
}

// TotalsByManager returns the sum of legalized expense totals per manager.
// Used by the admin reports.
func (r *InvoiceRepository) TotalsByManager() (map[int64]float64, error) {
	query := `
		SELECT v.manager_id, COALESCE(SUM(i.total), 0)
		FROM invoices i
		JOIN visits v ON v.id = i.visit_id
		GROUP BY v.manager_id
	`

	rows, err := r.db.Query(query)
	if err != nil {
		r.logger.Error("Failed to aggregate invoice totals", zap.Error(err))
		return nil, fmt.Errorf("failed to aggregate invoice totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[int64]float64)
	for rows.Next() {
		var managerID int64
		var total float64
		if err := rows.Scan(&managerID, &total); err != nil {
			return nil, fmt.Errorf("failed to scan total: %w", err)
		}
		totals[managerID] = total
	}
	return totals, rows.Err()
}
