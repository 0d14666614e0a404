package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/imprecode/gestion-visitas/internal/models"
	"go.uber.org/zap"
)

// ApprovalRepository handles approval task database operations
type ApprovalRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApprovalRepository creates a new approval repository
func NewApprovalRepository(db *sql.DB, logger *zap.Logger) *ApprovalRepository {
	return &ApprovalRepository{db: db, logger: logger}
}

const approvalColumns = `id, visit_id, role, status, comment, decided_at, created_at`

func scanApproval(row interface{ Scan(...any) error }) (*models.Approval, error) {
	var a models.Approval
	var decidedAt sql.NullTime
	err := row.Scan(
		&a.ID,
		&a.VisitID,
		&a.Role,
		&a.Status,
		&a.Comment,
		&decidedAt,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if decidedAt.Valid {
		a.DecidedAt = &decidedAt.Time
	}
	return &a, nil
}

// Create creates a pending approval task for a visit.
func (r *ApprovalRepository) Create(tx *sql.Tx, approval *models.Approval) error {
	query := `INSERT INTO approvals (visit_id, role, status, comment) VALUES (?, ?, ?, ?)`

	args := []any{approval.VisitID, approval.Role, approval.Status, approval.Comment}

	var result sql.Result
	var err error
	if tx != nil {
		result, err = tx.Exec(query, args...)
	} else {
		result, err = r.db.Exec(query, args...)
	}
	if err != nil {
		r.logger.Error("Failed to create approval",
			zap.Int64("visit_id", approval.VisitID),
			zap.String("role", approval.Role),
			zap.Error(err))
		return fmt.Errorf("failed to create approval: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	approval.ID = id
	return nil
}

// GetByID retrieves an approval by ID. Returns (nil, nil) when not found.
func (r *ApprovalRepository) GetByID(id int64) (*models.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE id = ?`

	approval, err := scanApproval(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get approval by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}
	return approval, nil
}

// GetByIDTx retrieves an approval inside an open transaction.
func (r *ApprovalRepository) GetByIDTx(tx *sql.Tx, id int64) (*models.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE id = ?`

	approval, err := scanApproval(tx.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}
	return approval, nil
}

// ListByVisit retrieves all approvals belonging to a visit.
func (r *ApprovalRepository) ListByVisit(visitID int64) ([]*models.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE visit_id = ? ORDER BY id`
	return r.queryApprovals(r.db.Query, query, visitID)
}

// ListByVisitTx retrieves all sibling approvals inside the decision
// transaction. The status recompute must see the row just updated.
func (r *ApprovalRepository) ListByVisitTx(tx *sql.Tx, visitID int64) ([]*models.Approval, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE visit_id = ? ORDER BY id`
	return r.queryApprovals(tx.Query, query, visitID)
}

// ListByRoles retrieves approvals for the given roles, optionally restricted
// to a status. Feeds the approver queue before view projection is applied.
func (r *ApprovalRepository) ListByRoles(roles []string, status string) ([]*models.Approval, error) {
	if len(roles) == 0 {
		return nil, nil
	}

	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE role IN (?` +
		repeatPlaceholder(len(roles)-1) + `)`
	args := make([]any, 0, len(roles)+1)
	for _, role := range roles {
		args = append(args, role)
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at`

	return r.queryApprovals(r.db.Query, query, args...)
}

func (r *ApprovalRepository) queryApprovals(queryFn func(string, ...any) (*sql.Rows, error), query string, args ...any) ([]*models.Approval, error) {
	rows, err := queryFn(query, args...)
	if err != nil {
		r.logger.Error("Failed to list approvals", zap.Error(err))
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}
	defer rows.Close()

	var approvals []*models.Approval
	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		approvals = append(approvals, approval)
	}
	return approvals, rows.Err()
}

// RecordDecision sets the decision on an approval row.
func (r *ApprovalRepository) RecordDecision(tx *sql.Tx, id int64, status, comment string, decidedAt time.Time) error {
	query := `UPDATE approvals SET status = ?, comment = ?, decided_at = ? WHERE id = ?`

	var err error
	if tx != nil {
		_, err = tx.Exec(query, status, comment, decidedAt, id)
	} else {
		_, err = r.db.Exec(query, status, comment, decidedAt, id)
	}
	if err != nil {
		r.logger.Error("Failed to record decision",
			zap.Int64("id", id),
			zap.String("status", status),
			zap.Error(err))
		return fmt.Errorf("failed to record decision: %w", err)
	}
	return nil
}
