package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/imprecode/gestion-visitas/internal/models"
	"go.uber.org/zap"
)

// UserRepository handles user database operations
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

const userColumns = `id, email, name, role, subtype, department, phone, password_hash, deleted_at, created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	var deletedAt sql.NullTime
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.Role,
		&u.Subtype,
		&u.Department,
		&u.Phone,
		&u.PasswordHash,
		&deletedAt,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		u.DeletedAt = &deletedAt.Time
	}
	return &u, nil
}

// Create creates a new user
func (r *UserRepository) Create(tx *sql.Tx, user *models.User) error {
	query := `
		INSERT INTO users (email, name, role, subtype, department, phone, password_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var result sql.Result
	var err error
	args := []any{user.Email, user.Name, user.Role, user.Subtype, user.Department, user.Phone, user.PasswordHash}

	if tx != nil {
		result, err = tx.Exec(query, args...)
	} else {
		result, err = r.db.Exec(query, args...)
	}
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("email", user.Email), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = id
	return nil
}

// GetByID retrieves a user by ID. Returns (nil, nil) when not found.
func (r *UserRepository) GetByID(id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	user, err := scanUser(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email. Returns (nil, nil) when not found.
func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`

	user, err := scanUser(r.db.QueryRow(query, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user by email", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// List retrieves all users, optionally including soft-deleted ones.
func (r *UserRepository) List(includeDeleted bool) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	if !includeDeleted {
		query += ` WHERE deleted_at IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(query)
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// ListBySubtype retrieves active approver users matching any of the given
// subtypes. Used for the vice-presidency broadcast fan-out.
func (r *UserRepository) ListBySubtype(subtypes ...string) ([]*models.User, error) {
	if len(subtypes) == 0 {
		return nil, nil
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE deleted_at IS NULL AND subtype IN (?` +
		repeatPlaceholder(len(subtypes)-1) + `)`

	args := make([]any, len(subtypes))
	for i, s := range subtypes {
		args[i] = s
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Error("Failed to list users by subtype", zap.Error(err))
		return nil, fmt.Errorf("failed to list users by subtype: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateRole updates a user's role and approver subtype.
func (r *UserRepository) UpdateRole(tx *sql.Tx, id int64, role, subtype string) error {
	query := `UPDATE users SET role = ?, subtype = ? WHERE id = ?`

	var err error
	if tx != nil {
		_, err = tx.Exec(query, role, subtype, id)
	} else {
		_, err = r.db.Exec(query, role, subtype, id)
	}
	if err != nil {
		r.logger.Error("Failed to update user role", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update user role: %w", err)
	}
	return nil
}

// UpdatePassword updates a user's password hash.
func (r *UserRepository) UpdatePassword(tx *sql.Tx, id int64, passwordHash string) error {
	query := `UPDATE users SET password_hash = ? WHERE id = ?`

	var err error
	if tx != nil {
		_, err = tx.Exec(query, passwordHash, id)
	} else {
		_, err = r.db.Exec(query, passwordHash, id)
	}
	if err != nil {
		r.logger.Error("Failed to update password", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// SoftDelete marks a user as deleted. Rows are never hard-deleted.
func (r *UserRepository) SoftDelete(tx *sql.Tx, id int64, when time.Time) error {
	query := `UPDATE users SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

	var err error
	if tx != nil {
		_, err = tx.Exec(query, when, id)
	} else {
		_, err = r.db.Exec(query, when, id)
	}
	if err != nil {
		r.logger.Error("Failed to soft delete user", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to soft delete user: %w", err)
	}
	return nil
}

func repeatPlaceholder(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += ", ?"
	}
	return s
}
