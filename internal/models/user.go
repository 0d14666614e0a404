package models

import "time"

// User represents an account provisioned from the corporate directory or
// created by an administrator. Users are soft-deleted only.
type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Role         string     `json:"role"`    // gestor, practicante, admin, aprobador, vicepresidente, sin-asignar
	Subtype      string     `json:"subtype"` // compras, suministros, or empty
	Department   string     `json:"department"`
	Phone        string     `json:"phone"`
	PasswordHash string     `json:"-"` // empty for directory-authenticated users
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Role constants
const (
	RoleGestor         = "gestor"
	RolePracticante    = "practicante"
	RoleAdmin          = "admin"
	RoleAprobador      = "aprobador"
	RoleVicepresidente = "vicepresidente"
	RoleSinAsignar     = "sin-asignar"
)

// Approver subtype constants
const (
	SubtypeCompras     = "compras"
	SubtypeSuministros = "suministros"
	SubtypeNone        = ""
)

// IsApprover reports whether the user may act on approval tasks.
func (u *User) IsApprover() bool {
	return u.Role == RoleAprobador || u.Role == RoleVicepresidente
}
