package models

import "time"

// Visit represents a scheduled client visit requested by a manager.
// Its status is derived exclusively from the state of its approvals and is
// never set directly by request handlers.
type Visit struct {
	ID         int64     `json:"id"`
	ClientName string    `json:"client_name"`
	City       string    `json:"city"`
	Departure  time.Time `json:"departure"`
	Return     time.Time `json:"return"`
	Purpose    string    `json:"purpose"`
	AirTravel  bool      `json:"air_travel"`
	ManagerID  int64     `json:"manager_id"`
	Status     string    `json:"status"` // pendiente, aprobado, rechazado, completado
	CreatedAt  time.Time `json:"created_at"`

	// Populated on detail reads, not stored on the visit row.
	Approvals []*Approval `json:"approvals,omitempty"`
	Invoice   *Invoice    `json:"invoice,omitempty"`
}

// Approval is one role-scoped decision task attached to a visit. It is
// created with the visit and decided at most once.
type Approval struct {
	ID        int64      `json:"id"`
	VisitID   int64      `json:"visit_id"`
	Role      string     `json:"role"`   // vicepresidencia, tiquetes, transporte
	Status    string     `json:"status"` // pendiente, aprobado, rechazado
	Comment   string     `json:"comment"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Visit status constants
const (
	VisitPendiente  = "pendiente"
	VisitAprobado   = "aprobado"
	VisitRechazado  = "rechazado"
	VisitCompletado = "completado"
)

// Approval status constants
const (
	ApprovalPendiente = "pendiente"
	ApprovalAprobado  = "aprobado"
	ApprovalRechazado = "rechazado"
)

// Approval role constants
const (
	ApprovalRoleVicepresidencia = "vicepresidencia"
	ApprovalRoleTiquetes        = "tiquetes"
	ApprovalRoleTransporte      = "transporte"
)

// Decided reports whether the approval has been acted on.
func (a *Approval) Decided() bool {
	return a.Status != ApprovalPendiente
}
