package approval

import (
	"context"
	"fmt"

	"github.com/imprecode/gestion-visitas/internal/models"
)

// RolesFor maps an approver account to the approval roles it may act on.
// Vice-presidents see vice-presidency tasks; purchasing approvers see ticket
// tasks; supply approvers see transport tasks.
func RolesFor(user *models.User) []string {
	switch {
	case user.Role == models.RoleVicepresidente:
		return []string{models.ApprovalRoleVicepresidencia}
	case user.Role == models.RoleAprobador && user.Subtype == models.SubtypeCompras:
		return []string{models.ApprovalRoleTiquetes}
	case user.Role == models.RoleAprobador && user.Subtype == models.SubtypeSuministros:
		return []string{models.ApprovalRoleTransporte}
	default:
		return nil
	}
}

// QueueItem is one approval in an approver's queue, joined with its visit.
type QueueItem struct {
	Approval *models.Approval `json:"approval"`
	Visit    *models.Visit    `json:"visit"`
}

// ListForApprover builds the approver's task queue with the vice-presidency
// gating projection applied: while the sibling vice-presidency approval is
// still pending, ticket/transport tasks are withheld from the queue; when the
// vice-presidency rejected, they are shown as rejected. The projection never
// touches the stored rows.
func (e *Engine) ListForApprover(ctx context.Context, user *models.User) ([]QueueItem, error) {
	roles := RolesFor(user)
	if len(roles) == 0 {
		return nil, fmt.Errorf("%w: user %s holds no approval role", ErrValidation, user.Email)
	}

	approvals, err := e.approvalRepo.ListByRoles(roles, "")
	if err != nil {
		return nil, err
	}

	var items []QueueItem
	for _, a := range approvals {
		siblings, err := e.approvalRepo.ListByVisit(a.VisitID)
		if err != nil {
			return nil, err
		}

		projected, visible := ProjectForQueue(a, siblings)
		if !visible {
			continue
		}

		visit, err := e.visitRepo.GetByID(a.VisitID)
		if err != nil {
			return nil, err
		}
		if visit == nil {
			continue
		}
		items = append(items, QueueItem{Approval: projected, Visit: visit})
	}
	return items, nil
}

// ProjectForQueue applies the read-time gating of ticket/transport approvals
// behind the vice-presidency decision. Returns the approval to display (a
// copy when the status is overridden) and whether to display it at all.
// Pure function.
func ProjectForQueue(a *models.Approval, siblings []*models.Approval) (*models.Approval, bool) {
	if a.Role == models.ApprovalRoleVicepresidencia {
		return a, true
	}

	var vp *models.Approval
	for _, s := range siblings {
		if s.Role == models.ApprovalRoleVicepresidencia {
			vp = s
			break
		}
	}
	if vp == nil {
		return a, true
	}

	switch vp.Status {
	case models.ApprovalPendiente:
		return a, false
	case models.ApprovalRechazado:
		projected := *a
		projected.Status = models.ApprovalRechazado
		return &projected, true
	default:
		return a, true
	}
}
