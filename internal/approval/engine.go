package approval

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/imprecode/gestion-visitas/internal/models"
	"github.com/imprecode/gestion-visitas/internal/notification"
	"github.com/imprecode/gestion-visitas/internal/repository"
	"github.com/imprecode/gestion-visitas/pkg/database"
	"go.uber.org/zap"
)

var (
	// ErrNotFound signals a missing visit or approval.
	ErrNotFound = errors.New("approval: not found")
	// ErrValidation signals malformed input rejected before any write.
	ErrValidation = errors.New("approval: validation failed")
	// ErrAlreadyDecided signals a second decision on the same approval.
	ErrAlreadyDecided = errors.New("approval: already decided")
)

// RolePolicy decides which approval roles a new visit requires.
type RolePolicy func(visit *models.Visit) []string

// DefaultRolePolicy requires vice-presidency and transport for every visit,
// plus tickets when the trip involves air travel.
func DefaultRolePolicy(visit *models.Visit) []string {
	roles := []string{models.ApprovalRoleVicepresidencia, models.ApprovalRoleTransporte}
	if visit.AirTravel {
		roles = append(roles, models.ApprovalRoleTiquetes)
	}
	return roles
}

// DecisionResult reports the outcome of a decision. NotificationErr is
// non-fatal: the decision committed even when it is set.
type DecisionResult struct {
	Approval        *models.Approval
	Visit           *models.Visit
	NotificationErr error
}

// Engine owns the visit/approval state machine: approval fan-out at visit
// creation, decision processing, the derived visit status, and the
// conditional notifications that follow a transition.
type Engine struct {
	db           *database.DB
	visitRepo    *repository.VisitRepository
	approvalRepo *repository.ApprovalRepository
	userRepo     *repository.UserRepository
	sender       notification.Sender
	rolePolicy   RolePolicy
	logger       *zap.Logger
	now          func() time.Time
}

// NewEngine creates a new approval engine.
func NewEngine(
	db *database.DB,
	visitRepo *repository.VisitRepository,
	approvalRepo *repository.ApprovalRepository,
	userRepo *repository.UserRepository,
	sender notification.Sender,
	rolePolicy RolePolicy,
	logger *zap.Logger,
) *Engine {
	if rolePolicy == nil {
		rolePolicy = DefaultRolePolicy
	}
	return &Engine{
		db:           db,
		visitRepo:    visitRepo,
		approvalRepo: approvalRepo,
		userRepo:     userRepo,
		sender:       sender,
		rolePolicy:   rolePolicy,
		logger:       logger,
		now:          time.Now,
	}
}

// ComputeVisitStatus derives a visit's status from its approvals. Any
// rejection wins immediately; approval requires every task approved. Pure
// function, order-independent.
func ComputeVisitStatus(approvals []*models.Approval) string {
	if len(approvals) == 0 {
		return models.VisitPendiente
	}

	allApproved := true
	for _, a := range approvals {
		switch a.Status {
		case models.ApprovalRechazado:
			return models.VisitRechazado
		case models.ApprovalAprobado:
		default:
			allApproved = false
		}
	}
	if allApproved {
		return models.VisitAprobado
	}
	return models.VisitPendiente
}

// CreateVisit validates the visit, resolves required approval roles and
// persists the visit plus one pending approval per role in one transaction.
func (e *Engine) CreateVisit(ctx context.Context, visit *models.Visit) error {
	if visit.ClientName == "" {
		return fmt.Errorf("%w: client name is required", ErrValidation)
	}
	if visit.Return.Before(visit.Departure) {
		return fmt.Errorf("%w: return date before departure date", ErrValidation)
	}
	if visit.ManagerID == 0 {
		return fmt.Errorf("%w: requesting manager is required", ErrValidation)
	}

	manager, err := e.userRepo.GetByID(visit.ManagerID)
	if err != nil {
		return err
	}
	if manager == nil {
		return fmt.Errorf("%w: manager %d", ErrNotFound, visit.ManagerID)
	}

	visit.Status = models.VisitPendiente
	roles := e.rolePolicy(visit)

	err = e.db.WithTransaction(func(tx *sql.Tx) error {
		if err := e.visitRepo.Create(tx, visit); err != nil {
			return err
		}
		for _, role := range roles {
			a := &models.Approval{
				VisitID: visit.ID,
				Role:    role,
				Status:  models.ApprovalPendiente,
			}
			if err := e.approvalRepo.Create(tx, a); err != nil {
				return err
			}
			visit.Approvals = append(visit.Approvals, a)
		}
		return nil
	})
	if err != nil {
		visit.Approvals = nil
		return err
	}

	e.logger.Info("Visit created with approval tasks",
		zap.Int64("visit_id", visit.ID),
		zap.Int64("manager_id", visit.ManagerID),
		zap.Strings("roles", roles))
	return nil
}

// Decide records an approve/reject decision and recomputes the parent visit
// status inside one transaction. The sibling re-read happens in the same
// transaction scope so two concurrent approvers cannot both observe a stale
// "not yet all-approved" snapshot.
func (e *Engine) Decide(ctx context.Context, approvalID int64, decision, comment string) (*DecisionResult, error) {
	if decision != models.ApprovalAprobado && decision != models.ApprovalRechazado {
		return nil, fmt.Errorf("%w: decision must be %q or %q",
			ErrValidation, models.ApprovalAprobado, models.ApprovalRechazado)
	}

	var (
		approval   *models.Approval
		visit      *models.Visit
		siblings   []*models.Approval
		prevStatus string
	)

	err := e.db.WithTransaction(func(tx *sql.Tx) error {
		var err error
		approval, err = e.approvalRepo.GetByIDTx(tx, approvalID)
		if err != nil {
			return err
		}
		if approval == nil {
			return fmt.Errorf("%w: approval %d", ErrNotFound, approvalID)
		}
		if approval.Decided() {
			return fmt.Errorf("%w: approval %d is %s", ErrAlreadyDecided, approvalID, approval.Status)
		}

		decidedAt := e.now()
		if err := e.approvalRepo.RecordDecision(tx, approvalID, decision, comment, decidedAt); err != nil {
			return err
		}
		approval.Status = decision
		approval.Comment = comment
		approval.DecidedAt = &decidedAt

		siblings, err = e.approvalRepo.ListByVisitTx(tx, approval.VisitID)
		if err != nil {
			return err
		}

		visit, err = e.visitRepo.GetByIDTx(tx, approval.VisitID)
		if err != nil {
			return err
		}
		if visit == nil {
			return fmt.Errorf("%w: visit %d", ErrNotFound, approval.VisitID)
		}
		prevStatus = visit.Status

		var newStatus string
		if len(siblings) == 1 {
			// Single-approver visits finalize straight from the decision.
			if decision == models.ApprovalAprobado {
				newStatus = models.VisitAprobado
			} else {
				newStatus = models.VisitRechazado
			}
		} else {
			newStatus = ComputeVisitStatus(siblings)
		}

		if newStatus != visit.Status {
			if err := e.visitRepo.UpdateStatus(tx, visit.ID, newStatus); err != nil {
				return err
			}
			visit.Status = newStatus
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Approval decision recorded",
		zap.Int64("approval_id", approvalID),
		zap.Int64("visit_id", visit.ID),
		zap.String("role", approval.Role),
		zap.String("decision", decision),
		zap.String("visit_status", visit.Status))

	result := &DecisionResult{Approval: approval, Visit: visit}
	result.NotificationErr = e.notifyAfterDecision(ctx, visit, approval, siblings, prevStatus)
	return result, nil
}

// notifyAfterDecision sends the conditional emails once the decision has
// committed. Failures are logged and reported back as a warning only.
func (e *Engine) notifyAfterDecision(
	ctx context.Context,
	visit *models.Visit,
	decided *models.Approval,
	siblings []*models.Approval,
	prevStatus string,
) error {
	var notifyErr error

	finalized := visit.Status != prevStatus &&
		(visit.Status == models.VisitAprobado || visit.Status == models.VisitRechazado)
	if finalized {
		if err := e.notifyManager(ctx, visit); err != nil {
			notifyErr = err
		}
	}

	if decided.Role == models.ApprovalRoleVicepresidencia &&
		decided.Status == models.ApprovalAprobado &&
		len(siblings) > 1 {
		if err := e.notifyPurchasingStaff(ctx, visit); err != nil && notifyErr == nil {
			notifyErr = err
		}
	}

	return notifyErr
}

func (e *Engine) notifyManager(ctx context.Context, visit *models.Visit) error {
	manager, err := e.userRepo.GetByID(visit.ManagerID)
	if err != nil || manager == nil {
		e.logger.Warn("Cannot resolve manager for notification",
			zap.Int64("visit_id", visit.ID),
			zap.Int64("manager_id", visit.ManagerID),
			zap.Error(err))
		return fmt.Errorf("resolve manager: %w", err)
	}

	subject, body := notification.VisitOutcomeEmail(visit)
	if err := e.sender.Send(ctx, []string{manager.Email}, subject, body); err != nil {
		e.logger.Warn("Manager notification failed",
			zap.Int64("visit_id", visit.ID),
			zap.String("email", manager.Email),
			zap.Error(err))
		return err
	}
	return nil
}

func (e *Engine) notifyPurchasingStaff(ctx context.Context, visit *models.Visit) error {
	staff, err := e.userRepo.ListBySubtype(models.SubtypeCompras, models.SubtypeSuministros)
	if err != nil {
		e.logger.Warn("Cannot resolve purchasing staff for broadcast", zap.Error(err))
		return err
	}
	if len(staff) == 0 {
		return nil
	}

	recipients := make([]string, 0, len(staff))
	for _, u := range staff {
		recipients = append(recipients, u.Email)
	}

	subject, body := notification.PendingTasksEmail(visit)
	if err := e.sender.Send(ctx, recipients, subject, body); err != nil {
		e.logger.Warn("Purchasing broadcast failed",
			zap.Int64("visit_id", visit.ID),
			zap.Error(err))
		return err
	}
	return nil
}

// GetApproval returns an approval by ID or ErrNotFound.
func (e *Engine) GetApproval(ctx context.Context, approvalID int64) (*models.Approval, error) {
	approval, err := e.approvalRepo.GetByID(approvalID)
	if err != nil {
		return nil, err
	}
	if approval == nil {
		return nil, fmt.Errorf("%w: approval %d", ErrNotFound, approvalID)
	}
	return approval, nil
}

// CompleteVisit lets the requesting manager close an approved visit once the
// return date has passed.
func (e *Engine) CompleteVisit(ctx context.Context, visitID, managerID int64) error {
	visit, err := e.visitRepo.GetByID(visitID)
	if err != nil {
		return err
	}
	if visit == nil {
		return fmt.Errorf("%w: visit %d", ErrNotFound, visitID)
	}
	if visit.ManagerID != managerID {
		return fmt.Errorf("%w: visit belongs to another manager", ErrValidation)
	}
	if visit.Status != models.VisitAprobado {
		return fmt.Errorf("%w: only approved visits can be completed", ErrValidation)
	}
	if e.now().Before(visit.Return) {
		return fmt.Errorf("%w: visit has not returned yet", ErrValidation)
	}
	return e.visitRepo.UpdateStatus(nil, visitID, models.VisitCompletado)
}
