package approval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/imprecode/gestion-visitas/internal/models"
	"github.com/imprecode/gestion-visitas/internal/repository"
	"github.com/imprecode/gestion-visitas/pkg/database"
	"github.com/imprecode/gestion-visitas/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentEmail struct {
	Recipients []string
	Subject    string
	Body       string
}

// captureSender records every send and optionally fails them all.
type captureSender struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (s *captureSender) Send(_ context.Context, recipients []string, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentEmail{Recipients: recipients, Subject: subject, Body: body})
	return nil
}

func (s *captureSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type engineFixture struct {
	engine       *Engine
	db           *database.DB
	userRepo     *repository.UserRepository
	visitRepo    *repository.VisitRepository
	approvalRepo *repository.ApprovalRepository
	sender       *captureSender
}

func newEngineFixture(t *testing.T, policy RolePolicy) *engineFixture {
	t.Helper()

	db := testutil.NewDB(t)
	logger := zap.NewNop()

	userRepo := repository.NewUserRepository(db.DB, logger)
	visitRepo := repository.NewVisitRepository(db.DB, logger)
	approvalRepo := repository.NewApprovalRepository(db.DB, logger)
	sender := &captureSender{}

	return &engineFixture{
		engine:       NewEngine(db, visitRepo, approvalRepo, userRepo, sender, policy, logger),
		db:           db,
		userRepo:     userRepo,
		visitRepo:    visitRepo,
		approvalRepo: approvalRepo,
		sender:       sender,
	}
}

func (f *engineFixture) createUser(t *testing.T, email, role, subtype string) *models.User {
	t.Helper()
	user := &models.User{Email: email, Name: email, Role: role, Subtype: subtype}
	require.NoError(t, f.userRepo.Create(nil, user))
	return user
}

func (f *engineFixture) createVisit(t *testing.T, managerID int64, airTravel bool) *models.Visit {
	t.Helper()
	visit := &models.Visit{
		ClientName: "Distribuidora Andina",
		City:       "Medellin",
		Departure:  time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
		Return:     time.Date(2026, 3, 12, 18, 0, 0, 0, time.UTC),
		Purpose:    "Renovacion de contrato",
		AirTravel:  airTravel,
		ManagerID:  managerID,
	}
	require.NoError(t, f.engine.CreateVisit(context.Background(), visit))
	return visit
}

func singleRolePolicy(role string) RolePolicy {
	return func(*models.Visit) []string { return []string{role} }
}

func rolesPolicy(roles ...string) RolePolicy {
	return func(*models.Visit) []string { return roles }
}

func TestComputeVisitStatus(t *testing.T) {
	a := func(status string) *models.Approval { return &models.Approval{Status: status} }

	tests := []struct {
		name      string
		approvals []*models.Approval
		expected  string
	}{
		{
			name:      "no approvals stays pending",
			approvals: nil,
			expected:  models.VisitPendiente,
		},
		{
			name:      "all pending stays pending",
			approvals: []*models.Approval{a(models.ApprovalPendiente), a(models.ApprovalPendiente)},
			expected:  models.VisitPendiente,
		},
		{
			name:      "one approved one pending stays pending",
			approvals: []*models.Approval{a(models.ApprovalAprobado), a(models.ApprovalPendiente)},
			expected:  models.VisitPendiente,
		},
		{
			name:      "all approved approves",
			approvals: []*models.Approval{a(models.ApprovalAprobado), a(models.ApprovalAprobado), a(models.ApprovalAprobado)},
			expected:  models.VisitAprobado,
		},
		{
			name:      "any rejection rejects",
			approvals: []*models.Approval{a(models.ApprovalAprobado), a(models.ApprovalRechazado)},
			expected:  models.VisitRechazado,
		},
		{
			name:      "rejection beats pending",
			approvals: []*models.Approval{a(models.ApprovalRechazado), a(models.ApprovalPendiente)},
			expected:  models.VisitRechazado,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ComputeVisitStatus(tt.approvals))
		})
	}
}

func TestDefaultRolePolicy(t *testing.T) {
	ground := DefaultRolePolicy(&models.Visit{AirTravel: false})
	assert.ElementsMatch(t,
		[]string{models.ApprovalRoleVicepresidencia, models.ApprovalRoleTransporte}, ground)

	air := DefaultRolePolicy(&models.Visit{AirTravel: true})
	assert.ElementsMatch(t,
		[]string{models.ApprovalRoleVicepresidencia, models.ApprovalRoleTransporte, models.ApprovalRoleTiquetes}, air)
}

func TestCreateVisit_FanOut(t *testing.T) {
	f := newEngineFixture(t, nil)
	manager := f.createUser(t, "gestor@imprecode.co", models.RoleGestor, "")

	visit := f.createVisit(t, manager.ID, true)
	require.NotZero(t, visit.ID)
	assert.Equal(t, models.VisitPendiente, visit.Status)

	approvals, err := f.approvalRepo.ListByVisit(visit.ID)
	require.NoError(t, err)
	require.Len(t, approvals, 3)

	roles := make([]string, 0, len(approvals))
	for _, a := range approvals {
		assert.Equal(t, models.ApprovalPendiente, a.Status)
		assert.Nil(t, a.DecidedAt)
		roles = append(roles, a.Role)
	}
	assert.ElementsMatch(t, []string{
		models.ApprovalRoleVicepresidencia,
		models.ApprovalRoleTiquetes,
		models.ApprovalRoleTransporte,
	}, roles)
}

func TestCreateVisit_Validation(t *testing.T) {
	f := newEngineFixture(t, nil)
	manager := f.createUser(t, "gestor@imprecode.co", models.RoleGestor, "")

	departure := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		visit   *models.Visit
		wantErr error
	}{
		{
			name:    "missing client name",
			visit:   &models.Visit{City: "Cali", Departure: departure, Return: departure, ManagerID: manager.ID},
			wantErr: ErrValidation,
		},
		{
			name: "return before departure",
			visit: &models.Visit{
				ClientName: "Cliente",
				Departure:  departure,
				Return:     departure.Add(-48 * time.Hour),
				ManagerID:  manager.ID,
			},
			wantErr: ErrValidation,
		},
		{
			name:    "missing manager",
			visit:   &models.Visit{ClientName: "Cliente", Departure: departure, Return: departure},
			wantErr: ErrValidation,
		},
		{
			name:    "unknown manager",
			visit:   &models.Visit{ClientName: "Cliente", Departure: departure, Return: departure, ManagerID: 999},
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.engine.CreateVisit(context.Background(), tt.visit)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// Rejected visits must leave no rows behind.
	counts, err := f.visitRepo.CountByStatus()
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestDecide_SingleApprovalFinalizesDirectly(t *testing.T) {
	tests := []struct {
		name       string
		decision   string
		wantStatus string
	}{
		{"approve finalizes as approved", models.ApprovalAprobado, models.VisitAprobado},
		{"reject finalizes as rejected", models.ApprovalRechazado, models.VisitRechazado},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(t, singleRolePolicy(models.ApprovalRoleVicepresidencia))
			manager := f.createUser(t, "gestor@imprecode.co", models.RoleGestor, "")
			visit := f.createVisit(t, manager.ID, false)
			require.Len(t, visit.Approvals, 1)

			result, err := f.engine.Decide(context.Background(), visit.Approvals[0].ID, tt.decision, "revisado")
			require.NoError(t, err)
			require.NoError(t, result.NotificationErr)

			assert.Equal(t, tt.wantStatus, result.Visit.Status)
			assert.Equal(t, tt.decision, result.Approval.Status)
			assert.NotNil(t, result.Approval.DecidedAt)

			stored, err := f.visitRepo.GetByID(visit.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, stored.Status)

			// Exactly one outcome email, to the requesting manager. The
			// single-approver case never triggers the purchasing broadcast.
			require.Equal(t, 1, f.sender.count())
			assert.Equal(t, []string{manager.Email}, f.sender.sent[0].Recipients)
		})
	}
}

func TestDecide_AllMustApprove(t *testing.T) {
	f := newEngineFixture(t, rolesPolicy(models.ApprovalRoleTiquetes, models.ApprovalRoleTransporte))
	manager := f.createUser(t, "gestor@imprecode.co", models.RoleGestor, "")
	visit := f.createVisit(t, manager.ID, true)
	require.Len(t, visit.Approvals, 2)

	first, err := f.engine.Decide(context.Background(), visit.Approvals[0].ID, models.ApprovalAprobado, "")
	require.NoError(t, err)
	assert.Equal(t, models.VisitPendiente, first.Visit.Status)
	assert.Equal(t, 0, f.sender.count())

	second, err := f.engine.Decide(context.Background(), visit.Approvals[1].ID, models.ApprovalAprobado, "")
	require.NoError(t, err)
	assert.Equal(t, models.VisitAprobado, second.Visit.Status)

	// Finalization notifies the manager exactly once.
	require.Equal(t, 1, f.sender.count())
	assert.Equal(t, []string{manager.Email}, f.sender.sent[0].Recipients)
}

func TestDecide_AnyRejectionWins_OrderIndependent(t *testing.T) {
	decide := func(t *testing.T, f *engineFixture, id int64, decision string) *DecisionResult {
		t.Helper()
		result, err := f.engine.Decide(context.Background(), id, decision, "")
		require.NoError(t, err)
		return result
	}

	t.Run("rejection first", func(t *testing.T) {
		f := newEngineFixture(t, rolesPolicy(models.ApprovalRoleTiquetes, models.ApprovalRoleTransporte))
		manager := f.createUser(t, "gestor@imprecode.co", models.RoleGestor, "")
		visit := f.createVisit(t, manager.ID, true)

		result := decide(t, f, visit.Approvals[0].ID, models.ApprovalRechazado)
		assert.Equal(t, models.VisitRechazado, result.Visit.Status)

		// The later approval cannot resurrect the visit.
		result = decide(t, f, visit.Approvals[1].ID, models.ApprovalAprobado)
		assert.Equal(t, models.VisitRechazado, result.Visit.Status)
	})

	t.Run("rejection last", func(t *testing.T) {
		f := newEngineFixture(t, rolesPolicy(models.ApprovalRoleTiquetes, models.ApprovalRoleTransporte))
		manager := f.createUser(t, "gestor@imprecode.co", models.RoleGestor, "")
		visit := f.createVisit(t, manager.ID, true)

		result := decide(t, f, visit.Approvals[0].ID, models.ApprovalAprobado)
		assert.Equal(t, models.VisitPendiente, result.Visit.Status)

		result = decide(t, f, visit.Approvals[1].ID, models.ApprovalRechazado)
		assert.Equal(t, models.VisitRechazado, result.Visit.Status)
	})
}

func TestDecide_InvalidInputs(t *testing.T) {
	f := newEngineFixture(t, singleRolePolicy(models.ApprovalRoleVicepresidencia))
	manager := f.createUser(t, "gestor@imprecode.co", models.RoleGestor, "")
	visit := f.createVisit(t, manager.ID, false)
	approvalID := visit.Approvals[0].ID

	_, err := f.engine.Decide(context.Background(), approvalID, "quizas", "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.engine.Decide(context.Background(), 404, models.ApprovalAprobado, "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.engine.Decide(context.Background(), approvalID, models.ApprovalAprobado, "")
	require.NoError(t, err)

	_, err = f.engine.Decide(context.Background(), approvalID, models.ApprovalRechazado, "")
	assert.ErrorIs(t, err, ErrAlreadyDecided)

	// The failed second decision must not flip the stored row.
	stored, err := f.approvalRepo.GetByID(approvalID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalAprobado, stored.Status)
}

func TestDecide_VicepresidenciaApprovalBroadcastsToPurchasing(t *testing.T) {
	f := newEngineFixture(t, nil)
	manager := f.createUser(t, "gestor@imprecode.co", models.RoleGestor, "")
	compras := f.createUser(t, "compras@imprecode.co", models.RoleAprobador, models.SubtypeCompras)
	suministros := f.createUser(t, "suministros@imprecode.co", models.RoleAprobador, models.SubtypeSuministros)

	visit := f.createVisit(t, manager.ID, true)

	var vpApproval *models.Approval
	for _, a := range visit.Approvals {
		if a.Role == models.ApprovalRoleVicepresidencia {
			vpApproval = a
		}
	}
	require.NotNil(t, vpApproval)

	result, err := f.engine.Decide(context.Background(), vpApproval.ID, models.ApprovalAprobado, "")
	require.NoError(t, err)
	require.NoError(t, result.NotificationErr)

	// The visit is still pending, so the only email is the broadcast that
	// tells purchasing staff their tasks are now actionable.
	assert.Equal(t, models.VisitPendiente, result.Visit.Status)
	require.Equal(t, 1, f.sender.count())
	assert.ElementsMatch(t, []string{compras.Email, suministros.Email}, f.sender.sent[0].Recipients)
}

func TestDecide_VicepresidenciaRejectionSkipsBroadcast(t *testing.T) {
	f := newEngineFixture(t, nil)
	manager := f.createUser(t, "gestor@imprecode.co", models.RoleGestor, "")
	f.createUser(t, "compras@imprecode.co", models.RoleAprobador, models.SubtypeCompras)

	visit := f.createVisit(t, manager.ID, false)

	var vpApproval *models.Approval
	for _, a := range visit.Approvals {
		if a.Role == models.ApprovalRoleVicepresidencia {
			vpApproval = a
		}
	}
	require.NotNil(t, vpApproval)

	result, err := f.engine.Decide(context.Background(), vpApproval.ID, models.ApprovalRechazado, "sin presupuesto")
	require.NoError(t, err)

	// Rejection finalizes the visit: one manager email, no broadcast.
	assert.Equal(t, models.VisitRechazado, result.Visit.Status)
	require.Equal(t, 1, f.sender.count())
	assert.Equal(t, []string{manager.Email}, f.sender.sent[0].Recipients)
}

func TestDecide_NotificationFailureIsNonFatal(t *testing.T) {
	f := newEngineFixture(t, singleRolePolicy(models.ApprovalRoleVicepresidencia))
	f.sender.err = errors.New("smtp: connection refused")

	manager := f.createUser(t, "gestor@imprecode.co", models.RoleGestor, "")
	visit := f.createVisit(t, manager.ID, false)

	result, err := f.engine.Decide(context.Background(), visit.Approvals[0].ID, models.ApprovalAprobado, "")
	require.NoError(t, err)
	assert.Error(t, result.NotificationErr)

	// The decision committed despite the failed email.
	stored, err := f.visitRepo.GetByID(visit.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VisitAprobado, stored.Status)
}

func TestCompleteVisit(t *testing.T) {
	f := newEngineFixture(t, singleRolePolicy(models.ApprovalRoleVicepresidencia))
	manager := f.createUser(t, "gestor@imprecode.co", models.RoleGestor, "")
	other := f.createUser(t, "otro@imprecode.co", models.RoleGestor, "")

	visit := f.createVisit(t, manager.ID, false)
	ctx := context.Background()

	err := f.engine.CompleteVisit(ctx, visit.ID, manager.ID)
	assert.ErrorIs(t, err, ErrValidation, "pending visits cannot be completed")

	_, err = f.engine.Decide(ctx, visit.Approvals[0].ID, models.ApprovalAprobado, "")
	require.NoError(t, err)

	f.engine.now = func() time.Time { return visit.Return.Add(-time.Hour) }
	err = f.engine.CompleteVisit(ctx, visit.ID, manager.ID)
	assert.ErrorIs(t, err, ErrValidation, "visit has not returned yet")

	f.engine.now = func() time.Time { return visit.Return.Add(24 * time.Hour) }

	err = f.engine.CompleteVisit(ctx, visit.ID, other.ID)
	assert.ErrorIs(t, err, ErrValidation, "only the owner can complete")

	err = f.engine.CompleteVisit(ctx, 404, manager.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.engine.CompleteVisit(ctx, visit.ID, manager.ID))

	stored, err := f.visitRepo.GetByID(visit.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VisitCompletado, stored.Status)
}
