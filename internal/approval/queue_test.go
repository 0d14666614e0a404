package approval

import (
	"context"
	"testing"

	"github.com/imprecode/gestion-visitas/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRolesFor(t *testing.T) {
	tests := []struct {
		name     string
		user     *models.User
		expected []string
	}{
		{
			name:     "vice-president sees vice-presidency tasks",
			user:     &models.User{Role: models.RoleVicepresidente},
			expected: []string{models.ApprovalRoleVicepresidencia},
		},
		{
			name:     "purchasing approver sees ticket tasks",
			user:     &models.User{Role: models.RoleAprobador, Subtype: models.SubtypeCompras},
			expected: []string{models.ApprovalRoleTiquetes},
		},
		{
			name:     "supply approver sees transport tasks",
			user:     &models.User{Role: models.RoleAprobador, Subtype: models.SubtypeSuministros},
			expected: []string{models.ApprovalRoleTransporte},
		},
		{
			name:     "approver without subtype sees nothing",
			user:     &models.User{Role: models.RoleAprobador},
			expected: nil,
		},
		{
			name:     "manager sees nothing",
			user:     &models.User{Role: models.RoleGestor},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RolesFor(tt.user))
		})
	}
}

func TestProjectForQueue(t *testing.T) {
	vp := func(status string) *models.Approval {
		return &models.Approval{ID: 1, Role: models.ApprovalRoleVicepresidencia, Status: status}
	}
	ticket := &models.Approval{ID: 2, Role: models.ApprovalRoleTiquetes, Status: models.ApprovalPendiente}

	t.Run("vice-presidency task is always visible", func(t *testing.T) {
		projected, visible := ProjectForQueue(vp(models.ApprovalPendiente), nil)
		assert.True(t, visible)
		assert.Equal(t, models.ApprovalPendiente, projected.Status)
	})

	t.Run("ticket task hidden while vice-presidency pending", func(t *testing.T) {
		_, visible := ProjectForQueue(ticket, []*models.Approval{vp(models.ApprovalPendiente), ticket})
		assert.False(t, visible)
	})

	t.Run("ticket task shown rejected when vice-presidency rejected", func(t *testing.T) {
		projected, visible := ProjectForQueue(ticket, []*models.Approval{vp(models.ApprovalRechazado), ticket})
		require.True(t, visible)
		assert.Equal(t, models.ApprovalRechazado, projected.Status)
		// Projection only, the underlying row keeps its stored status.
		assert.Equal(t, models.ApprovalPendiente, ticket.Status)
	})

	t.Run("ticket task visible once vice-presidency approved", func(t *testing.T) {
		projected, visible := ProjectForQueue(ticket, []*models.Approval{vp(models.ApprovalAprobado), ticket})
		require.True(t, visible)
		assert.Same(t, ticket, projected)
	})

	t.Run("ticket task without vice-presidency sibling is visible", func(t *testing.T) {
		projected, visible := ProjectForQueue(ticket, []*models.Approval{ticket})
		require.True(t, visible)
		assert.Same(t, ticket, projected)
	})
}

func TestListForApprover(t *testing.T) {
	f := newEngineFixture(t, nil)
	ctx := context.Background()

	manager := f.createUser(t, "gestor@imprecode.co", models.RoleGestor, "")
	vicepresidente := f.createUser(t, "vp@imprecode.co", models.RoleVicepresidente, "")
	compras := f.createUser(t, "compras@imprecode.co", models.RoleAprobador, models.SubtypeCompras)

	gated := f.createVisit(t, manager.ID, true)
	rejected := f.createVisit(t, manager.ID, true)

	_, err := f.engine.ListForApprover(ctx, manager)
	assert.ErrorIs(t, err, ErrValidation, "managers hold no approval role")

	// The vice-president sees both pending tasks immediately.
	items, err := f.engine.ListForApprover(ctx, vicepresidente)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	// Ticket tasks stay hidden while both vice-presidency tasks are pending.
	items, err = f.engine.ListForApprover(ctx, compras)
	require.NoError(t, err)
	assert.Empty(t, items)

	vpApprovalFor := func(visit *models.Visit) *models.Approval {
		for _, a := range visit.Approvals {
			if a.Role == models.ApprovalRoleVicepresidencia {
				return a
			}
		}
		return nil
	}

	_, err = f.engine.Decide(ctx, vpApprovalFor(gated).ID, models.ApprovalAprobado, "")
	require.NoError(t, err)
	_, err = f.engine.Decide(ctx, vpApprovalFor(rejected).ID, models.ApprovalRechazado, "")
	require.NoError(t, err)

	items, err = f.engine.ListForApprover(ctx, compras)
	require.NoError(t, err)
	require.Len(t, items, 2)

	byVisit := make(map[int64]QueueItem, len(items))
	for _, item := range items {
		byVisit[item.Visit.ID] = item
	}

	// Approved vice-presidency releases the ticket task as pending.
	released := byVisit[gated.ID]
	require.NotNil(t, released.Approval)
	assert.Equal(t, models.ApprovalRoleTiquetes, released.Approval.Role)
	assert.Equal(t, models.ApprovalPendiente, released.Approval.Status)

	// Rejected vice-presidency projects the ticket task as rejected even
	// though the stored row was never touched.
	blocked := byVisit[rejected.ID]
	require.NotNil(t, blocked.Approval)
	assert.Equal(t, models.ApprovalRechazado, blocked.Approval.Status)

	stored, err := f.approvalRepo.ListByVisit(rejected.ID)
	require.NoError(t, err)
	for _, a := range stored {
		if a.Role == models.ApprovalRoleTiquetes {
			assert.Equal(t, models.ApprovalPendiente, a.Status)
		}
	}
}
