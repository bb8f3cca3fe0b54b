package guard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loftdocs/loft/pkg/audit"
	"github.com/loftdocs/loft/pkg/authz"
	"github.com/loftdocs/loft/pkg/models"
)

type renameRequest struct {
	ProjectID int64
	Name      string
}

func TestRequirePermissionWrapper(t *testing.T) {
	f := newFixture()
	f.workspaces[1] = &models.Workspace{ID: 1, OwnerID: 99}
	f.projects[10] = &models.Project{ID: 10, WorkspaceID: 1, OwnerID: 99}
	editor := activeUser(7, "editor@example.com")
	f.users[7] = editor
	f.directGrants[memberKey{10, 7}] = []authz.Grant{{Name: authz.PermEditProject, Scope: authz.ScopeProject}}

	g := newTestGuard(f, audit.NopLogger{})

	var executed bool
	op := RequirePermission(g, authz.PermEditProject, authz.ScopeProject,
		func(r renameRequest) int64 { return r.ProjectID },
		func(ctx context.Context, r renameRequest) (string, error) {
			executed = true
			return r.Name, nil
		})

	out, err := op(asUser(editor), renameRequest{ProjectID: 10, Name: "renamed"})
	require.NoError(t, err)
	assert.True(t, executed)
	assert.Equal(t, "renamed", out)

	executed = false
	_, err = op(asUser(editor), renameRequest{ProjectID: 11, Name: "other"})
	assert.True(t, IsForbidden(err))
	assert.False(t, executed, "denied operations must not run")
}

func TestRequirePermissionWrapperUnauthenticated(t *testing.T) {
	g := newTestGuard(newFixture(), audit.NopLogger{})

	op := RequirePermission(g, authz.PermEditProject, authz.ScopeProject,
		func(id int64) int64 { return id },
		func(ctx context.Context, id int64) (int64, error) { return id, nil })

	_, err := op(context.Background(), 10)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRequireOwnershipWrapper(t *testing.T) {
	f := newFixture()
	f.pages[30] = &models.Page{ID: 30, SectionID: 20, OwnerID: 7}
	owner := activeUser(7, "owner@example.com")
	stranger := activeUser(8, "stranger@example.com")
	f.users[7] = owner
	f.users[8] = stranger

	g := newTestGuard(f, audit.NopLogger{})

	op := RequireOwnership(g, authz.ScopePage,
		func(id int64) int64 { return id },
		func(ctx context.Context, id int64) (bool, error) { return true, nil })

	ok, err := op(asUser(owner), 30)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = op(asUser(stranger), 30)
	assert.True(t, IsForbidden(err))

	_, err = op(asUser(owner), 404)
	assert.True(t, IsNotFound(err))
}

func TestRequireOwnershipSuperAdminBypass(t *testing.T) {
	f := newFixture()
	f.pages[30] = &models.Page{ID: 30, SectionID: 20, OwnerID: 7}

	g := newTestGuard(f, audit.NopLogger{})

	op := RequireOwnership(g, authz.ScopePage,
		func(id int64) int64 { return id },
		func(ctx context.Context, id int64) (bool, error) { return true, nil })

	ok, err := op(asUser(superAdmin(9)), 30)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRequireConditionsWrapperOR(t *testing.T) {
	f := newFixture()
	f.workspaces[1] = &models.Workspace{ID: 1, OwnerID: 99}
	f.projects[10] = &models.Project{ID: 10, WorkspaceID: 1, OwnerID: 99}
	user := activeUser(7, "u@example.com")
	f.users[7] = user
	f.directGrants[memberKey{10, 7}] = []authz.Grant{{Name: authz.PermEditProject, Scope: authz.ScopeProject}}

	g := newTestGuard(f, audit.NopLogger{})

	op := RequireConditions(g, authz.LogicOR,
		func(projectID int64) []authz.Requirement {
			return []authz.Requirement{
				{Permission: authz.PermManageProject, Scope: authz.ScopeProject, ResourceID: projectID},
				{Permission: authz.PermEditProject, Scope: authz.ScopeProject, ResourceID: projectID},
			}
		},
		func(ctx context.Context, projectID int64) (int64, error) { return projectID, nil })

	out, err := op(asUser(user), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), out)

	_, err = op(asUser(user), 11)
	assert.True(t, IsForbidden(err))
}

func TestRequireWorkspaceMembershipWrapper(t *testing.T) {
	f := newFixture()
	f.workspaces[1] = &models.Workspace{ID: 1, OwnerID: 99}
	member := activeUser(7, "m@example.com")
	stranger := activeUser(8, "s@example.com")
	f.users[7] = member
	f.users[8] = stranger
	f.wsMembers[memberKey{1, 7}] = &models.WorkspaceMember{WorkspaceID: 1, UserID: 7, RoleID: 2}

	g := newTestGuard(f, audit.NopLogger{})

	op := RequireWorkspaceMembership(g,
		func(id int64) int64 { return id },
		func(ctx context.Context, id int64) (string, error) { return "ok", nil })

	out, err := op(asUser(member), 1)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	_, err = op(asUser(stranger), 1)
	assert.True(t, IsForbidden(err))
}
