package guard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loftdocs/loft/pkg/audit"
	"github.com/loftdocs/loft/pkg/authz"
	"github.com/loftdocs/loft/pkg/models"
)

func roleFixture() *fixture {
	f := newFixture()
	ownerID := int64(7)
	f.roles[1] = &models.Role{ID: 1, Name: "admin", Scope: "workspace", IsSystem: true}
	f.roles[2] = &models.Role{ID: 2, Name: "reviewers", Scope: "workspace", OwnerID: &ownerID}
	f.roles[3] = &models.Role{ID: 3, Name: "proj-editors", Scope: "project", OwnerID: &ownerID}
	return f
}

func TestDeleteSystemRoleRefused(t *testing.T) {
	f := roleFixture()
	admin := superAdmin(1)

	g := newTestGuard(f, audit.NopLogger{})

	err := g.DeleteRole(asUser(admin), 1)
	assert.True(t, IsDomainError(err, CodeSystemImmutable))
	assert.Empty(t, f.deletedRoles)
}

func TestDeleteSystemPermissionRefused(t *testing.T) {
	// Immutability outranks super-admin bypass: even an unused system
	// permission stays.
	f := roleFixture()
	f.permissions[20] = &models.Permission{ID: 20, Name: "manage:workspace", Scope: "workspace", IsSystem: true}

	g := newTestGuard(f, audit.NopLogger{})

	err := g.DeletePermission(asUser(superAdmin(1)), 20)
	assert.True(t, IsDomainError(err, CodeSystemImmutable))
	assert.Empty(t, f.deletedPermissions)
}

func TestDeleteRoleInUseRefused(t *testing.T) {
	f := roleFixture()
	owner := activeUser(7, "owner@example.com")
	f.users[7] = owner
	f.roleUsage[2] = 3

	g := newTestGuard(f, audit.NopLogger{})

	err := g.DeleteRole(asUser(owner), 2)
	assert.True(t, IsDomainError(err, CodeRoleInUse))
	assert.Empty(t, f.deletedRoles)
}

func TestDeleteRoleUsageCheckFailureRefused(t *testing.T) {
	// An unverifiable usage count refuses deletion rather than risking
	// dangling references.
	f := roleFixture()
	owner := activeUser(7, "owner@example.com")
	f.users[7] = owner
	f.roleUsageErr = errors.New("query timeout")

	g := newTestGuard(f, audit.NopLogger{})

	err := g.DeleteRole(asUser(owner), 2)
	assert.True(t, IsDomainError(err, CodeRoleInUse))
	assert.Empty(t, f.deletedRoles)
}

func TestDeleteUnusedCustomRole(t *testing.T) {
	f := roleFixture()
	owner := activeUser(7, "owner@example.com")
	f.users[7] = owner

	sink := &recordingAudit{}
	g := newTestGuard(f, sink)

	err := g.DeleteRole(asUser(owner), 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, f.deletedRoles)
	assert.Len(t, sink.byType(audit.EventRoleDelete), 1)
}

func TestDeleteRoleDeniedForNonOwner(t *testing.T) {
	f := roleFixture()
	other := activeUser(8, "other@example.com")
	f.users[8] = other

	g := newTestGuard(f, audit.NopLogger{})

	err := g.DeleteRole(asUser(other), 2)
	assert.True(t, IsForbidden(err))
}

func TestRoleAssignmentScopeMismatchDenied(t *testing.T) {
	// A project-scoped role can never be bound to a workspace membership.
	f := roleFixture()
	f.workspaces[1] = &models.Workspace{ID: 1, OwnerID: 7}
	owner := activeUser(7, "owner@example.com")
	f.users[7] = owner

	g := newTestGuard(f, audit.NopLogger{})

	_, err := g.ProtectRoleAssignment(asUser(owner), 3, authz.ScopeWorkspace, 1)
	assert.True(t, IsForbidden(err))
}

func TestRoleAssignmentByWorkspaceOwner(t *testing.T) {
	f := roleFixture()
	f.workspaces[1] = &models.Workspace{ID: 1, OwnerID: 7}
	owner := activeUser(7, "owner@example.com")
	f.users[7] = owner

	sink := &recordingAudit{}
	g := newTestGuard(f, sink)

	role, err := g.ProtectRoleAssignment(asUser(owner), 2, authz.ScopeWorkspace, 1)
	require.NoError(t, err)
	assert.Equal(t, "reviewers", role.Name)
	assert.Len(t, sink.byType(audit.EventAuthzRoleChange), 1)
}

func TestRoleAssignmentRequiresMemberManagement(t *testing.T) {
	f := roleFixture()
	f.workspaces[1] = &models.Workspace{ID: 1, OwnerID: 99}
	plain := activeUser(7, "plain@example.com")
	f.users[7] = plain

	g := newTestGuard(f, audit.NopLogger{})

	_, err := g.ProtectRoleAssignment(asUser(plain), 2, authz.ScopeWorkspace, 1)
	assert.True(t, IsForbidden(err))
}

func TestRoleUpdateSystemRoleSuperAdminOnly(t *testing.T) {
	f := roleFixture()
	owner := activeUser(7, "owner@example.com")
	f.users[7] = owner

	g := newTestGuard(f, audit.NopLogger{})

	_, err := g.ProtectRoleUpdate(asUser(owner), 1)
	assert.True(t, IsForbidden(err))

	_, err = g.ProtectRoleUpdate(asUser(superAdmin(2)), 1)
	assert.NoError(t, err)
}

func TestRoleCreationSystemNeedsSuperAdmin(t *testing.T) {
	f := roleFixture()
	user := activeUser(7, "u@example.com")
	f.users[7] = user

	g := newTestGuard(f, audit.NopLogger{})

	_, err := g.ProtectRoleCreation(asUser(user), true)
	assert.True(t, IsForbidden(err))

	_, err = g.ProtectRoleCreation(asUser(user), false)
	assert.NoError(t, err)
}

func TestDirectGrantRequiresProjectScopedPermission(t *testing.T) {
	f := roleFixture()
	f.workspaces[1] = &models.Workspace{ID: 1, OwnerID: 7}
	f.projects[10] = &models.Project{ID: 10, WorkspaceID: 1, OwnerID: 7}
	f.permissions[20] = &models.Permission{ID: 20, Name: "broadcast:notifications", Scope: "workspace"}
	f.permissions[21] = &models.Permission{ID: 21, Name: "edit:project", Scope: "project"}
	owner := activeUser(7, "owner@example.com")
	f.users[7] = owner

	sink := &recordingAudit{}
	g := newTestGuard(f, sink)

	_, err := g.ProtectDirectGrant(asUser(owner), 10, 20)
	assert.Error(t, err, "workspace-scoped permission must not be grantable per project")

	_, err = g.ProtectDirectGrant(asUser(owner), 10, 21)
	assert.NoError(t, err)
	assert.Len(t, sink.byType(audit.EventAuthzGrant), 1)
}
