package guard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loftdocs/loft/pkg/audit"
	"github.com/loftdocs/loft/pkg/authz"
	"github.com/loftdocs/loft/pkg/models"
	"github.com/loftdocs/loft/pkg/session"
)

type memberKey struct{ resourceID, userID int64 }

// fixture is an in-memory backend implementing both the guard store and the
// decision engine store, so one dataset drives the full evaluation path.
type fixture struct {
	users         map[int64]*models.User
	workspaces    map[int64]*models.Workspace
	projects      map[int64]*models.Project
	sections      map[int64]*models.Section
	pages         map[int64]*models.Page
	annotations   map[int64]*models.Annotation
	notifications map[int64]*models.Notification
	roles         map[int64]*models.Role
	permissions   map[int64]*models.Permission
	invitations   map[int64]*models.Invitation

	wsMembers   map[memberKey]*models.WorkspaceMember
	projMembers map[memberKey]*models.ProjectMember

	roleGrants   map[int64][]authz.Grant
	directGrants map[memberKey][]authz.Grant // key: (projectID, userID)

	pendingInvites map[int64]int
	roleUsage      map[int64]int64
	roleUsageErr   error
	permUsage      map[int64]int64

	acceptedInvitations []int64
	deletedRoles        []int64
	deletedPermissions  []int64
}

func newFixture() *fixture {
	return &fixture{
		users:          map[int64]*models.User{},
		workspaces:     map[int64]*models.Workspace{},
		projects:       map[int64]*models.Project{},
		sections:       map[int64]*models.Section{},
		pages:          map[int64]*models.Page{},
		annotations:    map[int64]*models.Annotation{},
		notifications:  map[int64]*models.Notification{},
		roles:          map[int64]*models.Role{},
		permissions:    map[int64]*models.Permission{},
		invitations:    map[int64]*models.Invitation{},
		wsMembers:      map[memberKey]*models.WorkspaceMember{},
		projMembers:    map[memberKey]*models.ProjectMember{},
		roleGrants:     map[int64][]authz.Grant{},
		directGrants:   map[memberKey][]authz.Grant{},
		pendingInvites: map[int64]int{},
		roleUsage:      map[int64]int64{},
		permUsage:      map[int64]int64{},
	}
}

// guard.Store

func (f *fixture) UserByID(_ context.Context, id int64) (*models.User, error) {
	return f.users[id], nil
}

func (f *fixture) WorkspaceByID(_ context.Context, id int64) (*models.Workspace, error) {
	return f.workspaces[id], nil
}

func (f *fixture) ProjectByID(_ context.Context, id int64) (*models.Project, error) {
	return f.projects[id], nil
}

func (f *fixture) ProjectBySlug(_ context.Context, slug string) (*models.Project, error) {
	for _, p := range f.projects {
		if p.Slug == slug {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fixture) SectionByID(_ context.Context, id int64) (*models.Section, error) {
	return f.sections[id], nil
}

func (f *fixture) PageByID(_ context.Context, id int64) (*models.Page, error) {
	return f.pages[id], nil
}

func (f *fixture) AnnotationByID(_ context.Context, id int64) (*models.Annotation, error) {
	return f.annotations[id], nil
}

func (f *fixture) NotificationByID(_ context.Context, id int64) (*models.Notification, error) {
	return f.notifications[id], nil
}

func (f *fixture) RoleByID(_ context.Context, id int64) (*models.Role, error) {
	return f.roles[id], nil
}

func (f *fixture) PermissionByID(_ context.Context, id int64) (*models.Permission, error) {
	return f.permissions[id], nil
}

func (f *fixture) InvitationByID(_ context.Context, id int64) (*models.Invitation, error) {
	return f.invitations[id], nil
}

func (f *fixture) InvitationByToken(_ context.Context, token string) (*models.Invitation, error) {
	for _, inv := range f.invitations {
		if inv.Token == token {
			return inv, nil
		}
	}
	return nil, nil
}

func (f *fixture) WorkspaceMember(_ context.Context, workspaceID, userID int64) (*models.WorkspaceMember, error) {
	return f.wsMembers[memberKey{workspaceID, userID}], nil
}

func (f *fixture) ProjectMember(_ context.Context, projectID, userID int64) (*models.ProjectMember, error) {
	return f.projMembers[memberKey{projectID, userID}], nil
}

func (f *fixture) PendingInvitationCount(_ context.Context, workspaceID int64) (int, error) {
	return f.pendingInvites[workspaceID], nil
}

func (f *fixture) RoleUsageCount(_ context.Context, roleID int64) (int64, error) {
	if f.roleUsageErr != nil {
		return 0, f.roleUsageErr
	}
	return f.roleUsage[roleID], nil
}

func (f *fixture) PermissionUsageCount(_ context.Context, permissionID int64) (int64, error) {
	return f.permUsage[permissionID], nil
}

func (f *fixture) AcceptInvitation(_ context.Context, invitationID, userID int64) error {
	f.acceptedInvitations = append(f.acceptedInvitations, invitationID)
	now := time.Now()
	if inv, ok := f.invitations[invitationID]; ok {
		inv.AcceptedAt = &now
		inv.AcceptedBy = &userID
	}
	return nil
}

func (f *fixture) DeleteRole(_ context.Context, roleID int64) error {
	f.deletedRoles = append(f.deletedRoles, roleID)
	delete(f.roles, roleID)
	return nil
}

func (f *fixture) DeletePermission(_ context.Context, permissionID int64) error {
	f.deletedPermissions = append(f.deletedPermissions, permissionID)
	delete(f.permissions, permissionID)
	return nil
}

// authz.Store

func (f *fixture) ResourceOwner(_ context.Context, scope authz.Scope, resourceID int64) (int64, bool, error) {
	switch scope {
	case authz.ScopeWorkspace:
		if ws, ok := f.workspaces[resourceID]; ok {
			return ws.OwnerID, true, nil
		}
	case authz.ScopeProject:
		if p, ok := f.projects[resourceID]; ok {
			return p.OwnerID, true, nil
		}
	case authz.ScopeSection:
		if s, ok := f.sections[resourceID]; ok {
			return s.OwnerID, true, nil
		}
	case authz.ScopePage:
		if p, ok := f.pages[resourceID]; ok {
			return p.OwnerID, true, nil
		}
	}
	return 0, false, nil
}

func (f *fixture) MembershipRole(_ context.Context, scope authz.Scope, userID, resourceID int64) (int64, bool, error) {
	switch scope {
	case authz.ScopeWorkspace:
		if m, ok := f.wsMembers[memberKey{resourceID, userID}]; ok {
			return m.RoleID, true, nil
		}
	case authz.ScopeProject:
		if m, ok := f.projMembers[memberKey{resourceID, userID}]; ok {
			return m.RoleID, true, nil
		}
	}
	return 0, false, nil
}

func (f *fixture) RoleGrants(_ context.Context, roleID int64) ([]authz.Grant, error) {
	return f.roleGrants[roleID], nil
}

func (f *fixture) DirectGrants(_ context.Context, userID, projectID int64) ([]authz.Grant, error) {
	return f.directGrants[memberKey{projectID, userID}], nil
}

// recordingAudit captures audit events for assertions.
type recordingAudit struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (r *recordingAudit) Log(_ context.Context, event *audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingAudit) Close() error { return nil }

func (r *recordingAudit) byType(t audit.EventType) []*audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*audit.Event
	for _, e := range r.events {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newTestGuard(f *fixture, sink audit.Logger, opts ...Option) *Guard {
	checker := authz.NewChecker(f, authz.WithLogger(testLogger()))
	all := append([]Option{WithAuditLogger(sink), WithLogger(testLogger())}, opts...)
	return New(f, checker, session.ContextProvider{}, all...)
}

func asUser(user *models.User) context.Context {
	return session.WithUser(context.Background(), user)
}

func activeUser(id int64, email string) *models.User {
	return &models.User{ID: id, Email: email, Username: email, IsActive: true}
}

func superAdmin(id int64) *models.User {
	u := activeUser(id, "root@example.com")
	u.IsSuperAdmin = true
	return u
}

func TestRequireAuthRejectsAnonymous(t *testing.T) {
	g := newTestGuard(newFixture(), audit.NopLogger{})

	_, err := g.ProtectProfile(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRequireAuthRejectsInactiveUser(t *testing.T) {
	g := newTestGuard(newFixture(), audit.NopLogger{})
	user := &models.User{ID: 1, Email: "gone@example.com", IsActive: false}

	_, err := g.ProtectProfile(asUser(user))
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestDenialProducesAuditEvent(t *testing.T) {
	f := newFixture()
	f.workspaces[1] = &models.Workspace{ID: 1, OwnerID: 99}
	stranger := activeUser(7, "stranger@example.com")
	f.users[7] = stranger

	sink := &recordingAudit{}
	g := newTestGuard(f, sink)

	_, err := g.ProtectWorkspaceAccess(asUser(stranger), 1)
	require.Error(t, err)
	assert.True(t, IsForbidden(err))

	denied := sink.byType(audit.EventAuthzDenied)
	require.Len(t, denied, 1)
	assert.Equal(t, audit.StatusDenied, denied[0].Status)
	require.NotNil(t, denied[0].UserID)
	assert.Equal(t, int64(7), *denied[0].UserID)
	assert.Equal(t, "workspace", denied[0].ResourceType)
}

func TestMissingResourceIsNotFoundNotForbidden(t *testing.T) {
	g := newTestGuard(newFixture(), audit.NopLogger{})
	user := activeUser(7, "u@example.com")

	_, err := g.ProtectWorkspaceAccess(asUser(user), 404)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsForbidden(err))
}

func TestSuperAdminBypassesWorkspacePermission(t *testing.T) {
	f := newFixture()
	f.workspaces[1] = &models.Workspace{ID: 1, OwnerID: 99}
	admin := superAdmin(2)

	g := newTestGuard(f, audit.NopLogger{})

	access, err := g.ProtectWorkspaceDeletion(asUser(admin), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), access.Workspace.ID)
}

func TestWorkspaceOwnerPassesOwnershipImpliedPermission(t *testing.T) {
	f := newFixture()
	owner := activeUser(5, "owner@example.com")
	f.users[5] = owner
	f.workspaces[1] = &models.Workspace{ID: 1, OwnerID: 5}

	g := newTestGuard(f, audit.NopLogger{})

	_, err := g.ProtectWorkspaceManagement(asUser(owner), 1)
	assert.NoError(t, err)
}

func TestWorkspaceOwnerDeniedNonImpliedPermission(t *testing.T) {
	// manage:roles is outside the workspace ownership allow-list, so even
	// the owner needs a role carrying it.
	f := newFixture()
	owner := activeUser(5, "owner@example.com")
	f.users[5] = owner
	f.workspaces[1] = &models.Workspace{ID: 1, OwnerID: 5}

	sink := &recordingAudit{}
	g := newTestGuard(f, sink)

	_, err := g.protectWorkspacePermission(asUser(owner), 1, authz.PermManageRoles, "workspace.roles")
	assert.True(t, IsForbidden(err))
}

func TestRoleGrantSatisfiesWorkspacePermission(t *testing.T) {
	f := newFixture()
	member := activeUser(7, "member@example.com")
	f.users[7] = member
	f.workspaces[1] = &models.Workspace{ID: 1, OwnerID: 99}
	f.wsMembers[memberKey{1, 7}] = &models.WorkspaceMember{WorkspaceID: 1, UserID: 7, RoleID: 3}
	f.roleGrants[3] = []authz.Grant{{Name: authz.PermManageMembers, Scope: authz.ScopeWorkspace}}

	g := newTestGuard(f, audit.NopLogger{})

	access, err := g.ProtectWorkspaceMemberManagement(asUser(member), 1)
	require.NoError(t, err)
	require.NotNil(t, access.Member)
	assert.Equal(t, int64(3), access.Member.RoleID)
}

func TestInvitationLimitRejectsWithDomainError(t *testing.T) {
	f := newFixture()
	owner := activeUser(5, "owner@example.com")
	f.users[5] = owner
	f.workspaces[1] = &models.Workspace{ID: 1, OwnerID: 5}
	f.pendingInvites[1] = 2

	sink := &recordingAudit{}
	g := newTestGuard(f, sink, WithInvitationLimit(2))

	_, err := g.ProtectWorkspaceInvitation(asUser(owner), 1)
	assert.True(t, IsDomainError(err, CodeInvitationLimit))
	assert.Len(t, sink.byType(audit.EventInvitationLimit), 1)
}

func TestInvitationUnderLimitPasses(t *testing.T) {
	f := newFixture()
	owner := activeUser(5, "owner@example.com")
	f.users[5] = owner
	f.workspaces[1] = &models.Workspace{ID: 1, OwnerID: 5}
	f.pendingInvites[1] = 1

	g := newTestGuard(f, audit.NopLogger{}, WithInvitationLimit(2))

	_, err := g.ProtectWorkspaceInvitation(asUser(owner), 1)
	assert.NoError(t, err)
}

func TestWorkspaceOwnerHasImplicitProjectAuthority(t *testing.T) {
	f := newFixture()
	wsOwner := activeUser(5, "owner@example.com")
	f.users[5] = wsOwner
	f.workspaces[1] = &models.Workspace{ID: 1, OwnerID: 5}
	f.projects[10] = &models.Project{ID: 10, WorkspaceID: 1, OwnerID: 99}

	g := newTestGuard(f, audit.NopLogger{})

	_, err := g.ProtectProjectManagement(asUser(wsOwner), 10)
	assert.NoError(t, err)
}

func TestDirectGrantSatisfiesProjectPermission(t *testing.T) {
	f := newFixture()
	user := activeUser(7, "granted@example.com")
	f.users[7] = user
	f.workspaces[1] = &models.Workspace{ID: 1, OwnerID: 99}
	f.projects[10] = &models.Project{ID: 10, WorkspaceID: 1, OwnerID: 99}
	f.directGrants[memberKey{10, 7}] = []authz.Grant{{Name: authz.PermEditProject, Scope: authz.ScopeProject}}

	g := newTestGuard(f, audit.NopLogger{})

	_, err := g.ProtectProjectEditor(asUser(user), 10)
	assert.NoError(t, err)
}
