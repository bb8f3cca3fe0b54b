package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/loftdocs/loft/pkg/audit"
	"github.com/loftdocs/loft/pkg/authz"
	"github.com/loftdocs/loft/pkg/models"
	"github.com/loftdocs/loft/pkg/session"
)

// DefaultInvitationLimit caps pending invitations per workspace.
const DefaultInvitationLimit = 50

// DefaultInvitationTTL is how long a new invitation stays acceptable.
const DefaultInvitationTTL = 7 * 24 * time.Hour

// Store provides the resource lookups and transactional mutations guards
// need. Lookup methods return (nil, nil) when the row does not exist;
// errors are reserved for infrastructure failures.
type Store interface {
	UserByID(ctx context.Context, id int64) (*models.User, error)
	WorkspaceByID(ctx context.Context, id int64) (*models.Workspace, error)
	ProjectByID(ctx context.Context, id int64) (*models.Project, error)
	ProjectBySlug(ctx context.Context, slug string) (*models.Project, error)
	SectionByID(ctx context.Context, id int64) (*models.Section, error)
	PageByID(ctx context.Context, id int64) (*models.Page, error)
	AnnotationByID(ctx context.Context, id int64) (*models.Annotation, error)
	NotificationByID(ctx context.Context, id int64) (*models.Notification, error)
	RoleByID(ctx context.Context, id int64) (*models.Role, error)
	PermissionByID(ctx context.Context, id int64) (*models.Permission, error)
	InvitationByID(ctx context.Context, id int64) (*models.Invitation, error)
	InvitationByToken(ctx context.Context, token string) (*models.Invitation, error)

	WorkspaceMember(ctx context.Context, workspaceID, userID int64) (*models.WorkspaceMember, error)
	ProjectMember(ctx context.Context, projectID, userID int64) (*models.ProjectMember, error)

	PendingInvitationCount(ctx context.Context, workspaceID int64) (int, error)
	RoleUsageCount(ctx context.Context, roleID int64) (int64, error)
	PermissionUsageCount(ctx context.Context, permissionID int64) (int64, error)

	AcceptInvitation(ctx context.Context, invitationID, userID int64) error
	DeleteRole(ctx context.Context, roleID int64) error
	DeletePermission(ctx context.Context, permissionID int64) error
}

// Guard enforces access policy at the request boundary. It resolves the
// target resource, runs the decision engine, and converts denials into
// typed errors the transport layer can map to status codes. Super-admin
// bypass lives here, never in the decision engine.
type Guard struct {
	store    Store
	checker  *authz.Checker
	sessions session.Provider
	audit    audit.Logger
	log      *logrus.Logger

	invitationLimit int
	invitationTTL   time.Duration
}

// Option configures a Guard.
type Option func(*Guard)

// WithAuditLogger sets the audit sink for denials and guarded mutations.
func WithAuditLogger(l audit.Logger) Option {
	return func(g *Guard) { g.audit = l }
}

// WithLogger sets the structured logger.
func WithLogger(l *logrus.Logger) Option {
	return func(g *Guard) { g.log = l }
}

// WithInvitationLimit overrides the pending-invitation cap per workspace.
func WithInvitationLimit(n int) Option {
	return func(g *Guard) {
		if n > 0 {
			g.invitationLimit = n
		}
	}
}

// WithInvitationTTL overrides the invitation expiry window.
func WithInvitationTTL(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.invitationTTL = d
		}
	}
}

// InvitationTTL reports the configured invitation expiry window. Callers
// creating invitations stamp ExpiresAt from it.
func (g *Guard) InvitationTTL() time.Duration { return g.invitationTTL }

// New creates a Guard.
func New(store Store, checker *authz.Checker, sessions session.Provider, opts ...Option) *Guard {
	g := &Guard{
		store:           store,
		checker:         checker,
		sessions:        sessions,
		audit:           audit.NopLogger{},
		log:             logrus.StandardLogger(),
		invitationLimit: DefaultInvitationLimit,
		invitationTTL:   DefaultInvitationTTL,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// requireAuth resolves the current principal or rejects with
// ErrUnauthenticated.
func (g *Guard) requireAuth(ctx context.Context) (*models.User, error) {
	user, err := g.sessions.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}
	if user == nil {
		return nil, ErrUnauthenticated
	}
	if !user.IsActive {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

// deny audits the rejection and returns the typed forbidden error.
func (g *Guard) deny(ctx context.Context, user *models.User, action, resource string, resourceID int64) error {
	event := audit.NewEvent(audit.EventAuthzDenied, audit.StatusDenied)
	event.UserID = &user.ID
	event.Action = action
	event.ResourceType = resource
	event.ResourceID = fmt.Sprintf("%d", resourceID)
	event.Message = fmt.Sprintf("denied %s on %s %d", action, resource, resourceID)
	if err := g.audit.Log(ctx, event); err != nil {
		g.log.WithError(err).Warn("failed to write audit event")
	}

	g.log.WithFields(logrus.Fields{
		"user_id":     user.ID,
		"action":      action,
		"resource":    resource,
		"resource_id": resourceID,
	}).Warn("authorization denied")

	return &ForbiddenError{
		UserID:     user.ID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
	}
}

func (g *Guard) notFound(resource string, id int64) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// has asks the decision engine for a single permission.
func (g *Guard) has(ctx context.Context, userID int64, permission string, scope authz.Scope, resourceID int64) bool {
	return g.checker.HasPermission(ctx, userID, permission, scope, resourceID)
}

// hasOnResourceOrProject checks a permission first at the resource's own
// scope (where ownership can satisfy it) and then at the enclosing project
// (where role and direct grants live). Most page and section operations
// resolve through this pair.
func (g *Guard) hasOnResourceOrProject(ctx context.Context, userID int64, permission string, scope authz.Scope, resourceID, projectID int64) bool {
	return g.checker.CheckMultiple(ctx, userID, []authz.Requirement{
		{Permission: permission, Scope: scope, ResourceID: resourceID},
		{Permission: permission, Scope: authz.ScopeProject, ResourceID: projectID},
	}, authz.LogicOR)
}

// recordBypass notes a super-admin bypass at debug level.
func (g *Guard) recordBypass(user *models.User, action string) {
	g.log.WithFields(logrus.Fields{
		"user_id": user.ID,
		"action":  action,
	}).Debug("super-admin bypass")
}

// chain resolution helpers. Each returns NotFoundError when a link in the
// ownership chain is missing, so a page in a deleted section surfaces as
// 404 rather than a denial.

func (g *Guard) projectForSection(ctx context.Context, section *models.Section) (*models.Project, error) {
	project, err := g.store.ProjectByID(ctx, section.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project %d: %w", section.ProjectID, err)
	}
	if project == nil {
		return nil, g.notFound("project", section.ProjectID)
	}
	return project, nil
}

func (g *Guard) workspaceForProject(ctx context.Context, project *models.Project) (*models.Workspace, error) {
	ws, err := g.store.WorkspaceByID(ctx, project.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workspace %d: %w", project.WorkspaceID, err)
	}
	if ws == nil {
		return nil, g.notFound("workspace", project.WorkspaceID)
	}
	return ws, nil
}

// pageChain resolves a page's section and project.
func (g *Guard) pageChain(ctx context.Context, page *models.Page) (*models.Section, *models.Project, error) {
	section, err := g.store.SectionByID(ctx, page.SectionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load section %d: %w", page.SectionID, err)
	}
	if section == nil {
		return nil, nil, g.notFound("section", page.SectionID)
	}
	project, err := g.projectForSection(ctx, section)
	if err != nil {
		return nil, nil, err
	}
	return section, project, nil
}

// isProjectParticipant reports membership in the project or its workspace,
// or ownership of either. Workspace owners carry implicit project
// authority.
func (g *Guard) isProjectParticipant(ctx context.Context, user *models.User, project *models.Project) (bool, error) {
	if project.OwnerID == user.ID {
		return true, nil
	}
	ws, err := g.workspaceForProject(ctx, project)
	if err != nil {
		return false, err
	}
	if ws.OwnerID == user.ID {
		return true, nil
	}
	pm, err := g.store.ProjectMember(ctx, project.ID, user.ID)
	if err != nil {
		return false, fmt.Errorf("failed to load project membership: %w", err)
	}
	if pm != nil {
		return true, nil
	}
	wm, err := g.store.WorkspaceMember(ctx, ws.ID, user.ID)
	if err != nil {
		return false, fmt.Errorf("failed to load workspace membership: %w", err)
	}
	return wm != nil, nil
}
