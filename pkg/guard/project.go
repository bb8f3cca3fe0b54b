package guard

import (
	"context"
	"fmt"

	"github.com/loftdocs/loft/pkg/authz"
	"github.com/loftdocs/loft/pkg/models"
)

// ProjectAccess is the granted context for project operations.
type ProjectAccess struct {
	User      *models.User
	Project   *models.Project
	Workspace *models.Workspace
}

func (g *Guard) loadProject(ctx context.Context, id int64) (*models.Project, error) {
	project, err := g.store.ProjectByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load project %d: %w", id, err)
	}
	if project == nil {
		return nil, g.notFound("project", id)
	}
	return project, nil
}

// ProtectProjectByID grants read access: project member, workspace member,
// either owner, or super-admin.
func (g *Guard) ProtectProjectByID(ctx context.Context, projectID int64) (*ProjectAccess, error) {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	project, err := g.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return g.grantProjectAccess(ctx, user, project)
}

// ProtectProjectBySlug is the slug-addressed variant of ProtectProjectByID.
func (g *Guard) ProtectProjectBySlug(ctx context.Context, slug string) (*ProjectAccess, error) {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	project, err := g.store.ProjectBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to load project %q: %w", slug, err)
	}
	if project == nil {
		return nil, &NotFoundError{Resource: "project", ID: 0}
	}
	return g.grantProjectAccess(ctx, user, project)
}

func (g *Guard) grantProjectAccess(ctx context.Context, user *models.User, project *models.Project) (*ProjectAccess, error) {
	ws, err := g.workspaceForProject(ctx, project)
	if err != nil {
		return nil, err
	}
	if user.IsSuperAdmin {
		g.recordBypass(user, "project.access")
		return &ProjectAccess{User: user, Project: project, Workspace: ws}, nil
	}
	ok, err := g.isProjectParticipant(ctx, user, project)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, g.deny(ctx, user, "access", "project", project.ID)
	}
	return &ProjectAccess{User: user, Project: project, Workspace: ws}, nil
}

// ProtectProjectOwnership grants the project owner, the workspace owner
// (implicit project authority), or a super-admin.
func (g *Guard) ProtectProjectOwnership(ctx context.Context, projectID int64) (*ProjectAccess, error) {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	project, err := g.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	ws, err := g.workspaceForProject(ctx, project)
	if err != nil {
		return nil, err
	}
	if user.IsSuperAdmin {
		g.recordBypass(user, "project.ownership")
		return &ProjectAccess{User: user, Project: project, Workspace: ws}, nil
	}
	if project.OwnerID != user.ID && ws.OwnerID != user.ID {
		return nil, g.deny(ctx, user, "own", "project", projectID)
	}
	return &ProjectAccess{User: user, Project: project, Workspace: ws}, nil
}

// ProtectProjectCreation grants workspace members and the workspace owner.
func (g *Guard) ProtectProjectCreation(ctx context.Context, workspaceID int64) (*WorkspaceAccess, error) {
	return g.ProtectWorkspaceAccess(ctx, workspaceID)
}

// protectProjectPermission is the shared path for permission-gated project
// operations. The workspace owner passes without consulting the decision
// engine.
func (g *Guard) protectProjectPermission(ctx context.Context, projectID int64, permission, action string) (*ProjectAccess, error) {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	project, err := g.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	ws, err := g.workspaceForProject(ctx, project)
	if err != nil {
		return nil, err
	}
	if user.IsSuperAdmin {
		g.recordBypass(user, action)
		return &ProjectAccess{User: user, Project: project, Workspace: ws}, nil
	}
	if ws.OwnerID == user.ID {
		return &ProjectAccess{User: user, Project: project, Workspace: ws}, nil
	}
	if project.OwnerID == user.ID && authz.OwnershipImplies(authz.ScopeProject, permission) {
		return &ProjectAccess{User: user, Project: project, Workspace: ws}, nil
	}
	if !g.has(ctx, user.ID, permission, authz.ScopeProject, projectID) {
		return nil, g.deny(ctx, user, action, "project", projectID)
	}
	return &ProjectAccess{User: user, Project: project, Workspace: ws}, nil
}

// ProtectProjectEditor requires edit:project.
func (g *Guard) ProtectProjectEditor(ctx context.Context, projectID int64) (*ProjectAccess, error) {
	return g.protectProjectPermission(ctx, projectID, authz.PermEditProject, "project.edit")
}

// ProtectProjectManagement requires manage:project.
func (g *Guard) ProtectProjectManagement(ctx context.Context, projectID int64) (*ProjectAccess, error) {
	return g.protectProjectPermission(ctx, projectID, authz.PermManageProject, "project.manage")
}

// ProtectProjectDeletion requires delete:project.
func (g *Guard) ProtectProjectDeletion(ctx context.Context, projectID int64) (*ProjectAccess, error) {
	return g.protectProjectPermission(ctx, projectID, authz.PermDeleteProject, "project.delete")
}

// ProtectProjectMemberManagement requires manage:project; adding and
// removing project members is a management concern.
func (g *Guard) ProtectProjectMemberManagement(ctx context.Context, projectID int64) (*ProjectAccess, error) {
	return g.protectProjectPermission(ctx, projectID, authz.PermManageProject, "project.members")
}
