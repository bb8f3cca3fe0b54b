package guard

import (
	"context"
	"fmt"

	"github.com/loftdocs/loft/pkg/audit"
	"github.com/loftdocs/loft/pkg/authz"
	"github.com/loftdocs/loft/pkg/models"
)

// WorkspaceAccess is the granted context for workspace operations.
type WorkspaceAccess struct {
	User      *models.User
	Workspace *models.Workspace
	// Member is nil for the owner and for super-admins without a
	// membership row.
	Member *models.WorkspaceMember
}

func (g *Guard) loadWorkspace(ctx context.Context, id int64) (*models.Workspace, error) {
	ws, err := g.store.WorkspaceByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load workspace %d: %w", id, err)
	}
	if ws == nil {
		return nil, g.notFound("workspace", id)
	}
	return ws, nil
}

// ProtectWorkspaceAccess grants read access: owner, any member, or
// super-admin.
func (g *Guard) ProtectWorkspaceAccess(ctx context.Context, workspaceID int64) (*WorkspaceAccess, error) {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	ws, err := g.loadWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	if user.IsSuperAdmin {
		g.recordBypass(user, "workspace.access")
		return &WorkspaceAccess{User: user, Workspace: ws}, nil
	}
	if ws.OwnerID == user.ID {
		return &WorkspaceAccess{User: user, Workspace: ws}, nil
	}

	member, err := g.store.WorkspaceMember(ctx, workspaceID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workspace membership: %w", err)
	}
	if member == nil {
		return nil, g.deny(ctx, user, "access", "workspace", workspaceID)
	}
	return &WorkspaceAccess{User: user, Workspace: ws, Member: member}, nil
}

// ProtectWorkspaceOwnership grants only the owner or a super-admin.
func (g *Guard) ProtectWorkspaceOwnership(ctx context.Context, workspaceID int64) (*WorkspaceAccess, error) {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	ws, err := g.loadWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if user.IsSuperAdmin {
		g.recordBypass(user, "workspace.ownership")
		return &WorkspaceAccess{User: user, Workspace: ws}, nil
	}
	if ws.OwnerID != user.ID {
		return nil, g.deny(ctx, user, "own", "workspace", workspaceID)
	}
	return &WorkspaceAccess{User: user, Workspace: ws}, nil
}

// ProtectWorkspaceCreation grants any authenticated user.
func (g *Guard) ProtectWorkspaceCreation(ctx context.Context) (*models.User, error) {
	return g.requireAuth(ctx)
}

// protectWorkspacePermission is the shared path for permission-gated
// workspace operations: super-admin bypass, explicit owner fast path, then
// the decision engine.
func (g *Guard) protectWorkspacePermission(ctx context.Context, workspaceID int64, permission, action string) (*WorkspaceAccess, error) {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	ws, err := g.loadWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if user.IsSuperAdmin {
		g.recordBypass(user, action)
		return &WorkspaceAccess{User: user, Workspace: ws}, nil
	}
	if ws.OwnerID == user.ID && authz.OwnershipImplies(authz.ScopeWorkspace, permission) {
		return &WorkspaceAccess{User: user, Workspace: ws}, nil
	}
	if !g.has(ctx, user.ID, permission, authz.ScopeWorkspace, workspaceID) {
		return nil, g.deny(ctx, user, action, "workspace", workspaceID)
	}
	member, err := g.store.WorkspaceMember(ctx, workspaceID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workspace membership: %w", err)
	}
	return &WorkspaceAccess{User: user, Workspace: ws, Member: member}, nil
}

// ProtectWorkspaceManagement requires manage:workspace.
func (g *Guard) ProtectWorkspaceManagement(ctx context.Context, workspaceID int64) (*WorkspaceAccess, error) {
	return g.protectWorkspacePermission(ctx, workspaceID, authz.PermManageWorkspace, "workspace.manage")
}

// ProtectWorkspaceSettings requires manage:workspace.
func (g *Guard) ProtectWorkspaceSettings(ctx context.Context, workspaceID int64) (*WorkspaceAccess, error) {
	return g.protectWorkspacePermission(ctx, workspaceID, authz.PermManageWorkspace, "workspace.settings")
}

// ProtectWorkspaceDeletion requires delete:workspace.
func (g *Guard) ProtectWorkspaceDeletion(ctx context.Context, workspaceID int64) (*WorkspaceAccess, error) {
	return g.protectWorkspacePermission(ctx, workspaceID, authz.PermDeleteWorkspace, "workspace.delete")
}

// ProtectWorkspaceMemberManagement requires manage:members.
func (g *Guard) ProtectWorkspaceMemberManagement(ctx context.Context, workspaceID int64) (*WorkspaceAccess, error) {
	return g.protectWorkspacePermission(ctx, workspaceID, authz.PermManageMembers, "workspace.members")
}

// ProtectWorkspaceInvitation requires invite:user and enforces the pending
// invitation cap. A workspace at the cap rejects with a domain error, and
// the event is audited for abuse review.
func (g *Guard) ProtectWorkspaceInvitation(ctx context.Context, workspaceID int64) (*WorkspaceAccess, error) {
	access, err := g.protectWorkspacePermission(ctx, workspaceID, authz.PermInviteUser, "workspace.invite")
	if err != nil {
		return nil, err
	}

	pending, err := g.store.PendingInvitationCount(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending invitations: %w", err)
	}
	if pending >= g.invitationLimit {
		event := audit.NewEvent(audit.EventInvitationLimit, audit.StatusDenied)
		event.UserID = &access.User.ID
		event.WorkspaceID = &workspaceID
		event.Message = fmt.Sprintf("workspace %d reached the pending invitation limit (%d)", workspaceID, g.invitationLimit)
		if logErr := g.audit.Log(ctx, event); logErr != nil {
			g.log.WithError(logErr).Warn("failed to write audit event")
		}
		return nil, domainErr(CodeInvitationLimit,
			"workspace has %d pending invitations, limit is %d", pending, g.invitationLimit)
	}
	return access, nil
}
