package guard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/loftdocs/loft/pkg/audit"
	"github.com/loftdocs/loft/pkg/authz"
	"github.com/loftdocs/loft/pkg/models"
)

func (g *Guard) loadInvitation(ctx context.Context, id int64) (*models.Invitation, error) {
	inv, err := g.store.InvitationByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load invitation %d: %w", id, err)
	}
	if inv == nil {
		return nil, g.notFound("invitation", id)
	}
	return inv, nil
}

// invitationManager reports whether the user may administer the invitation:
// the inviter, anyone with member-management or invite rights on the
// workspace, or a super-admin.
func (g *Guard) invitationManager(ctx context.Context, user *models.User, inv *models.Invitation) bool {
	if user.IsSuperAdmin || inv.InvitedBy == user.ID {
		return true
	}
	return g.checker.CheckMultiple(ctx, user.ID, []authz.Requirement{
		{Permission: authz.PermManageMembers, Scope: authz.ScopeWorkspace, ResourceID: inv.WorkspaceID},
		{Permission: authz.PermInviteUser, Scope: authz.ScopeWorkspace, ResourceID: inv.WorkspaceID},
	}, authz.LogicOR)
}

// ProtectInvitationAccess grants the inviter, workspace managers, or a
// super-admin.
func (g *Guard) ProtectInvitationAccess(ctx context.Context, invitationID int64) (*models.Invitation, error) {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	inv, err := g.loadInvitation(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if !g.invitationManager(ctx, user, inv) {
		return nil, g.deny(ctx, user, "access", "invitation", invitationID)
	}
	return inv, nil
}

// ProtectInvitationList grants workspace managers and the workspace owner.
func (g *Guard) ProtectInvitationList(ctx context.Context, workspaceID int64) (*WorkspaceAccess, error) {
	access, err := g.protectWorkspacePermission(ctx, workspaceID, authz.PermManageMembers, "invitation.list")
	if err == nil {
		return access, nil
	}
	if !IsForbidden(err) {
		return nil, err
	}
	return g.protectWorkspacePermission(ctx, workspaceID, authz.PermInviteUser, "invitation.list")
}

// InvitationByToken is the unauthenticated token lookup used by the accept
// landing page. It validates the invitation is still actionable: a missing
// token is a not-found, an already-accepted or expired one is a domain
// error the client can render.
func (g *Guard) InvitationByToken(ctx context.Context, token string) (*models.Invitation, error) {
	inv, err := g.store.InvitationByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to look up invitation token: %w", err)
	}
	if inv == nil {
		return nil, &NotFoundError{Resource: "invitation", ID: 0}
	}
	if inv.IsAccepted() {
		return nil, domainErr(CodeInvitationAccepted, "invitation has already been accepted")
	}
	if inv.IsExpired(time.Now()) {
		return nil, domainErr(CodeInvitationExpired, "invitation has expired")
	}
	return inv, nil
}

// AcceptInvitation authorizes and performs acceptance. The authenticated
// account's email must equal the invitation's email; holding the token is
// not enough to join under a different account.
func (g *Guard) AcceptInvitation(ctx context.Context, token string) (*models.Invitation, error) {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	inv, err := g.InvitationByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(user.Email, inv.Email) {
		event := audit.NewEvent(audit.EventInvitationAccept, audit.StatusDenied)
		event.UserID = &user.ID
		event.WorkspaceID = &inv.WorkspaceID
		event.Message = "invitation accept rejected: account email does not match"
		if logErr := g.audit.Log(ctx, event); logErr != nil {
			g.log.WithError(logErr).Warn("failed to write audit event")
		}
		return nil, domainErr(CodeInvitationEmail, "invitation was issued to a different email address")
	}

	if err := g.store.AcceptInvitation(ctx, inv.ID, user.ID); err != nil {
		return nil, fmt.Errorf("failed to accept invitation %d: %w", inv.ID, err)
	}
	g.checker.InvalidateUser(ctx, user.ID)

	event := audit.NewEvent(audit.EventInvitationAccept, audit.StatusSuccess)
	event.UserID = &user.ID
	event.WorkspaceID = &inv.WorkspaceID
	event.ResourceType = "invitation"
	event.ResourceID = fmt.Sprintf("%d", inv.ID)
	event.Message = fmt.Sprintf("user %d joined workspace %d by invitation", user.ID, inv.WorkspaceID)
	if logErr := g.audit.Log(ctx, event); logErr != nil {
		g.log.WithError(logErr).Warn("failed to write audit event")
	}
	return inv, nil
}

// ProtectInvitationCancellation grants the inviter, workspace managers, or
// a super-admin.
func (g *Guard) ProtectInvitationCancellation(ctx context.Context, invitationID int64) (*models.Invitation, error) {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	inv, err := g.loadInvitation(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if !g.invitationManager(ctx, user, inv) {
		return nil, g.deny(ctx, user, "cancel", "invitation", invitationID)
	}

	event := audit.NewEvent(audit.EventInvitationRevoke, audit.StatusSuccess)
	event.UserID = &user.ID
	event.WorkspaceID = &inv.WorkspaceID
	event.ResourceType = "invitation"
	event.ResourceID = fmt.Sprintf("%d", invitationID)
	event.Message = fmt.Sprintf("invitation %d cancelled", invitationID)
	if logErr := g.audit.Log(ctx, event); logErr != nil {
		g.log.WithError(logErr).Warn("failed to write audit event")
	}
	return inv, nil
}
