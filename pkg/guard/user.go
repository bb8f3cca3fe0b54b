package guard

import (
	"context"
	"fmt"

	"github.com/loftdocs/loft/pkg/audit"
	"github.com/loftdocs/loft/pkg/models"
)

func (g *Guard) loadUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := g.store.UserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", id, err)
	}
	if user == nil {
		return nil, g.notFound("user", id)
	}
	return user, nil
}

// ProtectProfile grants the authenticated principal access to their own
// profile.
func (g *Guard) ProtectProfile(ctx context.Context) (*models.User, error) {
	return g.requireAuth(ctx)
}

// ProtectUserList restricts the account directory to super-admins.
func (g *Guard) ProtectUserList(ctx context.Context) (*models.User, error) {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsSuperAdmin {
		return nil, g.deny(ctx, user, "list", "user", 0)
	}
	return user, nil
}

// ProtectUserUpdate grants the target user themselves or a super-admin.
// Returns the target account.
func (g *Guard) ProtectUserUpdate(ctx context.Context, targetID int64) (*models.User, error) {
	actor, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	target, err := g.loadUser(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if actor.ID == targetID {
		return target, nil
	}
	if !actor.IsSuperAdmin {
		return nil, g.deny(ctx, actor, "update", "user", targetID)
	}
	g.recordBypass(actor, "user.update")
	return target, nil
}

// ProtectUserManagement restricts account-level administration
// (deactivation, admin flag changes) to super-admins.
func (g *Guard) ProtectUserManagement(ctx context.Context, targetID int64) (*models.User, error) {
	actor, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if !actor.IsSuperAdmin {
		return nil, g.deny(ctx, actor, "manage", "user", targetID)
	}
	return g.loadUser(ctx, targetID)
}

// ProtectUserDeletion restricts account deletion to super-admins and
// rejects self-deletion so the last admin cannot lock everyone out.
func (g *Guard) ProtectUserDeletion(ctx context.Context, targetID int64) (*models.User, error) {
	actor, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if !actor.IsSuperAdmin {
		return nil, g.deny(ctx, actor, "delete", "user", targetID)
	}
	if actor.ID == targetID {
		return nil, domainErr(CodeSelfDeletion, "administrators cannot delete their own account")
	}
	target, err := g.loadUser(ctx, targetID)
	if err != nil {
		return nil, err
	}

	event := audit.NewEvent(audit.EventAdminUserDelete, audit.StatusSuccess)
	event.UserID = &actor.ID
	event.ResourceType = "user"
	event.ResourceID = fmt.Sprintf("%d", targetID)
	event.Message = fmt.Sprintf("admin %d authorized deletion of user %d", actor.ID, targetID)
	if err := g.audit.Log(ctx, event); err != nil {
		g.log.WithError(err).Warn("failed to write audit event")
	}
	return target, nil
}
