package guard

import (
	"context"
	"fmt"

	"github.com/loftdocs/loft/pkg/audit"
	"github.com/loftdocs/loft/pkg/authz"
	"github.com/loftdocs/loft/pkg/models"
)

func (g *Guard) loadRole(ctx context.Context, id int64) (*models.Role, error) {
	role, err := g.store.RoleByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load role %d: %w", id, err)
	}
	if role == nil {
		return nil, g.notFound("role", id)
	}
	return role, nil
}

// roleOwnedBy reports whether the custom role belongs to the user. System
// roles have no owner.
func roleOwnedBy(role *models.Role, userID int64) bool {
	return role.OwnerID != nil && *role.OwnerID == userID
}

// ProtectRoleAccess grants any authenticated user; roles must be readable
// to populate assignment pickers.
func (g *Guard) ProtectRoleAccess(ctx context.Context, roleID int64) (*models.Role, error) {
	if _, err := g.requireAuth(ctx); err != nil {
		return nil, err
	}
	return g.loadRole(ctx, roleID)
}

// ProtectRoleList grants any authenticated user.
func (g *Guard) ProtectRoleList(ctx context.Context) (*models.User, error) {
	return g.requireAuth(ctx)
}

// ProtectRoleCreation grants any authenticated user for custom roles; only
// super-admins may mint system roles.
func (g *Guard) ProtectRoleCreation(ctx context.Context, system bool) (*models.User, error) {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if system && !user.IsSuperAdmin {
		return nil, g.deny(ctx, user, "create-system", "role", 0)
	}
	return user, nil
}

// ProtectRoleUpdate grants the role's owner or a super-admin. System roles
// are only mutable by super-admins.
func (g *Guard) ProtectRoleUpdate(ctx context.Context, roleID int64) (*models.Role, error) {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	role, err := g.loadRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if user.IsSuperAdmin {
		g.recordBypass(user, "role.update")
		return role, nil
	}
	if role.IsSystem || !roleOwnedBy(role, user.ID) {
		return nil, g.deny(ctx, user, "update", "role", roleID)
	}
	return role, nil
}

// DeleteRole authorizes and performs role deletion. System roles are never
// deletable, not even by super-admins: the seeded catalog is the base the
// default policy stands on. A role still referenced by members or permission
// bindings is protected by an in-use check. If the usage count cannot be
// determined the deletion is refused rather than risking dangling
// references.
func (g *Guard) DeleteRole(ctx context.Context, roleID int64) error {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return err
	}
	role, err := g.loadRole(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return domainErr(CodeSystemImmutable, "system role %q cannot be deleted", role.Name)
	}
	if !user.IsSuperAdmin && !roleOwnedBy(role, user.ID) {
		return g.deny(ctx, user, "delete", "role", roleID)
	}

	usage, err := g.store.RoleUsageCount(ctx, roleID)
	if err != nil {
		g.log.WithError(err).WithField("role_id", roleID).Error("role usage count failed, refusing deletion")
		return domainErr(CodeRoleInUse, "role usage could not be verified")
	}
	if usage > 0 {
		return domainErr(CodeRoleInUse, "role %q is assigned to %d members or bindings", role.Name, usage)
	}

	if err := g.store.DeleteRole(ctx, roleID); err != nil {
		return fmt.Errorf("failed to delete role %d: %w", roleID, err)
	}

	event := audit.NewEvent(audit.EventRoleDelete, audit.StatusSuccess)
	event.UserID = &user.ID
	event.ResourceType = "role"
	event.ResourceID = fmt.Sprintf("%d", roleID)
	event.Message = fmt.Sprintf("role %q deleted", role.Name)
	if logErr := g.audit.Log(ctx, event); logErr != nil {
		g.log.WithError(logErr).Warn("failed to write audit event")
	}
	return nil
}

// ProtectRoleAssignment authorizes assigning a role to a member of the
// scoped resource. The role's scope must match the target scope, and the
// actor needs member-management rights there.
func (g *Guard) ProtectRoleAssignment(ctx context.Context, roleID int64, scope authz.Scope, resourceID int64) (*models.Role, error) {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	role, err := g.loadRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role.Scope != string(scope) {
		return nil, g.deny(ctx, user, "assign-mismatched-scope", "role", roleID)
	}

	switch scope {
	case authz.ScopeWorkspace:
		if _, err := g.ProtectWorkspaceMemberManagement(ctx, resourceID); err != nil {
			return nil, err
		}
	case authz.ScopeProject:
		if _, err := g.ProtectProjectMemberManagement(ctx, resourceID); err != nil {
			return nil, err
		}
	default:
		return nil, g.deny(ctx, user, "assign", "role", roleID)
	}

	event := audit.NewEvent(audit.EventAuthzRoleChange, audit.StatusSuccess)
	event.UserID = &user.ID
	event.ResourceType = string(scope)
	event.ResourceID = fmt.Sprintf("%d", resourceID)
	event.Message = fmt.Sprintf("role %q assigned on %s %d", role.Name, scope, resourceID)
	if logErr := g.audit.Log(ctx, event); logErr != nil {
		g.log.WithError(logErr).Warn("failed to write audit event")
	}
	return role, nil
}
