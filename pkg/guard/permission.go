package guard

import (
	"context"
	"fmt"

	"github.com/loftdocs/loft/pkg/audit"
	"github.com/loftdocs/loft/pkg/authz"
	"github.com/loftdocs/loft/pkg/models"
)

func (g *Guard) loadPermission(ctx context.Context, id int64) (*models.Permission, error) {
	perm, err := g.store.PermissionByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load permission %d: %w", id, err)
	}
	if perm == nil {
		return nil, g.notFound("permission", id)
	}
	return perm, nil
}

func permissionOwnedBy(perm *models.Permission, userID int64) bool {
	return perm.OwnerID != nil && *perm.OwnerID == userID
}

// ProtectPermissionAccess grants any authenticated user.
func (g *Guard) ProtectPermissionAccess(ctx context.Context, permissionID int64) (*models.Permission, error) {
	if _, err := g.requireAuth(ctx); err != nil {
		return nil, err
	}
	return g.loadPermission(ctx, permissionID)
}

// ProtectPermissionList grants any authenticated user. The scope filter is
// validated so unknown scopes fail loudly instead of returning an empty
// list.
func (g *Guard) ProtectPermissionList(ctx context.Context, scope authz.Scope) (*models.User, error) {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if scope != "" && !scope.Valid() {
		return nil, fmt.Errorf("unknown permission scope %q", scope)
	}
	return user, nil
}

// ProtectPermissionCreation grants any authenticated user for custom
// permissions; system permissions are reserved for super-admins.
func (g *Guard) ProtectPermissionCreation(ctx context.Context, system bool) (*models.User, error) {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if system && !user.IsSuperAdmin {
		return nil, g.deny(ctx, user, "create-system", "permission", 0)
	}
	return user, nil
}

// ProtectPermissionUpdate grants the owner or a super-admin; system
// permissions only mutate under super-admin.
func (g *Guard) ProtectPermissionUpdate(ctx context.Context, permissionID int64) (*models.Permission, error) {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	perm, err := g.loadPermission(ctx, permissionID)
	if err != nil {
		return nil, err
	}
	if user.IsSuperAdmin {
		g.recordBypass(user, "permission.update")
		return perm, nil
	}
	if perm.IsSystem || !permissionOwnedBy(perm, user.ID) {
		return nil, g.deny(ctx, user, "update", "permission", permissionID)
	}
	return perm, nil
}

// DeletePermission authorizes and performs permission deletion with the
// same protections as roles: system rows are immutable, referenced rows
// are kept, and an unverifiable usage count refuses the deletion.
func (g *Guard) DeletePermission(ctx context.Context, permissionID int64) error {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return err
	}
	perm, err := g.loadPermission(ctx, permissionID)
	if err != nil {
		return err
	}
	if perm.IsSystem {
		return domainErr(CodeSystemImmutable, "system permission %q cannot be deleted", perm.Name)
	}
	if !user.IsSuperAdmin && !permissionOwnedBy(perm, user.ID) {
		return g.deny(ctx, user, "delete", "permission", permissionID)
	}

	usage, err := g.store.PermissionUsageCount(ctx, permissionID)
	if err != nil {
		g.log.WithError(err).WithField("permission_id", permissionID).Error("permission usage count failed, refusing deletion")
		return domainErr(CodePermissionInUse, "permission usage could not be verified")
	}
	if usage > 0 {
		return domainErr(CodePermissionInUse, "permission %q is referenced by %d bindings", perm.Name, usage)
	}

	if err := g.store.DeletePermission(ctx, permissionID); err != nil {
		return fmt.Errorf("failed to delete permission %d: %w", permissionID, err)
	}

	event := audit.NewEvent(audit.EventPermissionDelete, audit.StatusSuccess)
	event.UserID = &user.ID
	event.ResourceType = "permission"
	event.ResourceID = fmt.Sprintf("%d", permissionID)
	event.Message = fmt.Sprintf("permission %q deleted", perm.Name)
	if logErr := g.audit.Log(ctx, event); logErr != nil {
		g.log.WithError(logErr).Warn("failed to write audit event")
	}
	return nil
}

// ProtectRolePermissionChange authorizes attaching or detaching permissions
// on a role: the role's owner or a super-admin.
func (g *Guard) ProtectRolePermissionChange(ctx context.Context, roleID int64) (*models.Role, error) {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	role, err := g.loadRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if user.IsSuperAdmin {
		g.recordBypass(user, "role.permissions")
		return role, nil
	}
	if role.IsSystem || !roleOwnedBy(role, user.ID) {
		return nil, g.deny(ctx, user, "change-permissions", "role", roleID)
	}
	return role, nil
}

// ProtectDirectGrant authorizes granting or revoking a permission directly
// to a user on a project. Requires project management rights; the caller
// must invalidate the target user's cached decisions afterwards.
func (g *Guard) ProtectDirectGrant(ctx context.Context, projectID, permissionID int64) (*ProjectAccess, error) {
	perm, err := g.loadPermission(ctx, permissionID)
	if err != nil {
		return nil, err
	}
	if perm.Scope != string(authz.ScopeProject) {
		user, authErr := g.requireAuth(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return nil, g.deny(ctx, user, "grant-mismatched-scope", "permission", permissionID)
	}
	access, err := g.ProtectProjectManagement(ctx, projectID)
	if err != nil {
		return nil, err
	}

	event := audit.NewEvent(audit.EventAuthzGrant, audit.StatusSuccess)
	event.UserID = &access.User.ID
	event.ResourceType = "project"
	event.ResourceID = fmt.Sprintf("%d", projectID)
	event.Message = fmt.Sprintf("direct grant of %q authorized on project %d", perm.Name, projectID)
	if logErr := g.audit.Log(ctx, event); logErr != nil {
		g.log.WithError(logErr).Warn("failed to write audit event")
	}
	return access, nil
}
