package authz

import (
	"context"
	"fmt"
)

// The three resolvers below are the leaves of permission evaluation. Each
// answers a single question with (bool, error); the Checker owns the
// deny-on-error policy, so resolvers propagate query failures untouched.

// resolveDirectGrant reports whether the user holds the permission through a
// direct (user, project) grant. Direct grants exist only at project scope;
// every other scope resolves to false by construction.
func (c *Checker) resolveDirectGrant(ctx context.Context, userID int64, permission string, scope Scope, resourceID int64) (bool, error) {
	if scope != ScopeProject {
		return false, nil
	}

	grants, err := c.store.DirectGrants(ctx, userID, resourceID)
	if err != nil {
		return false, fmt.Errorf("direct grants lookup: %w", err)
	}

	for _, g := range grants {
		if g.Name == permission && g.Scope == scope {
			return true, nil
		}
	}
	return false, nil
}

// resolveRoleGrant reports whether the user's membership role in the scope
// carries the permission. Only workspace and project memberships exist.
func (c *Checker) resolveRoleGrant(ctx context.Context, userID int64, permission string, scope Scope, resourceID int64) (bool, error) {
	if scope != ScopeWorkspace && scope != ScopeProject {
		return false, nil
	}

	roleID, found, err := c.store.MembershipRole(ctx, scope, userID, resourceID)
	if err != nil {
		return false, fmt.Errorf("membership lookup: %w", err)
	}
	if !found {
		return false, nil
	}

	grants, err := c.store.RoleGrants(ctx, roleID)
	if err != nil {
		return false, fmt.Errorf("role grants lookup: %w", err)
	}

	for _, g := range grants {
		if g.Name == permission && g.Scope == scope {
			return true, nil
		}
	}
	return false, nil
}

// resolveOwnership reports whether the user owns the resource. Missing
// resources and unknown scopes resolve to false; existence checks belong to
// the guard layer, not here.
func (c *Checker) resolveOwnership(ctx context.Context, userID int64, scope Scope, resourceID int64) (bool, error) {
	ownerID, found, err := c.store.ResourceOwner(ctx, scope, resourceID)
	if err != nil {
		return false, fmt.Errorf("owner lookup: %w", err)
	}
	if !found {
		return false, nil
	}
	return ownerID == userID, nil
}
