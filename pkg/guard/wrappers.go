package guard

import (
	"context"
	"fmt"

	"github.com/loftdocs/loft/pkg/authz"
)

// Operation is a guarded unit of work parameterized by request and result
// types. Wrappers compose authorization in front of it.
type Operation[Req, Res any] func(ctx context.Context, req Req) (Res, error)

// RequirePermission wraps an operation with a single permission check. The
// extractor pulls the target resource id out of the request, so one
// wrapper serves every operation shape.
func RequirePermission[Req, Res any](g *Guard, permission string, scope authz.Scope, resourceID func(Req) int64, op Operation[Req, Res]) Operation[Req, Res] {
	var zero Res
	return func(ctx context.Context, req Req) (Res, error) {
		user, err := g.requireAuth(ctx)
		if err != nil {
			return zero, err
		}
		id := resourceID(req)
		if user.IsSuperAdmin {
			g.recordBypass(user, permission)
			return op(ctx, req)
		}
		if !g.has(ctx, user.ID, permission, scope, id) {
			return zero, g.deny(ctx, user, permission, string(scope), id)
		}
		return op(ctx, req)
	}
}

// RequireOwnership wraps an operation with an explicit ownership check
// against the scoped resource.
func RequireOwnership[Req, Res any](g *Guard, scope authz.Scope, resourceID func(Req) int64, op Operation[Req, Res]) Operation[Req, Res] {
	var zero Res
	return func(ctx context.Context, req Req) (Res, error) {
		user, err := g.requireAuth(ctx)
		if err != nil {
			return zero, err
		}
		id := resourceID(req)
		if user.IsSuperAdmin {
			g.recordBypass(user, "ownership")
			return op(ctx, req)
		}
		owner, found, err := g.checker.ResourceOwner(ctx, scope, id)
		if err != nil {
			return zero, fmt.Errorf("failed to resolve owner of %s %d: %w", scope, id, err)
		}
		if !found {
			return zero, g.notFound(string(scope), id)
		}
		if owner != user.ID {
			return zero, g.deny(ctx, user, "own", string(scope), id)
		}
		return op(ctx, req)
	}
}

// RequireWorkspaceMembership wraps an operation with a membership-existence
// check: any member or the owner passes, no permission needed.
func RequireWorkspaceMembership[Req, Res any](g *Guard, workspaceID func(Req) int64, op Operation[Req, Res]) Operation[Req, Res] {
	var zero Res
	return func(ctx context.Context, req Req) (Res, error) {
		if _, err := g.ProtectWorkspaceAccess(ctx, workspaceID(req)); err != nil {
			return zero, err
		}
		return op(ctx, req)
	}
}

// RequireConditions wraps an operation with several permission requirements
// combined under AND or OR.
func RequireConditions[Req, Res any](g *Guard, logic authz.Logic, requirements func(Req) []authz.Requirement, op Operation[Req, Res]) Operation[Req, Res] {
	var zero Res
	return func(ctx context.Context, req Req) (Res, error) {
		user, err := g.requireAuth(ctx)
		if err != nil {
			return zero, err
		}
		if user.IsSuperAdmin {
			g.recordBypass(user, "conditions")
			return op(ctx, req)
		}
		reqs := requirements(req)
		if !g.checker.CheckMultiple(ctx, user.ID, reqs, logic) {
			var id int64
			if len(reqs) > 0 {
				id = reqs[0].ResourceID
			}
			return zero, g.deny(ctx, user, "conditions", "resource", id)
		}
		return op(ctx, req)
	}
}
