// Package authz implements permission evaluation for the Loft workspace
// server.
//
// A permission check combines three resolvers with short-circuit OR
// semantics, evaluated in a fixed order:
//
//  1. Direct grants: permissions assigned straight to a (user, project)
//     pair, bypassing roles. Project scope only.
//  2. Role grants: the user's membership role in the workspace or project,
//     matched against the role's assigned permissions by name AND scope.
//  3. Ownership: owning the resource satisfies a fixed per-scope allow-list
//     of permission names (see allowlist.go). Ownership never satisfies a
//     name outside the list.
//
// The Checker is the only entry point:
//
//	checker := authz.NewChecker(store, authz.WithLogger(log))
//	if checker.HasPermission(ctx, userID, authz.PermEditPage, authz.ScopePage, pageID) {
//		// allowed
//	}
//
// Resolvers and the Checker never report "no access" through errors. A
// resolver query failure is logged and treated as a deny from that resolver
// (deny-by-default on infrastructure errors). Callers that need to know why
// a check passed use Check, which returns a Decision naming the source.
//
// Batch evaluation (BatchCheck, FilterByPermission) fans out per-item
// checks with bounded concurrency so that large listings cannot exhaust the
// database connection pool.
//
// This package decides; it does not enforce. Converting a deny into an HTTP
// status, auditing it, and short-circuiting super-admins is the guard
// layer's job (pkg/guard).
package authz
