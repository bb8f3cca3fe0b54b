// Package guard enforces access policy at the request boundary, one guard
// surface per resource type.
//
// Each Protect method follows the same shape: resolve the session
// principal (ErrUnauthenticated when absent), resolve the target resource
// and its ownership chain (NotFoundError when a link is missing), then
// authorize. Super-admins bypass authorization here and only here; the
// decision engine in pkg/authz never sees the flag. Denials become
// ForbiddenError and are written to the audit log. Business-rule
// violations (expired invitations, in-use roles, wrong page passwords)
// surface as DomainError, a channel distinct from authorization so clients
// can render the actual rule.
package guard
