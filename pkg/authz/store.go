package authz

import "context"

// Store is the data access surface the resolvers need. The postgres
// implementation lives in pkg/store; tests substitute an in-memory fake.
//
// Lookup methods report absence through their boolean return rather than an
// error: a missing row is an ordinary deny input, not a failure.
type Store interface {
	// ResourceOwner returns the owner of the resource identified by
	// (scope, resourceID). found is false for unknown scopes and for
	// resources that do not exist.
	ResourceOwner(ctx context.Context, scope Scope, resourceID int64) (ownerID int64, found bool, err error)

	// MembershipRole returns the role a user holds in a workspace or
	// project. A user holds at most one role per scope pair.
	MembershipRole(ctx context.Context, scope Scope, userID, resourceID int64) (roleID int64, found bool, err error)

	// RoleGrants returns every (permission name, scope) pair assigned to
	// the role.
	RoleGrants(ctx context.Context, roleID int64) ([]Grant, error)

	// DirectGrants returns the permissions granted straight to the
	// (user, project) pair, bypassing roles.
	DirectGrants(ctx context.Context, userID, projectID int64) ([]Grant, error)
}
