package authz

// ownershipAllowList fixes, per scope, the permission names that owning the
// resource satisfies on its own. A name absent from the list can never be
// granted through ownership — it needs a role or direct grant.
var ownershipAllowList = map[Scope][]string{
	ScopeWorkspace: {
		PermManageWorkspace,
		PermDeleteWorkspace,
		PermInviteUser,
		PermManageMembers,
	},
	ScopeProject: {
		PermManageProject,
		PermDeleteProject,
		PermEditProject,
		PermCreateSection,
	},
	ScopeSection: {
		PermEditSection,
		PermDeleteSection,
		PermCreatePage,
	},
	ScopePage: {
		PermEditPage,
		PermDeletePage,
		PermSharePage,
	},
}

// OwnershipImplies reports whether owning a resource of the given scope
// satisfies the named permission.
func OwnershipImplies(scope Scope, permission string) bool {
	for _, name := range ownershipAllowList[scope] {
		if name == permission {
			return true
		}
	}
	return false
}

// OwnershipPermissions returns a copy of the allow-list entries for a scope.
func OwnershipPermissions(scope Scope) []string {
	names := ownershipAllowList[scope]
	out := make([]string, len(names))
	copy(out, names)
	return out
}
