package authz

// Scope is the namespace a permission applies within. Roles and direct
// grants exist only at workspace and project scope; section and page scope
// appear solely in the ownership allow-list.
type Scope string

const (
	ScopeWorkspace Scope = "workspace"
	ScopeProject   Scope = "project"
	ScopeSection   Scope = "section"
	ScopePage      Scope = "page"
)

// Valid reports whether s is one of the known scopes.
func (s Scope) Valid() bool {
	switch s {
	case ScopeWorkspace, ScopeProject, ScopeSection, ScopePage:
		return true
	}
	return false
}

// Permission names follow the "action:resource" convention.
const (
	PermManageWorkspace = "manage:workspace"
	PermDeleteWorkspace = "delete:workspace"
	PermInviteUser      = "invite:user"
	PermManageMembers   = "manage:members"

	PermManageProject = "manage:project"
	PermDeleteProject = "delete:project"
	PermEditProject   = "edit:project"
	PermCreateSection = "create:section"

	PermEditSection   = "edit:section"
	PermDeleteSection = "delete:section"
	PermCreatePage    = "create:page"

	PermEditPage   = "edit:page"
	PermDeletePage = "delete:page"
	PermSharePage  = "share:page"

	PermManageRoles         = "manage:roles"
	PermManagePermissions   = "manage:permissions"
	PermModerateAnnotations = "moderate:annotations"
	PermBroadcastNotify     = "broadcast:notifications"
)

// Source identifies which resolver produced an allow decision.
type Source string

const (
	SourceDirect    Source = "direct"
	SourceRole      Source = "role"
	SourceOwnership Source = "ownership"
	SourceNone      Source = "none"
)

// Decision is the outcome of a permission evaluation. Resolvers and the
// checker never signal "no access" through errors; they return a deny
// decision with a reason.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Source  Source `json:"source"`
	Reason  string `json:"reason,omitempty"`
}

// Allow builds an allow decision attributed to a resolver.
func Allow(source Source) Decision {
	return Decision{Allowed: true, Source: source}
}

// Deny builds a deny decision with a human-readable reason.
func Deny(reason string) Decision {
	return Decision{Allowed: false, Source: SourceNone, Reason: reason}
}

// Grant is a (permission name, scope) pair attached to a role or granted
// directly to a user.
type Grant struct {
	Name  string `json:"name"`
	Scope Scope  `json:"scope"`
}

// Requirement names a single permission check against a scoped resource.
type Requirement struct {
	Permission string `json:"permission"`
	Scope      Scope  `json:"scope"`
	ResourceID int64  `json:"resource_id"`
}

// Logic selects how multiple requirements combine.
type Logic string

const (
	LogicAND Logic = "AND"
	LogicOR  Logic = "OR"
)

// PermissionSet is the enumeration result of UserPermissions, grouped by
// the resolver that contributed each name. The same name may appear under
// several sources; All deduplicates.
type PermissionSet struct {
	Direct    map[string]struct{} `json:"direct"`
	Role      map[string]struct{} `json:"role"`
	Ownership map[string]struct{} `json:"ownership"`
}

func newPermissionSet() *PermissionSet {
	return &PermissionSet{
		Direct:    make(map[string]struct{}),
		Role:      make(map[string]struct{}),
		Ownership: make(map[string]struct{}),
	}
}

// Has reports whether any source contributed the named permission.
func (ps *PermissionSet) Has(name string) bool {
	if _, ok := ps.Direct[name]; ok {
		return true
	}
	if _, ok := ps.Role[name]; ok {
		return true
	}
	_, ok := ps.Ownership[name]
	return ok
}

// All returns the deduplicated union of every source's contribution.
func (ps *PermissionSet) All() []string {
	union := make(map[string]struct{}, len(ps.Direct)+len(ps.Role)+len(ps.Ownership))
	for name := range ps.Direct {
		union[name] = struct{}{}
	}
	for name := range ps.Role {
		union[name] = struct{}{}
	}
	for name := range ps.Ownership {
		union[name] = struct{}{}
	}
	names := make([]string, 0, len(union))
	for name := range union {
		names = append(names, name)
	}
	return names
}
