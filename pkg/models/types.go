package models

import "time"

// User represents a registered account.
type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	FullName     string     `json:"full_name,omitempty"`
	IsSuperAdmin bool       `json:"is_super_admin"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// Workspace is the top-level tenant container. Every project, section and
// page hangs off exactly one workspace.
type Workspace struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	OwnerID     int64     `json:"owner_id"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Project groups sections and pages inside a workspace.
type Project struct {
	ID          int64     `json:"id"`
	WorkspaceID int64     `json:"workspace_id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	OwnerID     int64     `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Section is an ordered grouping of pages within a project.
type Section struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	Name      string    `json:"name"`
	Position  int       `json:"position"`
	OwnerID   int64     `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Page is a single document inside a section. Public pages are reachable
// without workspace membership; an optional password gates public access.
// The password is compared verbatim; hashing it is an open product decision.
type Page struct {
	ID        int64     `json:"id"`
	SectionID int64     `json:"section_id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	OwnerID   int64     `json:"owner_id"`
	IsPublic  bool      `json:"is_public"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Annotation is an inline comment attached to a page.
type Annotation struct {
	ID         int64      `json:"id"`
	PageID     int64      `json:"page_id"`
	OwnerID    int64      `json:"owner_id"`
	Body       string     `json:"body"`
	Resolved   bool       `json:"resolved"`
	ResolvedBy *int64     `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NotificationType categorizes notifications. The system, maintenance and
// security types may only be created or broadcast by a super-admin.
type NotificationType string

const (
	NotificationMention     NotificationType = "mention"
	NotificationInvite      NotificationType = "invite"
	NotificationComment     NotificationType = "comment"
	NotificationSystem      NotificationType = "system"
	NotificationMaintenance NotificationType = "maintenance"
	NotificationSecurity    NotificationType = "security"
)

// RestrictedToSuperAdmin reports whether the notification type may only be
// produced by a super-admin, regardless of granted permissions.
func (t NotificationType) RestrictedToSuperAdmin() bool {
	switch t {
	case NotificationSystem, NotificationMaintenance, NotificationSecurity:
		return true
	}
	return false
}

// Notification is a per-user inbox entry.
type Notification struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message,omitempty"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Invitation invites an email address into a workspace (and optionally a
// specific project) with a given role. The token grants a public,
// unauthenticated lookup path.
type Invitation struct {
	ID          int64      `json:"id"`
	WorkspaceID int64      `json:"workspace_id"`
	ProjectID   *int64     `json:"project_id,omitempty"`
	Email       string     `json:"email"`
	RoleID      int64      `json:"role_id"`
	Token       string     `json:"token,omitempty"`
	InvitedBy   int64      `json:"invited_by"`
	InvitedAt   time.Time  `json:"invited_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	AcceptedBy  *int64     `json:"accepted_by,omitempty"`
}

// IsAccepted reports whether the invitation has already been redeemed.
func (i *Invitation) IsAccepted() bool { return i.AcceptedAt != nil }

// IsExpired reports whether the invitation expiry has passed.
func (i *Invitation) IsExpired(now time.Time) bool { return now.After(i.ExpiresAt) }

// Role is a named collection of permissions scoped to workspaces or
// projects. System roles are seeded at startup, owned by nobody, and only a
// super-admin may change them; nobody may delete them.
type Role struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Scope     string    `json:"scope"`
	IsSystem  bool      `json:"is_system"`
	OwnerID   *int64    `json:"owner_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Permission is a grantable capability, named "action:resource"
// (e.g. "edit:page"). Like roles, system permissions have no owner.
type Permission struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Scope     string    `json:"scope"`
	IsSystem  bool      `json:"is_system"`
	OwnerID   *int64    `json:"owner_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RolePermission binds a permission to a role. Unique per (role, permission).
type RolePermission struct {
	ID           int64     `json:"id"`
	RoleID       int64     `json:"role_id"`
	PermissionID int64     `json:"permission_id"`
	GrantedAt    time.Time `json:"granted_at"`
}

// WorkspaceMember records a user's role inside a workspace. A user holds at
// most one role per workspace.
type WorkspaceMember struct {
	ID          int64     `json:"id"`
	WorkspaceID int64     `json:"workspace_id"`
	UserID      int64     `json:"user_id"`
	RoleID      int64     `json:"role_id"`
	InvitedBy   *int64    `json:"invited_by,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
}

// ProjectMember records a user's role inside a project.
type ProjectMember struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	UserID    int64     `json:"user_id"`
	RoleID    int64     `json:"role_id"`
	JoinedAt  time.Time `json:"joined_at"`
}

// ProjectUserPermission grants a permission directly to a (user, project)
// pair, bypassing roles entirely.
type ProjectUserPermission struct {
	ID           int64     `json:"id"`
	ProjectID    int64     `json:"project_id"`
	UserID       int64     `json:"user_id"`
	PermissionID int64     `json:"permission_id"`
	GrantedBy    *int64    `json:"granted_by,omitempty"`
	GrantedAt    time.Time `json:"granted_at"`
}
