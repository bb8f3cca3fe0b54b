// Package models defines the domain entities shared across the Loft
// workspace server: users, workspaces, projects, sections, pages,
// annotations, notifications, invitations, and the RBAC entities (roles,
// permissions, memberships and direct grants).
package models
