package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/loftdocs/loft/pkg/authz"
)

// ownerTables maps each permission scope to the table that records its
// owner. The resolvers only ever ask about these four.
var ownerTables = map[authz.Scope]string{
	authz.ScopeWorkspace: "workspaces",
	authz.ScopeProject:   "projects",
	authz.ScopeSection:   "sections",
	authz.ScopePage:      "pages",
}

// ResourceOwner returns the owner of the scoped resource. A scope without
// an owning table reports not-found, like a missing row.
func (s *Store) ResourceOwner(ctx context.Context, scope authz.Scope, resourceID int64) (int64, bool, error) {
	table, ok := ownerTables[scope]
	if !ok {
		return 0, false, nil
	}

	var ownerID int64
	query := fmt.Sprintf("SELECT owner_id FROM %s WHERE id = $1", table)
	err := s.db.QueryRowContext(ctx, query, resourceID).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	} else if err != nil {
		return 0, false, fmt.Errorf("failed to query %s owner: %w", table, err)
	}
	return ownerID, true, nil
}

// MembershipRole returns the role a user holds on a workspace or project.
func (s *Store) MembershipRole(ctx context.Context, scope authz.Scope, userID, resourceID int64) (int64, bool, error) {
	var query string
	switch scope {
	case authz.ScopeWorkspace:
		query = "SELECT role_id FROM workspace_members WHERE workspace_id = $1 AND user_id = $2"
	case authz.ScopeProject:
		query = "SELECT role_id FROM project_members WHERE project_id = $1 AND user_id = $2"
	default:
		return 0, false, fmt.Errorf("scope %q has no memberships", scope)
	}

	var roleID int64
	err := s.db.QueryRowContext(ctx, query, resourceID, userID).Scan(&roleID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	} else if err != nil {
		return 0, false, fmt.Errorf("failed to query membership role: %w", err)
	}
	return roleID, true, nil
}

// RoleGrants returns the permissions bound to a role, as (name, scope)
// pairs.
func (s *Store) RoleGrants(ctx context.Context, roleID int64) ([]authz.Grant, error) {
	query := `
		SELECT p.name, p.scope
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
	`
	rows, err := s.db.QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query role grants: %w", err)
	}
	defer rows.Close()

	var grants []authz.Grant
	for rows.Next() {
		var g authz.Grant
		var scope string
		if err := rows.Scan(&g.Name, &scope); err != nil {
			return nil, fmt.Errorf("failed to scan role grant: %w", err)
		}
		g.Scope = authz.Scope(scope)
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// DirectGrants returns permissions granted directly to the user on the
// project.
func (s *Store) DirectGrants(ctx context.Context, userID, projectID int64) ([]authz.Grant, error) {
	query := `
		SELECT p.name, p.scope
		FROM project_user_permissions pup
		JOIN permissions p ON p.id = pup.permission_id
		WHERE pup.user_id = $1 AND pup.project_id = $2
	`
	rows, err := s.db.QueryContext(ctx, query, userID, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query direct grants: %w", err)
	}
	defer rows.Close()

	var grants []authz.Grant
	for rows.Next() {
		var g authz.Grant
		var scope string
		if err := rows.Scan(&g.Name, &scope); err != nil {
			return nil, fmt.Errorf("failed to scan direct grant: %w", err)
		}
		g.Scope = authz.Scope(scope)
		grants = append(grants, g)
	}
	return grants, rows.Err()
}
