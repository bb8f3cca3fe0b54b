package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/loftdocs/loft/pkg/models"
)

// PendingInvitationCount counts invitations that are neither accepted nor
// expired. The guard layer uses it to enforce the per-workspace cap.
func (s *Store) PendingInvitationCount(ctx context.Context, workspaceID int64) (int, error) {
	query := `
		SELECT COUNT(*) FROM invitations
		WHERE workspace_id = $1 AND accepted_at IS NULL AND expires_at > NOW()
	`
	var count int
	if err := s.db.QueryRowContext(ctx, query, workspaceID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending invitations: %w", err)
	}
	return count, nil
}

// RoleUsageCount counts references that would dangle if the role were
// deleted: memberships, permission bindings and open invitations.
func (s *Store) RoleUsageCount(ctx context.Context, roleID int64) (int64, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM workspace_members WHERE role_id = $1) +
			(SELECT COUNT(*) FROM project_members WHERE role_id = $1) +
			(SELECT COUNT(*) FROM role_permissions WHERE role_id = $1) +
			(SELECT COUNT(*) FROM invitations WHERE role_id = $1 AND accepted_at IS NULL)
	`
	var count int64
	if err := s.db.QueryRowContext(ctx, query, roleID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count role usage: %w", err)
	}
	return count, nil
}

// PermissionUsageCount counts role bindings and direct grants referencing
// the permission.
func (s *Store) PermissionUsageCount(ctx context.Context, permissionID int64) (int64, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM role_permissions WHERE permission_id = $1) +
			(SELECT COUNT(*) FROM project_user_permissions WHERE permission_id = $1)
	`
	var count int64
	if err := s.db.QueryRowContext(ctx, query, permissionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count permission usage: %w", err)
	}
	return count, nil
}

// AcceptInvitation redeems an invitation and creates the memberships it
// grants, atomically. The row is locked so concurrent accepts of the same
// token cannot both succeed.
func (s *Store) AcceptInvitation(ctx context.Context, invitationID, userID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var workspaceID, roleID int64
	var projectID sql.NullInt64
	var acceptedAt sql.NullTime
	var expiresAt time.Time
	err = tx.QueryRowContext(ctx, `
		SELECT workspace_id, project_id, role_id, accepted_at, expires_at
		FROM invitations WHERE id = $1 FOR UPDATE
	`, invitationID).Scan(&workspaceID, &projectID, &roleID, &acceptedAt, &expiresAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("invitation %d not found", invitationID)
	} else if err != nil {
		return fmt.Errorf("failed to lock invitation: %w", err)
	}
	if acceptedAt.Valid {
		return fmt.Errorf("invitation %d already accepted", invitationID)
	}
	if time.Now().After(expiresAt) {
		return fmt.Errorf("invitation %d has expired", invitationID)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE invitations SET accepted_at = NOW(), accepted_by = $2 WHERE id = $1
	`, invitationID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark invitation accepted: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role_id, invited_by)
		SELECT $1, $2, $3, invited_by FROM invitations WHERE id = $4
		ON CONFLICT (workspace_id, user_id) DO NOTHING
	`, workspaceID, userID, roleID, invitationID)
	if err != nil {
		return fmt.Errorf("failed to create workspace membership: %w", err)
	}

	if projectID.Valid {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO project_members (project_id, user_id, role_id)
			VALUES ($1, $2, $3)
			ON CONFLICT (project_id, user_id) DO NOTHING
		`, projectID.Int64, userID, roleID)
		if err != nil {
			return fmt.Errorf("failed to create project membership: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit invitation accept: %w", err)
	}
	return nil
}

// CreateInvitation inserts a new invitation and fills in its id and
// timestamps.
func (s *Store) CreateInvitation(ctx context.Context, inv *models.Invitation) error {
	query := `
		INSERT INTO invitations (workspace_id, project_id, email, role_id, token,
			invited_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, invited_at
	`
	err := s.db.QueryRowContext(ctx, query,
		inv.WorkspaceID,
		inv.ProjectID,
		inv.Email,
		inv.RoleID,
		inv.Token,
		inv.InvitedBy,
		inv.ExpiresAt,
	).Scan(&inv.ID, &inv.InvitedAt)
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

// DeleteInvitation removes an invitation (cancellation).
func (s *Store) DeleteInvitation(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM invitations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete invitation %d: %w", id, err)
	}
	return nil
}

// DeleteExpiredInvitations removes unaccepted invitations whose expiry has
// passed. Called by the maintenance sweep; returns the row count.
func (s *Store) DeleteExpiredInvitations(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM invitations WHERE accepted_at IS NULL AND expires_at < $1
	`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired invitations: %w", err)
	}
	return result.RowsAffected()
}

// DeleteRole removes a role. The guard layer has already verified it is
// custom and unused.
func (s *Store) DeleteRole(ctx context.Context, roleID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, roleID); err != nil {
		return fmt.Errorf("failed to delete role %d: %w", roleID, err)
	}
	return nil
}

// DeletePermission removes a permission. Guarded upstream like DeleteRole.
func (s *Store) DeletePermission(ctx context.Context, permissionID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM permissions WHERE id = $1`, permissionID); err != nil {
		return fmt.Errorf("failed to delete permission %d: %w", permissionID, err)
	}
	return nil
}

// SetRolePermissions reconciles a role's permission bindings to exactly the
// given set, atomically. Bindings already in the set are left untouched, so
// their granted_at timestamps survive.
func (s *Store) SetRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM role_permissions WHERE role_id = $1 AND permission_id <> ALL($2)
	`, roleID, pq.Array(permissionIDs)); err != nil {
		return fmt.Errorf("failed to remove stale role permissions: %w", err)
	}
	for _, permissionID := range permissionIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)
			ON CONFLICT (role_id, permission_id) DO NOTHING
		`, roleID, permissionID)
		if err != nil {
			return fmt.Errorf("failed to bind permission %d to role %d: %w", permissionID, roleID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit role permission change: %w", err)
	}
	return nil
}

// GrantProjectPermission grants a permission directly to a user on a
// project. Idempotent.
func (s *Store) GrantProjectPermission(ctx context.Context, projectID, userID, permissionID int64, grantedBy *int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_user_permissions (project_id, user_id, permission_id, granted_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (project_id, user_id, permission_id) DO NOTHING
	`, projectID, userID, permissionID, grantedBy)
	if err != nil {
		return fmt.Errorf("failed to grant project permission: %w", err)
	}
	return nil
}

// RevokeProjectPermission removes a direct grant.
func (s *Store) RevokeProjectPermission(ctx context.Context, projectID, userID, permissionID int64) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM project_user_permissions
		WHERE project_id = $1 AND user_id = $2 AND permission_id = $3
	`, projectID, userID, permissionID)
	if err != nil {
		return fmt.Errorf("failed to revoke project permission: %w", err)
	}
	return nil
}

// ListUsers pages through the account directory.
func (s *Store) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, email, username, full_name, is_super_admin, is_active,
		       created_at, updated_at, last_login_at
		FROM users
		ORDER BY id
		LIMIT $1 OFFSET $2
	`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var u models.User
		var fullName sql.NullString
		var lastLogin sql.NullTime
		err := rows.Scan(
			&u.ID, &u.Email, &u.Username, &fullName, &u.IsSuperAdmin, &u.IsActive,
			&u.CreatedAt, &u.UpdatedAt, &lastLogin,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.FullName = fullName.String
		if lastLogin.Valid {
			t := lastLogin.Time
			u.LastLoginAt = &t
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// UpdateUserProfile updates the mutable profile fields.
func (s *Store) UpdateUserProfile(ctx context.Context, id int64, fullName string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET full_name = $2, updated_at = NOW() WHERE id = $1
	`, id, fullName)
	if err != nil {
		return fmt.Errorf("failed to update user %d: %w", id, err)
	}
	return nil
}

// DeleteUser removes an account. Ownership foreign keys are RESTRICT, so
// deletion fails while the user still owns workspaces or content.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete user %d: %w", id, err)
	}
	return nil
}

// UpdatePageSharing flips the public flag and access password.
func (s *Store) UpdatePageSharing(ctx context.Context, id int64, isPublic bool, password string) error {
	var pw interface{}
	if password != "" {
		pw = password
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE pages SET is_public = $2, access_password = $3, updated_at = NOW() WHERE id = $1
	`, id, isPublic, pw)
	if err != nil {
		return fmt.Errorf("failed to update page sharing: %w", err)
	}
	return nil
}

// ResolveAnnotation marks an annotation resolved by the given user.
func (s *Store) ResolveAnnotation(ctx context.Context, id, resolvedBy int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE annotations
		SET resolved = TRUE, resolved_by = $2, resolved_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, id, resolvedBy)
	if err != nil {
		return fmt.Errorf("failed to resolve annotation: %w", err)
	}
	return nil
}

// RoleByName looks up a role by name and scope. Used by the seeder.
func (s *Store) RoleByName(ctx context.Context, name, scope string) (*models.Role, error) {
	query := `
		SELECT id, name, scope, is_system, owner_id, created_at, updated_at
		FROM roles WHERE name = $1 AND scope = $2
	`
	var r models.Role
	var ownerID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, name, scope).Scan(
		&r.ID, &r.Name, &r.Scope, &r.IsSystem, &ownerID, &r.CreatedAt, &r.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to query role by name: %w", err)
	}
	if ownerID.Valid {
		v := ownerID.Int64
		r.OwnerID = &v
	}
	return &r, nil
}

// PermissionByName looks up a permission by name and scope.
func (s *Store) PermissionByName(ctx context.Context, name, scope string) (*models.Permission, error) {
	query := `
		SELECT id, name, scope, is_system, owner_id, created_at
		FROM permissions WHERE name = $1 AND scope = $2
	`
	var p models.Permission
	var ownerID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, name, scope).Scan(
		&p.ID, &p.Name, &p.Scope, &p.IsSystem, &ownerID, &p.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to query permission by name: %w", err)
	}
	if ownerID.Valid {
		v := ownerID.Int64
		p.OwnerID = &v
	}
	return &p, nil
}

// CreateRole inserts a role and fills in its id and timestamps.
func (s *Store) CreateRole(ctx context.Context, role *models.Role) error {
	query := `
		INSERT INTO roles (name, scope, is_system, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, role.Name, role.Scope, role.IsSystem, role.OwnerID).
		Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}
	return nil
}

// CreatePermission inserts a permission and fills in its id.
func (s *Store) CreatePermission(ctx context.Context, perm *models.Permission) error {
	query := `
		INSERT INTO permissions (name, scope, is_system, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := s.db.QueryRowContext(ctx, query, perm.Name, perm.Scope, perm.IsSystem, perm.OwnerID).
		Scan(&perm.ID, &perm.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create permission: %w", err)
	}
	return nil
}

// AddRolePermission binds a single permission to a role. Idempotent; the
// seeder uses it.
func (s *Store) AddRolePermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO role_permissions (role_id, permission_id)
		VALUES ($1, $2)
		ON CONFLICT (role_id, permission_id) DO NOTHING
	`, roleID, permissionID)
	if err != nil {
		return fmt.Errorf("failed to add role permission: %w", err)
	}
	return nil
}

// UpsertWorkspaceMember sets a user's role in a workspace, inserting or
// updating as needed.
func (s *Store) UpsertWorkspaceMember(ctx context.Context, workspaceID, userID, roleID int64, invitedBy *int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workspace_members (workspace_id, user_id, role_id, invited_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (workspace_id, user_id) DO UPDATE SET role_id = EXCLUDED.role_id
	`, workspaceID, userID, roleID, invitedBy)
	if err != nil {
		return fmt.Errorf("failed to upsert workspace member: %w", err)
	}
	return nil
}

// UpsertProjectMember sets a user's role in a project.
func (s *Store) UpsertProjectMember(ctx context.Context, projectID, userID, roleID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_members (project_id, user_id, role_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id, user_id) DO UPDATE SET role_id = EXCLUDED.role_id
	`, projectID, userID, roleID)
	if err != nil {
		return fmt.Errorf("failed to upsert project member: %w", err)
	}
	return nil
}

// RemoveWorkspaceMember drops a user's workspace membership.
func (s *Store) RemoveWorkspaceMember(ctx context.Context, workspaceID, userID int64) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM workspace_members WHERE workspace_id = $1 AND user_id = $2
	`, workspaceID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove workspace member: %w", err)
	}
	return nil
}

// RemoveProjectMember drops a user's project membership.
func (s *Store) RemoveProjectMember(ctx context.Context, projectID, userID int64) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM project_members WHERE project_id = $1 AND user_id = $2
	`, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove project member: %w", err)
	}
	return nil
}
