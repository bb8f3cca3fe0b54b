package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/loftdocs/loft/pkg/models"
)

// Lookup methods return (nil, nil) when the row does not exist; the guard
// layer converts that into a not-found rejection.

func (s *Store) UserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, email, username, full_name, is_super_admin, is_active,
		       created_at, updated_at, last_login_at
		FROM users WHERE id = $1
	`
	var u models.User
	var fullName sql.NullString
	var lastLogin sql.NullTime
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Email, &u.Username, &fullName, &u.IsSuperAdmin, &u.IsActive,
		&u.CreatedAt, &u.UpdatedAt, &lastLogin,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	u.FullName = fullName.String
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return &u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id FROM users WHERE LOWER(email) = LOWER($1)`
	var id int64
	err := s.db.QueryRowContext(ctx, query, email).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to query user by email: %w", err)
	}
	return s.UserByID(ctx, id)
}

// UserByTokenHash resolves an API token hash to its user, honoring expiry
// and revocation. Returns (nil, nil) for unknown or dead tokens.
func (s *Store) UserByTokenHash(ctx context.Context, tokenHash string) (*models.User, error) {
	query := `
		SELECT user_id FROM api_tokens
		WHERE token_hash = $1
		  AND revoked_at IS NULL
		  AND (expires_at IS NULL OR expires_at > NOW())
	`
	var userID int64
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&userID)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to query api token: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE api_tokens SET last_used_at = NOW() WHERE token_hash = $1`, tokenHash); err != nil {
		s.log.WithError(err).Warn("failed to update token last_used_at")
	}
	return s.UserByID(ctx, userID)
}

func (s *Store) WorkspaceByID(ctx context.Context, id int64) (*models.Workspace, error) {
	query := `
		SELECT id, name, slug, description, owner_id, is_active, created_at, updated_at
		FROM workspaces WHERE id = $1
	`
	var w models.Workspace
	var description sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&w.ID, &w.Name, &w.Slug, &description, &w.OwnerID, &w.IsActive,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to query workspace: %w", err)
	}
	w.Description = description.String
	return &w, nil
}

func (s *Store) ProjectByID(ctx context.Context, id int64) (*models.Project, error) {
	query := `
		SELECT id, workspace_id, name, slug, description, owner_id, created_at, updated_at
		FROM projects WHERE id = $1
	`
	return s.scanProject(s.db.QueryRowContext(ctx, query, id))
}

func (s *Store) ProjectBySlug(ctx context.Context, slug string) (*models.Project, error) {
	query := `
		SELECT id, workspace_id, name, slug, description, owner_id, created_at, updated_at
		FROM projects WHERE slug = $1
	`
	return s.scanProject(s.db.QueryRowContext(ctx, query, slug))
}

func (s *Store) scanProject(row *sql.Row) (*models.Project, error) {
	var p models.Project
	var description sql.NullString
	err := row.Scan(
		&p.ID, &p.WorkspaceID, &p.Name, &p.Slug, &description, &p.OwnerID,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to query project: %w", err)
	}
	p.Description = description.String
	return &p, nil
}

func (s *Store) SectionByID(ctx context.Context, id int64) (*models.Section, error) {
	query := `
		SELECT id, project_id, name, position, owner_id, created_at, updated_at
		FROM sections WHERE id = $1
	`
	var sec models.Section
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&sec.ID, &sec.ProjectID, &sec.Name, &sec.Position, &sec.OwnerID,
		&sec.CreatedAt, &sec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to query section: %w", err)
	}
	return &sec, nil
}

func (s *Store) PageByID(ctx context.Context, id int64) (*models.Page, error) {
	query := `
		SELECT id, section_id, title, slug, owner_id, is_public, access_password,
		       created_at, updated_at
		FROM pages WHERE id = $1
	`
	var p models.Page
	var password sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.SectionID, &p.Title, &p.Slug, &p.OwnerID, &p.IsPublic, &password,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to query page: %w", err)
	}
	p.Password = password.String
	return &p, nil
}

func (s *Store) AnnotationByID(ctx context.Context, id int64) (*models.Annotation, error) {
	query := `
		SELECT id, page_id, owner_id, body, resolved, resolved_by, resolved_at,
		       created_at, updated_at
		FROM annotations WHERE id = $1
	`
	var a models.Annotation
	var resolvedBy sql.NullInt64
	var resolvedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.PageID, &a.OwnerID, &a.Body, &a.Resolved, &resolvedBy, &resolvedAt,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to query annotation: %w", err)
	}
	if resolvedBy.Valid {
		v := resolvedBy.Int64
		a.ResolvedBy = &v
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		a.ResolvedAt = &t
	}
	return &a, nil
}

func (s *Store) NotificationByID(ctx context.Context, id int64) (*models.Notification, error) {
	query := `
		SELECT id, user_id, type, title, message, read_at, created_at
		FROM notifications WHERE id = $1
	`
	var n models.Notification
	var message sql.NullString
	var readAt sql.NullTime
	var nt string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&n.ID, &n.UserID, &nt, &n.Title, &message, &readAt, &n.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to query notification: %w", err)
	}
	n.Type = models.NotificationType(nt)
	n.Message = message.String
	if readAt.Valid {
		t := readAt.Time
		n.ReadAt = &t
	}
	return &n, nil
}

func (s *Store) RoleByID(ctx context.Context, id int64) (*models.Role, error) {
	query := `
		SELECT id, name, scope, is_system, owner_id, created_at, updated_at
		FROM roles WHERE id = $1
	`
	var r models.Role
	var ownerID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&r.ID, &r.Name, &r.Scope, &r.IsSystem, &ownerID, &r.CreatedAt, &r.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to query role: %w", err)
	}
	if ownerID.Valid {
		v := ownerID.Int64
		r.OwnerID = &v
	}
	return &r, nil
}

func (s *Store) PermissionByID(ctx context.Context, id int64) (*models.Permission, error) {
	query := `
		SELECT id, name, scope, is_system, owner_id, created_at
		FROM permissions WHERE id = $1
	`
	var p models.Permission
	var ownerID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Scope, &p.IsSystem, &ownerID, &p.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to query permission: %w", err)
	}
	if ownerID.Valid {
		v := ownerID.Int64
		p.OwnerID = &v
	}
	return &p, nil
}

func (s *Store) InvitationByID(ctx context.Context, id int64) (*models.Invitation, error) {
	query := invitationSelect + ` WHERE id = $1`
	return s.scanInvitation(s.db.QueryRowContext(ctx, query, id))
}

func (s *Store) InvitationByToken(ctx context.Context, token string) (*models.Invitation, error) {
	query := invitationSelect + ` WHERE token = $1`
	return s.scanInvitation(s.db.QueryRowContext(ctx, query, token))
}

const invitationSelect = `
	SELECT id, workspace_id, project_id, email, role_id, token, invited_by,
	       invited_at, expires_at, accepted_at, accepted_by
	FROM invitations
`

func (s *Store) scanInvitation(row *sql.Row) (*models.Invitation, error) {
	var inv models.Invitation
	var projectID, acceptedBy sql.NullInt64
	var acceptedAt sql.NullTime
	err := row.Scan(
		&inv.ID, &inv.WorkspaceID, &projectID, &inv.Email, &inv.RoleID, &inv.Token,
		&inv.InvitedBy, &inv.InvitedAt, &inv.ExpiresAt, &acceptedAt, &acceptedBy,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to query invitation: %w", err)
	}
	if projectID.Valid {
		v := projectID.Int64
		inv.ProjectID = &v
	}
	if acceptedAt.Valid {
		t := acceptedAt.Time
		inv.AcceptedAt = &t
	}
	if acceptedBy.Valid {
		v := acceptedBy.Int64
		inv.AcceptedBy = &v
	}
	return &inv, nil
}

// PagesBySection lists a section's pages in slug order.
func (s *Store) PagesBySection(ctx context.Context, sectionID int64) ([]*models.Page, error) {
	query := `
		SELECT id, section_id, title, slug, owner_id, is_public, access_password,
		       created_at, updated_at
		FROM pages WHERE section_id = $1
		ORDER BY slug
	`
	rows, err := s.db.QueryContext(ctx, query, sectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	var pages []*models.Page
	for rows.Next() {
		var p models.Page
		var password sql.NullString
		err := rows.Scan(
			&p.ID, &p.SectionID, &p.Title, &p.Slug, &p.OwnerID, &p.IsPublic, &password,
			&p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		p.Password = password.String
		pages = append(pages, &p)
	}
	return pages, rows.Err()
}

// AnnotationsByPage lists a page's annotations, oldest first.
func (s *Store) AnnotationsByPage(ctx context.Context, pageID int64) ([]*models.Annotation, error) {
	query := `
		SELECT id, page_id, owner_id, body, resolved, resolved_by, resolved_at,
		       created_at, updated_at
		FROM annotations WHERE page_id = $1
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list annotations: %w", err)
	}
	defer rows.Close()

	var annotations []*models.Annotation
	for rows.Next() {
		var a models.Annotation
		var resolvedBy sql.NullInt64
		var resolvedAt sql.NullTime
		err := rows.Scan(
			&a.ID, &a.PageID, &a.OwnerID, &a.Body, &a.Resolved, &resolvedBy, &resolvedAt,
			&a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		if resolvedBy.Valid {
			v := resolvedBy.Int64
			a.ResolvedBy = &v
		}
		if resolvedAt.Valid {
			t := resolvedAt.Time
			a.ResolvedAt = &t
		}
		annotations = append(annotations, &a)
	}
	return annotations, rows.Err()
}

// NotificationsByUser lists a user's inbox, newest first.
func (s *Store) NotificationsByUser(ctx context.Context, userID int64, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, user_id, type, title, message, read_at, created_at
		FROM notifications WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		var n models.Notification
		var nt string
		var message sql.NullString
		var readAt sql.NullTime
		err := rows.Scan(&n.ID, &n.UserID, &nt, &n.Title, &message, &readAt, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Type = models.NotificationType(nt)
		n.Message = message.String
		if readAt.Valid {
			t := readAt.Time
			n.ReadAt = &t
		}
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

// InvitationsByWorkspace lists a workspace's invitations, newest first.
func (s *Store) InvitationsByWorkspace(ctx context.Context, workspaceID int64) ([]*models.Invitation, error) {
	query := invitationSelect + ` WHERE workspace_id = $1 ORDER BY invited_at DESC`
	rows, err := s.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var invitations []*models.Invitation
	for rows.Next() {
		var inv models.Invitation
		var projectID, acceptedBy sql.NullInt64
		var acceptedAt sql.NullTime
		err := rows.Scan(
			&inv.ID, &inv.WorkspaceID, &projectID, &inv.Email, &inv.RoleID, &inv.Token,
			&inv.InvitedBy, &inv.InvitedAt, &inv.ExpiresAt, &acceptedAt, &acceptedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		if projectID.Valid {
			v := projectID.Int64
			inv.ProjectID = &v
		}
		if acceptedAt.Valid {
			t := acceptedAt.Time
			inv.AcceptedAt = &t
		}
		if acceptedBy.Valid {
			v := acceptedBy.Int64
			inv.AcceptedBy = &v
		}
		invitations = append(invitations, &inv)
	}
	return invitations, rows.Err()
}

// MarkNotificationRead stamps a single notification as read.
func (s *Store) MarkNotificationRead(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read_at = NOW() WHERE id = $1 AND read_at IS NULL`, id); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// MarkAllNotificationsRead stamps a user's whole inbox as read.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read_at = NOW() WHERE user_id = $1 AND read_at IS NULL`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return result.RowsAffected()
}

func (s *Store) WorkspaceMember(ctx context.Context, workspaceID, userID int64) (*models.WorkspaceMember, error) {
	query := `
		SELECT id, workspace_id, user_id, role_id, invited_by, joined_at
		FROM workspace_members WHERE workspace_id = $1 AND user_id = $2
	`
	var m models.WorkspaceMember
	var invitedBy sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, workspaceID, userID).Scan(
		&m.ID, &m.WorkspaceID, &m.UserID, &m.RoleID, &invitedBy, &m.JoinedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to query workspace member: %w", err)
	}
	if invitedBy.Valid {
		v := invitedBy.Int64
		m.InvitedBy = &v
	}
	return &m, nil
}

func (s *Store) ProjectMember(ctx context.Context, projectID, userID int64) (*models.ProjectMember, error) {
	query := `
		SELECT id, project_id, user_id, role_id, joined_at
		FROM project_members WHERE project_id = $1 AND user_id = $2
	`
	var m models.ProjectMember
	err := s.db.QueryRowContext(ctx, query, projectID, userID).Scan(
		&m.ID, &m.ProjectID, &m.UserID, &m.RoleID, &m.JoinedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to query project member: %w", err)
	}
	return &m, nil
}
