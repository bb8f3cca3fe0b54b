package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Migration is a single versioned schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the full schema, in order.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					email VARCHAR(255) NOT NULL UNIQUE,
					username VARCHAR(100) NOT NULL UNIQUE,
					full_name VARCHAR(255),
					is_super_admin BOOLEAN NOT NULL DEFAULT FALSE,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					last_login_at TIMESTAMP WITH TIME ZONE
				);

				CREATE INDEX idx_users_email ON users(LOWER(email));
			`,
		},
		{
			Version:     2,
			Description: "Create workspaces and projects",
			SQL: `
				CREATE TABLE IF NOT EXISTS workspaces (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(255) NOT NULL UNIQUE,
					description TEXT,
					owner_id BIGINT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_workspaces_owner_id ON workspaces(owner_id);

				CREATE TABLE IF NOT EXISTS projects (
					id BIGSERIAL PRIMARY KEY,
					workspace_id BIGINT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(255) NOT NULL UNIQUE,
					description TEXT,
					owner_id BIGINT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_projects_workspace_id ON projects(workspace_id);
				CREATE INDEX idx_projects_owner_id ON projects(owner_id);
			`,
		},
		{
			Version:     3,
			Description: "Create sections and pages",
			SQL: `
				CREATE TABLE IF NOT EXISTS sections (
					id BIGSERIAL PRIMARY KEY,
					project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					position INT NOT NULL DEFAULT 0,
					owner_id BIGINT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_sections_project_id ON sections(project_id);

				CREATE TABLE IF NOT EXISTS pages (
					id BIGSERIAL PRIMARY KEY,
					section_id BIGINT NOT NULL REFERENCES sections(id) ON DELETE CASCADE,
					title VARCHAR(500) NOT NULL,
					slug VARCHAR(255) NOT NULL,
					owner_id BIGINT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
					is_public BOOLEAN NOT NULL DEFAULT FALSE,
					access_password VARCHAR(255),
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					UNIQUE(section_id, slug)
				);

				CREATE INDEX idx_pages_section_id ON pages(section_id);
				CREATE INDEX idx_pages_owner_id ON pages(owner_id);
				CREATE INDEX idx_pages_is_public ON pages(is_public) WHERE is_public;
			`,
		},
		{
			Version:     4,
			Description: "Create roles, permissions and bindings",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(100) NOT NULL,
					scope VARCHAR(50) NOT NULL,
					is_system BOOLEAN NOT NULL DEFAULT FALSE,
					owner_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					UNIQUE(name, scope)
				);

				CREATE TABLE IF NOT EXISTS permissions (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(100) NOT NULL,
					scope VARCHAR(50) NOT NULL,
					is_system BOOLEAN NOT NULL DEFAULT FALSE,
					owner_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					UNIQUE(name, scope)
				);

				CREATE TABLE IF NOT EXISTS role_permissions (
					id BIGSERIAL PRIMARY KEY,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					permission_id BIGINT NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
					granted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					UNIQUE(role_id, permission_id)
				);

				CREATE INDEX idx_role_permissions_role_id ON role_permissions(role_id);
			`,
		},
		{
			Version:     5,
			Description: "Create memberships and direct grants",
			SQL: `
				CREATE TABLE IF NOT EXISTS workspace_members (
					id BIGSERIAL PRIMARY KEY,
					workspace_id BIGINT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE RESTRICT,
					invited_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					joined_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					UNIQUE(workspace_id, user_id)
				);

				CREATE INDEX idx_workspace_members_user_id ON workspace_members(user_id);

				CREATE TABLE IF NOT EXISTS project_members (
					id BIGSERIAL PRIMARY KEY,
					project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE RESTRICT,
					joined_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					UNIQUE(project_id, user_id)
				);

				CREATE INDEX idx_project_members_user_id ON project_members(user_id);

				CREATE TABLE IF NOT EXISTS project_user_permissions (
					id BIGSERIAL PRIMARY KEY,
					project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					permission_id BIGINT NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
					granted_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					granted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					UNIQUE(project_id, user_id, permission_id)
				);

				CREATE INDEX idx_project_user_permissions_user ON project_user_permissions(user_id, project_id);
			`,
		},
		{
			Version:     6,
			Description: "Create annotations and notifications",
			SQL: `
				CREATE TABLE IF NOT EXISTS annotations (
					id BIGSERIAL PRIMARY KEY,
					page_id BIGINT NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
					owner_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					body TEXT NOT NULL,
					resolved BOOLEAN NOT NULL DEFAULT FALSE,
					resolved_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					resolved_at TIMESTAMP WITH TIME ZONE,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_annotations_page_id ON annotations(page_id);

				CREATE TABLE IF NOT EXISTS notifications (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					type VARCHAR(50) NOT NULL,
					title VARCHAR(500) NOT NULL,
					message TEXT,
					read_at TIMESTAMP WITH TIME ZONE,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_notifications_user_id ON notifications(user_id, created_at DESC);
			`,
		},
		{
			Version:     7,
			Description: "Create invitations",
			SQL: `
				CREATE TABLE IF NOT EXISTS invitations (
					id BIGSERIAL PRIMARY KEY,
					workspace_id BIGINT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
					project_id BIGINT REFERENCES projects(id) ON DELETE CASCADE,
					email VARCHAR(255) NOT NULL,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE RESTRICT,
					token VARCHAR(100) NOT NULL UNIQUE,
					invited_by BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					invited_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
					accepted_at TIMESTAMP WITH TIME ZONE,
					accepted_by BIGINT REFERENCES users(id) ON DELETE SET NULL
				);

				CREATE INDEX idx_invitations_workspace_id ON invitations(workspace_id);
				CREATE INDEX idx_invitations_pending ON invitations(workspace_id, expires_at) WHERE accepted_at IS NULL;
			`,
		},
		{
			Version:     8,
			Description: "Create api_tokens",
			SQL: `
				CREATE TABLE IF NOT EXISTS api_tokens (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					token_hash VARCHAR(64) NOT NULL UNIQUE,
					name VARCHAR(255),
					created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
					expires_at TIMESTAMP WITH TIME ZONE,
					revoked_at TIMESTAMP WITH TIME ZONE,
					last_used_at TIMESTAMP WITH TIME ZONE
				);

				CREATE INDEX idx_api_tokens_user_id ON api_tokens(user_id);
			`,
		},
	}
}

// RunMigrations executes all pending migrations, each in its own
// transaction, tracked in authz_migrations.
func RunMigrations(ctx context.Context, db *sql.DB, log *logrus.Logger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS authz_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM authz_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}
	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	for _, migration := range Migrations() {
		if applied[migration.Version] {
			continue
		}

		log.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		}).Info("running migration")

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO authz_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
