package seed

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/loftdocs/loft/pkg/authz"
	"github.com/loftdocs/loft/pkg/models"
	"github.com/loftdocs/loft/pkg/store"
)

// Catalog describes the system roles and permissions installed at startup.
type Catalog struct {
	Permissions []PermissionSpec `yaml:"permissions"`
	Roles       []RoleSpec       `yaml:"roles"`
}

// PermissionSpec is one seeded permission.
type PermissionSpec struct {
	Name  string `yaml:"name"`
	Scope string `yaml:"scope"`
}

// RoleSpec is one seeded role with its permission bindings, named by
// (permission, scope) pairs from the same catalog.
type RoleSpec struct {
	Name        string   `yaml:"name"`
	Scope       string   `yaml:"scope"`
	Permissions []string `yaml:"permissions"`
}

// DefaultCatalog returns the built-in roles and permissions. Admin roles
// hold every permission of their scope, editors hold content permissions,
// viewers hold none (read access flows from membership existence, not
// permissions).
func DefaultCatalog() *Catalog {
	workspacePerms := []string{
		authz.PermManageWorkspace,
		authz.PermDeleteWorkspace,
		authz.PermInviteUser,
		authz.PermManageMembers,
		authz.PermBroadcastNotify,
		authz.PermManageRoles,
	}
	projectPerms := []string{
		authz.PermManageProject,
		authz.PermDeleteProject,
		authz.PermEditProject,
		authz.PermCreateSection,
		authz.PermEditSection,
		authz.PermDeleteSection,
		authz.PermCreatePage,
		authz.PermEditPage,
		authz.PermDeletePage,
		authz.PermSharePage,
		authz.PermModerateAnnotations,
		authz.PermManagePermissions,
	}

	catalog := &Catalog{}
	for _, name := range workspacePerms {
		catalog.Permissions = append(catalog.Permissions, PermissionSpec{Name: name, Scope: string(authz.ScopeWorkspace)})
	}
	for _, name := range projectPerms {
		catalog.Permissions = append(catalog.Permissions, PermissionSpec{Name: name, Scope: string(authz.ScopeProject)})
	}

	catalog.Roles = []RoleSpec{
		{
			Name:        "admin",
			Scope:       string(authz.ScopeWorkspace),
			Permissions: workspacePerms,
		},
		{
			Name:  "member",
			Scope: string(authz.ScopeWorkspace),
			Permissions: []string{
				authz.PermInviteUser,
			},
		},
		{
			Name:        "viewer",
			Scope:       string(authz.ScopeWorkspace),
			Permissions: nil,
		},
		{
			Name:        "admin",
			Scope:       string(authz.ScopeProject),
			Permissions: projectPerms,
		},
		{
			Name:  "editor",
			Scope: string(authz.ScopeProject),
			Permissions: []string{
				authz.PermEditProject,
				authz.PermCreateSection,
				authz.PermEditSection,
				authz.PermCreatePage,
				authz.PermEditPage,
				authz.PermSharePage,
			},
		},
		{
			Name:        "viewer",
			Scope:       string(authz.ScopeProject),
			Permissions: nil,
		},
	}
	return catalog
}

// LoadCatalog reads a catalog from a YAML file. An empty path returns the
// defaults.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed catalog: %w", err)
	}
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse seed catalog: %w", err)
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return &catalog, nil
}

// Validate checks scope names and that role bindings reference declared
// permissions.
func (c *Catalog) Validate() error {
	declared := make(map[string]map[string]bool)
	for _, p := range c.Permissions {
		if !authz.Scope(p.Scope).Valid() {
			return fmt.Errorf("permission %q has unknown scope %q", p.Name, p.Scope)
		}
		if declared[p.Scope] == nil {
			declared[p.Scope] = make(map[string]bool)
		}
		declared[p.Scope][p.Name] = true
	}
	for _, r := range c.Roles {
		if !authz.Scope(r.Scope).Valid() {
			return fmt.Errorf("role %q has unknown scope %q", r.Name, r.Scope)
		}
		for _, perm := range r.Permissions {
			if !declared[r.Scope][perm] {
				return fmt.Errorf("role %q binds undeclared permission %q at scope %q", r.Name, perm, r.Scope)
			}
		}
	}
	return nil
}

// Install creates missing system roles and permissions and their bindings.
// Idempotent: existing rows are kept as-is, so local customizations of
// bindings survive restarts.
func Install(ctx context.Context, s *store.Store, catalog *Catalog, log *logrus.Logger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if catalog == nil {
		catalog = DefaultCatalog()
	}

	permIDs := make(map[string]int64)
	key := func(name, scope string) string { return scope + "/" + name }

	for _, spec := range catalog.Permissions {
		existing, err := s.PermissionByName(ctx, spec.Name, spec.Scope)
		if err != nil {
			return fmt.Errorf("failed to look up permission %q: %w", spec.Name, err)
		}
		if existing != nil {
			permIDs[key(spec.Name, spec.Scope)] = existing.ID
			continue
		}
		perm := &models.Permission{Name: spec.Name, Scope: spec.Scope, IsSystem: true}
		if err := s.CreatePermission(ctx, perm); err != nil {
			return fmt.Errorf("failed to create permission %q: %w", spec.Name, err)
		}
		permIDs[key(spec.Name, spec.Scope)] = perm.ID
		log.WithFields(logrus.Fields{"permission": spec.Name, "scope": spec.Scope}).Info("created system permission")
	}

	for _, spec := range catalog.Roles {
		role, err := s.RoleByName(ctx, spec.Name, spec.Scope)
		if err != nil {
			return fmt.Errorf("failed to look up role %q: %w", spec.Name, err)
		}
		if role == nil {
			role = &models.Role{Name: spec.Name, Scope: spec.Scope, IsSystem: true}
			if err := s.CreateRole(ctx, role); err != nil {
				return fmt.Errorf("failed to create role %q: %w", spec.Name, err)
			}
			log.WithFields(logrus.Fields{"role": spec.Name, "scope": spec.Scope}).Info("created system role")
		}

		for _, permName := range spec.Permissions {
			permID, ok := permIDs[key(permName, spec.Scope)]
			if !ok {
				return fmt.Errorf("role %q references unknown permission %q", spec.Name, permName)
			}
			if err := s.AddRolePermission(ctx, role.ID, permID); err != nil {
				return fmt.Errorf("failed to bind %q to role %q: %w", permName, spec.Name, err)
			}
		}
	}

	return nil
}
