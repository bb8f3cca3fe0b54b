package guard

import (
	"context"
	"fmt"

	"github.com/loftdocs/loft/pkg/audit"
	"github.com/loftdocs/loft/pkg/models"
)

// RequireSuperAdmin grants only super-admin accounts. Every admin surface
// funnels through here.
func (g *Guard) RequireSuperAdmin(ctx context.Context) (*models.User, error) {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if !user.IsSuperAdmin {
		return nil, g.deny(ctx, user, "admin", "system", 0)
	}
	return user, nil
}

// ProtectAnalytics guards the usage-analytics dashboard.
func (g *Guard) ProtectAnalytics(ctx context.Context) (*models.User, error) {
	return g.RequireSuperAdmin(ctx)
}

// ProtectAuditLog guards audit log search.
func (g *Guard) ProtectAuditLog(ctx context.Context) (*models.User, error) {
	return g.RequireSuperAdmin(ctx)
}

// ProtectMaintenance guards maintenance operations (sweeps, purges) and
// audits each invocation.
func (g *Guard) ProtectMaintenance(ctx context.Context, operation string) (*models.User, error) {
	user, err := g.RequireSuperAdmin(ctx)
	if err != nil {
		return nil, err
	}
	event := audit.NewEvent(audit.EventAdminMaintenance, audit.StatusSuccess)
	event.UserID = &user.ID
	event.Action = operation
	event.Message = fmt.Sprintf("maintenance operation %q authorized", operation)
	if logErr := g.audit.Log(ctx, event); logErr != nil {
		g.log.WithError(logErr).Warn("failed to write audit event")
	}
	return user, nil
}
