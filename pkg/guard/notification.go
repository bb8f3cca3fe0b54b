package guard

import (
	"context"
	"fmt"

	"github.com/loftdocs/loft/pkg/audit"
	"github.com/loftdocs/loft/pkg/authz"
	"github.com/loftdocs/loft/pkg/models"
)

func (g *Guard) loadNotification(ctx context.Context, id int64) (*models.Notification, error) {
	n, err := g.store.NotificationByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load notification %d: %w", id, err)
	}
	if n == nil {
		return nil, g.notFound("notification", id)
	}
	return n, nil
}

// ProtectNotificationAccess grants only the recipient or a super-admin.
// Notifications are strictly private to their recipient.
func (g *Guard) ProtectNotificationAccess(ctx context.Context, notificationID int64) (*models.Notification, error) {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	n, err := g.loadNotification(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if user.IsSuperAdmin {
		g.recordBypass(user, "notification.access")
		return n, nil
	}
	if n.UserID != user.ID {
		return nil, g.deny(ctx, user, "access", "notification", notificationID)
	}
	return n, nil
}

// ProtectNotificationUpdate covers marking read/unread: recipient only.
func (g *Guard) ProtectNotificationUpdate(ctx context.Context, notificationID int64) (*models.Notification, error) {
	return g.ProtectNotificationAccess(ctx, notificationID)
}

// ProtectNotificationDeletion covers dismissal: recipient only.
func (g *Guard) ProtectNotificationDeletion(ctx context.Context, notificationID int64) (*models.Notification, error) {
	return g.ProtectNotificationAccess(ctx, notificationID)
}

// ProtectNotificationList grants the authenticated user their own inbox.
func (g *Guard) ProtectNotificationList(ctx context.Context) (*models.User, error) {
	return g.requireAuth(ctx)
}

// ProtectNotificationBulkOps covers mark-all-read and clear-all on the
// caller's own inbox.
func (g *Guard) ProtectNotificationBulkOps(ctx context.Context) (*models.User, error) {
	return g.requireAuth(ctx)
}

// ProtectNotificationCreation authorizes creating a notification for
// another user. Restricted types (system, maintenance, security) require a
// super-admin; everything else requires broadcast rights on the workspace
// the notification relates to, or targets the caller themselves.
func (g *Guard) ProtectNotificationCreation(ctx context.Context, targetUserID int64, nt models.NotificationType, workspaceID int64) (*models.User, error) {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if nt.RestrictedToSuperAdmin() {
		if !user.IsSuperAdmin {
			return nil, g.deny(ctx, user, fmt.Sprintf("create-%s", nt), "notification", 0)
		}
		return user, nil
	}
	if targetUserID == user.ID || user.IsSuperAdmin {
		return user, nil
	}
	if !g.has(ctx, user.ID, authz.PermBroadcastNotify, authz.ScopeWorkspace, workspaceID) {
		return nil, g.deny(ctx, user, "create", "notification", 0)
	}
	return user, nil
}

// ProtectNotificationBroadcast authorizes sending a notification to every
// member of a workspace. Restricted types remain super-admin only even for
// holders of the broadcast permission.
func (g *Guard) ProtectNotificationBroadcast(ctx context.Context, workspaceID int64, nt models.NotificationType) (*models.User, error) {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if nt.RestrictedToSuperAdmin() {
		if !user.IsSuperAdmin {
			return nil, g.deny(ctx, user, fmt.Sprintf("broadcast-%s", nt), "workspace", workspaceID)
		}
	} else if !user.IsSuperAdmin {
		ws, err := g.loadWorkspace(ctx, workspaceID)
		if err != nil {
			return nil, err
		}
		if ws.OwnerID != user.ID && !g.has(ctx, user.ID, authz.PermBroadcastNotify, authz.ScopeWorkspace, workspaceID) {
			return nil, g.deny(ctx, user, "broadcast", "workspace", workspaceID)
		}
	}

	event := audit.NewEvent(audit.EventAdminBroadcast, audit.StatusSuccess)
	event.UserID = &user.ID
	event.WorkspaceID = &workspaceID
	event.Message = fmt.Sprintf("broadcast of %s notification authorized for workspace %d", nt, workspaceID)
	if logErr := g.audit.Log(ctx, event); logErr != nil {
		g.log.WithError(logErr).Warn("failed to write audit event")
	}
	return user, nil
}
