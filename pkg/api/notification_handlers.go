package api

import (
	"net/http"

	"github.com/loftdocs/loft/pkg/httputil"
)

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	user, err := s.guard.ProtectNotificationList(r.Context())
	if err != nil {
		s.writeGuardError(w, err)
		return
	}

	limit, parseErr := httputil.ParseQueryInt(r, "limit", 50)
	if parseErr != nil {
		httputil.WriteBadRequest(w, parseErr.Error())
		return
	}

	notifications, err := s.store.NotificationsByUser(r.Context(), user.ID, limit)
	if err != nil {
		s.writeGuardError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"notifications": notifications})
}

func (s *Server) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	notification, err := s.guard.ProtectNotificationUpdate(r.Context(), id)
	if err != nil {
		s.writeGuardError(w, err)
		return
	}
	if err := s.store.MarkNotificationRead(r.Context(), notification.ID); err != nil {
		s.writeGuardError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) markAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	user, err := s.guard.ProtectNotificationBulkOps(r.Context())
	if err != nil {
		s.writeGuardError(w, err)
		return
	}
	updated, err := s.store.MarkAllNotificationsRead(r.Context(), user.ID)
	if err != nil {
		s.writeGuardError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"updated": updated})
}
