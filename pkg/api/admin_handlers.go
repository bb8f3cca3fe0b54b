package api

import (
	"net/http"
	"time"

	"github.com/loftdocs/loft/pkg/audit"
	"github.com/loftdocs/loft/pkg/httputil"
)

func (s *Server) searchAuditLog(w http.ResponseWriter, r *http.Request) {
	if _, err := s.guard.ProtectAuditLog(r.Context()); err != nil {
		s.writeGuardError(w, err)
		return
	}
	if s.auditDB == nil {
		httputil.WriteErrorMessage(w, http.StatusNotImplemented, "audit log search requires the database audit backend")
		return
	}

	filter := audit.Filter{}
	if err := parseAuditFilter(r, &filter); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	events, err := s.auditDB.Search(r.Context(), filter)
	if err != nil {
		s.log.WithError(err).Error("audit log search failed")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"events": events})
}

func parseAuditFilter(r *http.Request, filter *audit.Filter) error {
	if v := httputil.ParseQueryString(r, "event_type", ""); v != "" {
		filter.EventTypes = []audit.EventType{audit.EventType(v)}
	}
	filter.ResourceType = httputil.ParseQueryString(r, "resource_type", "")
	filter.ResourceID = httputil.ParseQueryString(r, "resource_id", "")

	userID, err := httputil.ParseQueryInt(r, "user_id", 0)
	if err != nil {
		return err
	}
	if userID > 0 {
		id := int64(userID)
		filter.UserID = &id
	}
	workspaceID, err := httputil.ParseQueryInt(r, "workspace_id", 0)
	if err != nil {
		return err
	}
	if workspaceID > 0 {
		id := int64(workspaceID)
		filter.WorkspaceID = &id
	}

	if v := httputil.ParseQueryString(r, "since", ""); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return err
		}
		filter.StartTime = &t
	}
	if v := httputil.ParseQueryString(r, "until", ""); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return err
		}
		filter.EndTime = &t
	}

	filter.Limit, err = httputil.ParseQueryInt(r, "limit", 100)
	if err != nil {
		return err
	}
	filter.Offset, err = httputil.ParseQueryInt(r, "offset", 0)
	return err
}

func (s *Server) runMaintenance(w http.ResponseWriter, r *http.Request) {
	operation, err := httputil.ParsePathString(r, "operation")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if _, err := s.guard.ProtectMaintenance(r.Context(), operation); err != nil {
		s.writeGuardError(w, err)
		return
	}
	if s.maint == nil {
		httputil.WriteErrorMessage(w, http.StatusNotImplemented, "maintenance scheduler is not configured")
		return
	}

	var affected int64
	switch operation {
	case "invitation-sweep":
		affected, err = s.maint.RunInvitationSweep(r.Context())
	case "audit-purge":
		affected, err = s.maint.RunAuditPurge(r.Context())
	default:
		httputil.WriteBadRequest(w, "unknown maintenance operation")
		return
	}
	if err != nil {
		s.log.WithError(err).WithField("operation", operation).Error("maintenance operation failed")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"operation": operation,
		"affected":  affected,
	})
}
