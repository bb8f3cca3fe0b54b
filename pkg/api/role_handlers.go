package api

import (
	"net/http"

	"github.com/loftdocs/loft/pkg/httputil"
)

func (s *Server) getRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	role, err := s.guard.ProtectRoleAccess(r.Context(), id)
	if err != nil {
		s.writeGuardError(w, err)
		return
	}
	httputil.WriteSuccess(w, role)
}

func (s *Server) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := s.guard.DeleteRole(r.Context(), id); err != nil {
		s.writeGuardError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

type rolePermissionsRequest struct {
	PermissionIDs []int64 `json:"permission_ids"`
}

func (s *Server) setRolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	role, err := s.guard.ProtectRolePermissionChange(r.Context(), roleID)
	if err != nil {
		s.writeGuardError(w, err)
		return
	}

	var req rolePermissionsRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	// Every permission in the new set must exist and live at the role's
	// scope; a workspace role never carries project permissions.
	for _, permID := range req.PermissionIDs {
		perm, err := s.store.PermissionByID(r.Context(), permID)
		if err != nil {
			s.writeGuardError(w, err)
			return
		}
		if perm == nil {
			httputil.WriteBadRequest(w, "unknown permission in permission_ids")
			return
		}
		if perm.Scope != role.Scope {
			httputil.WriteBadRequest(w, "permission scope does not match role scope")
			return
		}
	}

	if err := s.store.SetRolePermissions(r.Context(), role.ID, req.PermissionIDs); err != nil {
		s.writeGuardError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
