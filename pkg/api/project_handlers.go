package api

import (
	"net/http"

	"github.com/loftdocs/loft/pkg/httputil"
)

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	access, err := s.guard.ProtectProjectByID(r.Context(), id)
	if err != nil {
		s.writeGuardError(w, err)
		return
	}
	httputil.WriteSuccess(w, access.Project)
}

func (s *Server) getProjectBySlug(w http.ResponseWriter, r *http.Request) {
	slug, err := httputil.ParsePathString(r, "slug")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	access, err := s.guard.ProtectProjectBySlug(r.Context(), slug)
	if err != nil {
		s.writeGuardError(w, err)
		return
	}
	httputil.WriteSuccess(w, access.Project)
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if _, err := s.guard.ProtectProjectDeletion(r.Context(), id); err != nil {
		s.writeGuardError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) setProjectMemberRole(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userId")
	if !ok {
		return
	}
	var req memberRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if _, err := s.guard.ProtectRoleAssignment(r.Context(), req.RoleID, "project", projectID); err != nil {
		s.writeGuardError(w, err)
		return
	}
	if err := s.store.UpsertProjectMember(r.Context(), projectID, userID, req.RoleID); err != nil {
		s.writeGuardError(w, err)
		return
	}
	s.checker.InvalidateUser(r.Context(), userID)
	httputil.WriteNoContent(w)
}

func (s *Server) removeProjectMember(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userId")
	if !ok {
		return
	}
	if _, err := s.guard.ProtectProjectMemberManagement(r.Context(), projectID); err != nil {
		s.writeGuardError(w, err)
		return
	}
	if err := s.store.RemoveProjectMember(r.Context(), projectID, userID); err != nil {
		s.writeGuardError(w, err)
		return
	}
	s.checker.InvalidateUser(r.Context(), userID)
	httputil.WriteNoContent(w)
}

type directGrantRequest struct {
	UserID       int64 `json:"user_id"`
	PermissionID int64 `json:"permission_id"`
}

func (s *Server) grantProjectPermission(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req directGrantRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	access, err := s.guard.ProtectDirectGrant(r.Context(), projectID, req.PermissionID)
	if err != nil {
		s.writeGuardError(w, err)
		return
	}
	grantedBy := access.User.ID
	if err := s.store.GrantProjectPermission(r.Context(), projectID, req.UserID, req.PermissionID, &grantedBy); err != nil {
		s.writeGuardError(w, err)
		return
	}
	s.checker.InvalidateUser(r.Context(), req.UserID)
	httputil.WriteNoContent(w)
}

func (s *Server) revokeProjectPermission(w http.ResponseWriter, r *http.Request) {
	projectID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req directGrantRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if _, err := s.guard.ProtectDirectGrant(r.Context(), projectID, req.PermissionID); err != nil {
		s.writeGuardError(w, err)
		return
	}
	if err := s.store.RevokeProjectPermission(r.Context(), projectID, req.UserID, req.PermissionID); err != nil {
		s.writeGuardError(w, err)
		return
	}
	s.checker.InvalidateUser(r.Context(), req.UserID)
	httputil.WriteNoContent(w)
}
