package api

import (
	"net/http"
	"time"

	"github.com/loftdocs/loft/pkg/httputil"
	"github.com/loftdocs/loft/pkg/models"
	"github.com/loftdocs/loft/pkg/session"
)

func (s *Server) getWorkspace(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	access, err := s.guard.ProtectWorkspaceAccess(r.Context(), id)
	if err != nil {
		s.writeGuardError(w, err)
		return
	}
	httputil.WriteSuccess(w, access.Workspace)
}

func (s *Server) deleteWorkspace(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if _, err := s.guard.ProtectWorkspaceDeletion(r.Context(), id); err != nil {
		s.writeGuardError(w, err)
		return
	}
	// Deletion itself is delegated to a background job in production; the
	// API only records the authorization outcome here.
	httputil.WriteNoContent(w)
}

func (s *Server) getWorkspaceSettings(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	access, err := s.guard.ProtectWorkspaceSettings(r.Context(), id)
	if err != nil {
		s.writeGuardError(w, err)
		return
	}
	httputil.WriteSuccess(w, access.Workspace)
}

type memberRoleRequest struct {
	RoleID int64 `json:"role_id"`
}

func (s *Server) setWorkspaceMemberRole(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := httputil.ParsePathInt64OrError(w, r, "id")
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

	access, err := s.guard.ProtectWorkspaceMemberManagement(r.Context(), workspaceID)
	if err != nil {
		s.writeGuardError(w, err)
		return
	}
	if _, err := s.guard.ProtectRoleAssignment(r.Context(), req.RoleID, "workspace", workspaceID); err != nil {
		s.writeGuardError(w, err)
		return
	}

	invitedBy := access.User.ID
	if err := s.store.UpsertWorkspaceMember(r.Context(), workspaceID, userID, req.RoleID, &invitedBy); err != nil {
		s.writeGuardError(w, err)
		return
	}
	s.checker.InvalidateUser(r.Context(), userID)
	httputil.WriteNoContent(w)
}

func (s *Server) removeWorkspaceMember(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userId")
	if !ok {
		return
	}
	if _, err := s.guard.ProtectWorkspaceMemberManagement(r.Context(), workspaceID); err != nil {
		s.writeGuardError(w, err)
		return
	}
	if err := s.store.RemoveWorkspaceMember(r.Context(), workspaceID, userID); err != nil {
		s.writeGuardError(w, err)
		return
	}
	s.checker.InvalidateUser(r.Context(), userID)
	httputil.WriteNoContent(w)
}

type createInvitationRequest struct {
	Email     string `json:"email"`
	RoleID    int64  `json:"role_id"`
	ProjectID *int64 `json:"project_id,omitempty"`
}

func (s *Server) createInvitation(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	access, err := s.guard.ProtectWorkspaceInvitation(r.Context(), workspaceID)
	if err != nil {
		s.writeGuardError(w, err)
		return
	}

	var req createInvitationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Email == "" || req.RoleID == 0 {
		httputil.WriteBadRequest(w, "email and role_id are required")
		return
	}

	token, _, err := session.GenerateToken()
	if err != nil {
		s.writeGuardError(w, err)
		return
	}

	inv := &models.Invitation{
		WorkspaceID: workspaceID,
		ProjectID:   req.ProjectID,
		Email:       req.Email,
		RoleID:      req.RoleID,
		Token:       token,
		InvitedBy:   access.User.ID,
		ExpiresAt:   time.Now().Add(s.guard.InvitationTTL()),
	}
	if err := s.store.CreateInvitation(r.Context(), inv); err != nil {
		s.writeGuardError(w, err)
		return
	}
	httputil.WriteCreated(w, inv)
}

func (s *Server) listInvitations(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if _, err := s.guard.ProtectInvitationList(r.Context(), workspaceID); err != nil {
		s.writeGuardError(w, err)
		return
	}
	invitations, err := s.store.InvitationsByWorkspace(r.Context(), workspaceID)
	if err != nil {
		s.writeGuardError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"invitations": invitations})
}

type broadcastRequest struct {
	Type    models.NotificationType `json:"type"`
	Title   string                  `json:"title"`
	Message string                  `json:"message"`
}

func (s *Server) broadcastNotification(w http.ResponseWriter, r *http.Request) {
	workspaceID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req broadcastRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Title == "" {
		httputil.WriteBadRequest(w, "title is required")
		return
	}

	if _, err := s.guard.ProtectNotificationBroadcast(r.Context(), workspaceID, req.Type); err != nil {
		s.writeGuardError(w, err)
		return
	}
	// Fan-out to members happens asynchronously; the endpoint records the
	// authorized broadcast.
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
