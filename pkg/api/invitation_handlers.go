package api

import (
	"net/http"

	"github.com/loftdocs/loft/pkg/httputil"
)

// getInvitationByToken is public: invitees hold a token link before they
// have an account. Only the invitation's validity is disclosed.
func (s *Server) getInvitationByToken(w http.ResponseWriter, r *http.Request) {
	token, err := httputil.ParsePathString(r, "token")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	inv, err := s.guard.InvitationByToken(r.Context(), token)
	if err != nil {
		s.writeGuardError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"workspace_id": inv.WorkspaceID,
		"email":        inv.Email,
		"expires_at":   inv.ExpiresAt,
	})
}

type acceptInvitationRequest struct {
	Token string `json:"token"`
}

func (s *Server) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	var req acceptInvitationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Token == "" {
		httputil.WriteBadRequest(w, "token is required")
		return
	}

	inv, err := s.guard.AcceptInvitation(r.Context(), req.Token)
	if err != nil {
		s.writeGuardError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"workspace_id": inv.WorkspaceID,
		"project_id":   inv.ProjectID,
	})
}

func (s *Server) cancelInvitation(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	inv, err := s.guard.ProtectInvitationCancellation(r.Context(), id)
	if err != nil {
		s.writeGuardError(w, err)
		return
	}
	if err := s.store.DeleteInvitation(r.Context(), inv.ID); err != nil {
		s.writeGuardError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
