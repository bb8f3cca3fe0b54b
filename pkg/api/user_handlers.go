package api

import (
	"net/http"

	"github.com/loftdocs/loft/pkg/httputil"
)

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	user, err := s.guard.ProtectProfile(r.Context())
	if err != nil {
		s.writeGuardError(w, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	if _, err := s.guard.ProtectUserList(r.Context()); err != nil {
		s.writeGuardError(w, err)
		return
	}

	limit, err := httputil.ParseQueryInt(r, "limit", 50)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	users, err := s.store.ListUsers(r.Context(), limit, offset)
	if err != nil {
		s.writeGuardError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"users": users})
}

type updateUserRequest struct {
	FullName string `json:"full_name"`
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	targetID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	target, err := s.guard.ProtectUserUpdate(r.Context(), targetID)
	if err != nil {
		s.writeGuardError(w, err)
		return
	}

	var req updateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := s.store.UpdateUserProfile(r.Context(), target.ID, req.FullName); err != nil {
		s.writeGuardError(w, err)
		return
	}
	target.FullName = req.FullName
	httputil.WriteSuccess(w, target)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	targetID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	target, err := s.guard.ProtectUserDeletion(r.Context(), targetID)
	if err != nil {
		s.writeGuardError(w, err)
		return
	}
	if err := s.store.DeleteUser(r.Context(), target.ID); err != nil {
		s.writeGuardError(w, err)
		return
	}
	s.checker.InvalidateUser(r.Context(), target.ID)
	httputil.WriteNoContent(w)
}
