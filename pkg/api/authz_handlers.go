package api

import (
	"net/http"
	"sort"

	"github.com/loftdocs/loft/pkg/authz"
	"github.com/loftdocs/loft/pkg/httputil"
)

type checkRequest struct {
	Permission string      `json:"permission"`
	Scope      authz.Scope `json:"scope"`
	ResourceID int64       `json:"resource_id"`
}

// checkPermission evaluates a single permission for the caller. This is
// introspection: super-admin bypass does not apply, the response shows
// what the decision engine alone would say.
func (s *Server) checkPermission(w http.ResponseWriter, r *http.Request) {
	user, err := s.guard.ProtectProfile(r.Context())
	if err != nil {
		s.writeGuardError(w, err)
		return
	}

	var req checkRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Permission == "" || !req.Scope.Valid() {
		httputil.WriteBadRequest(w, "permission and a valid scope are required")
		return
	}

	decision := s.checker.Check(r.Context(), user.ID, req.Permission, req.Scope, req.ResourceID)
	httputil.WriteSuccess(w, decision)
}

type batchCheckRequest struct {
	Checks []authz.Requirement `json:"checks"`
}

func (s *Server) batchCheck(w http.ResponseWriter, r *http.Request) {
	user, err := s.guard.ProtectProfile(r.Context())
	if err != nil {
		s.writeGuardError(w, err)
		return
	}

	var req batchCheckRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.Checks) == 0 {
		httputil.WriteBadRequest(w, "checks must not be empty")
		return
	}
	for _, check := range req.Checks {
		if check.Permission == "" || !check.Scope.Valid() {
			httputil.WriteBadRequest(w, "every check needs a permission and a valid scope")
			return
		}
	}

	decisions := s.checker.BatchCheck(r.Context(), user.ID, req.Checks)
	httputil.WriteSuccess(w, map[string]interface{}{"decisions": decisions})
}

func (s *Server) listUserPermissions(w http.ResponseWriter, r *http.Request) {
	user, err := s.guard.ProtectProfile(r.Context())
	if err != nil {
		s.writeGuardError(w, err)
		return
	}

	scope := authz.Scope(httputil.ParseQueryString(r, "scope", ""))
	if !scope.Valid() {
		httputil.WriteBadRequest(w, "a valid scope query parameter is required")
		return
	}
	resourceID, parseErr := httputil.ParseQueryInt(r, "resource_id", 0)
	if parseErr != nil || resourceID <= 0 {
		httputil.WriteBadRequest(w, "a positive resource_id query parameter is required")
		return
	}

	set := s.checker.UserPermissions(r.Context(), user.ID, scope, int64(resourceID))
	httputil.WriteSuccess(w, map[string]interface{}{
		"direct":    sortedKeys(set.Direct),
		"role":      sortedKeys(set.Role),
		"ownership": sortedKeys(set.Ownership),
		"all":       sortedSlice(set.All()),
	})
}

func sortedKeys(m map[string]struct{}) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedSlice(names []string) []string {
	sort.Strings(names)
	return names
}
