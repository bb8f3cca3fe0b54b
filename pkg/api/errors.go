package api

import (
	"errors"
	"net/http"

	"github.com/loftdocs/loft/pkg/guard"
	"github.com/loftdocs/loft/pkg/httputil"
)

// writeGuardError maps guard rejections to status codes: 401 for missing
// authentication, 404 for missing resources, 403 for denials, 422 for
// business-rule violations. Anything else is a 500 with a generic message;
// the real error stays in the log.
func (s *Server) writeGuardError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, guard.ErrUnauthenticated):
		httputil.WriteUnauthorized(w, "authentication required")
	case guard.IsNotFound(err):
		httputil.WriteNotFound(w, err.Error())
	case guard.IsForbidden(err):
		httputil.WriteForbidden(w, "not authorized")
	case guard.IsDomainError(err):
		httputil.WriteUnprocessable(w, err.Error())
	default:
		s.log.WithError(err).Error("request failed")
		httputil.WriteInternalError(w, errors.New("internal server error"))
	}
}
