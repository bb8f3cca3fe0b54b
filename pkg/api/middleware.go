package api

import (
	"net/http"
	"strings"

	"github.com/loftdocs/loft/pkg/httputil"
	"github.com/loftdocs/loft/pkg/session"
)

// authMiddleware resolves the bearer token and attaches the user to the
// request context. Requests without a valid token continue anonymously;
// the guard layer rejects them where authentication is required.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bearer := bearerToken(r)
		if bearer == "" || s.tokens == nil {
			next.ServeHTTP(w, r)
			return
		}

		user, err := s.tokens.Authenticate(r.Context(), bearer)
		if err != nil {
			s.log.WithError(err).Error("token authentication failed")
			httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, "authentication unavailable")
			return
		}
		if user != nil {
			r = r.WithContext(session.WithUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
