package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/loftdocs/loft/pkg/audit"
	"github.com/loftdocs/loft/pkg/authz"
	"github.com/loftdocs/loft/pkg/guard"
	"github.com/loftdocs/loft/pkg/httputil"
	"github.com/loftdocs/loft/pkg/maintenance"
	"github.com/loftdocs/loft/pkg/session"
	"github.com/loftdocs/loft/pkg/store"
)

// Server is the HTTP API. Every resource route funnels through the guard
// layer; handlers never consult the decision engine directly.
type Server struct {
	router   *mux.Router
	guard    *guard.Guard
	checker  *authz.Checker
	store    *store.Store
	tokens   *session.TokenProvider
	auditDB  *audit.DBLogger
	maint    *maintenance.Scheduler
	registry *prometheus.Registry
	log      *logrus.Logger
}

// NewServer wires routes and middleware. auditDB and maint may be nil;
// their admin endpoints report unavailability then.
func NewServer(g *guard.Guard, checker *authz.Checker, st *store.Store, tokens *session.TokenProvider, auditDB *audit.DBLogger, maint *maintenance.Scheduler, registry *prometheus.Registry, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		router:   mux.NewRouter(),
		guard:    g,
		checker:  checker,
		store:    st,
		tokens:   tokens,
		auditDB:  auditDB,
		maint:    maint,
		registry: registry,
		log:      log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(httputil.RequestIDMiddleware)
	s.router.Use(httputil.RecoveryMiddleware(s.log))
	s.router.Use(httputil.LoggingMiddleware(s.log))
	s.router.Use(s.authMiddleware)

	// Operational endpoints
	s.router.HandleFunc("/healthz", s.healthz).Methods("GET")
	if s.registry != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods("GET")
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Decision engine introspection
	api.HandleFunc("/authz/check", s.checkPermission).Methods("POST")
	api.HandleFunc("/authz/batch", s.batchCheck).Methods("POST")
	api.HandleFunc("/authz/permissions", s.listUserPermissions).Methods("GET")

	// Users
	api.HandleFunc("/me", s.getProfile).Methods("GET")
	api.HandleFunc("/users", s.listUsers).Methods("GET")
	api.HandleFunc("/users/{id}", s.updateUser).Methods("PATCH")
	api.HandleFunc("/users/{id}", s.deleteUser).Methods("DELETE")

	// Workspaces
	api.HandleFunc("/workspaces/{id}", s.getWorkspace).Methods("GET")
	api.HandleFunc("/workspaces/{id}", s.deleteWorkspace).Methods("DELETE")
	api.HandleFunc("/workspaces/{id}/settings", s.getWorkspaceSettings).Methods("GET")
	api.HandleFunc("/workspaces/{id}/members/{userId}", s.setWorkspaceMemberRole).Methods("PUT")
	api.HandleFunc("/workspaces/{id}/members/{userId}", s.removeWorkspaceMember).Methods("DELETE")
	api.HandleFunc("/workspaces/{id}/invitations", s.createInvitation).Methods("POST")
	api.HandleFunc("/workspaces/{id}/invitations", s.listInvitations).Methods("GET")
	api.HandleFunc("/workspaces/{id}/broadcast", s.broadcastNotification).Methods("POST")

	// Projects
	api.HandleFunc("/projects/{id}", s.getProject).Methods("GET")
	api.HandleFunc("/projects/by-slug/{slug}", s.getProjectBySlug).Methods("GET")
	api.HandleFunc("/projects/{id}", s.deleteProject).Methods("DELETE")
	api.HandleFunc("/projects/{id}/members/{userId}", s.setProjectMemberRole).Methods("PUT")
	api.HandleFunc("/projects/{id}/members/{userId}", s.removeProjectMember).Methods("DELETE")
	api.HandleFunc("/projects/{id}/grants", s.grantProjectPermission).Methods("POST")
	api.HandleFunc("/projects/{id}/grants", s.revokeProjectPermission).Methods("DELETE")

	// Sections and pages
	api.HandleFunc("/sections/{id}", s.getSection).Methods("GET")
	api.HandleFunc("/sections/{id}/pages", s.listPages).Methods("GET")
	api.HandleFunc("/pages/{id}", s.getPage).Methods("GET")
	api.HandleFunc("/pages/{id}/sharing", s.updatePageSharing).Methods("PUT")
	api.HandleFunc("/pages/{id}/annotations", s.listAnnotations).Methods("GET")

	// Public, unauthenticated page access
	s.router.HandleFunc("/public/pages/{id}", s.getPublicPage).Methods("GET")

	// Annotations
	api.HandleFunc("/annotations/{id}", s.getAnnotation).Methods("GET")
	api.HandleFunc("/annotations/{id}/resolve", s.resolveAnnotation).Methods("POST")

	// Notifications
	api.HandleFunc("/notifications", s.listNotifications).Methods("GET")
	api.HandleFunc("/notifications/read-all", s.markAllNotificationsRead).Methods("POST")
	api.HandleFunc("/notifications/{id}/read", s.markNotificationRead).Methods("POST")

	// Invitations
	s.router.HandleFunc("/invitations/token/{token}", s.getInvitationByToken).Methods("GET")
	api.HandleFunc("/invitations/accept", s.acceptInvitation).Methods("POST")
	api.HandleFunc("/invitations/{id}", s.cancelInvitation).Methods("DELETE")

	// Roles and permissions
	api.HandleFunc("/roles/{id}", s.getRole).Methods("GET")
	api.HandleFunc("/roles/{id}", s.deleteRole).Methods("DELETE")
	api.HandleFunc("/roles/{id}/permissions", s.setRolePermissions).Methods("PUT")

	// Admin
	api.HandleFunc("/admin/audit", s.searchAuditLog).Methods("GET")
	api.HandleFunc("/admin/maintenance/{operation}", s.runMaintenance).Methods("POST")
}

// Router exposes the configured handler.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.HealthCheck(r.Context()); err != nil {
		httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	httputil.WriteSuccess(w, map[string]string{"status": "ok"})
}
