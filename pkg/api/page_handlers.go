package api

import (
	"net/http"

	"github.com/loftdocs/loft/pkg/authz"
	"github.com/loftdocs/loft/pkg/httputil"
	"github.com/loftdocs/loft/pkg/models"
)

func (s *Server) getSection(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	access, err := s.guard.ProtectSectionAccess(r.Context(), id)
	if err != nil {
		s.writeGuardError(w, err)
		return
	}
	httputil.WriteSuccess(w, access.Section)
}

// listPages returns the section's pages the caller may read. Section
// readers see every page; pages the caller could not individually access
// never arise because read access is section-granular, but the edit flag
// per page is computed through a bounded batch filter.
func (s *Server) listPages(w http.ResponseWriter, r *http.Request) {
	sectionID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	access, err := s.guard.ProtectPageList(r.Context(), sectionID)
	if err != nil {
		s.writeGuardError(w, err)
		return
	}

	pages, err := s.store.PagesBySection(r.Context(), sectionID)
	if err != nil {
		s.writeGuardError(w, err)
		return
	}

	editable := authz.FilterByPermission(r.Context(), s.checker, access.User.ID,
		authz.PermEditPage, authz.ScopePage, pages,
		func(p *models.Page) int64 { return p.ID })
	editableIDs := make(map[int64]bool, len(editable))
	for _, p := range editable {
		editableIDs[p.ID] = true
	}

	type pageView struct {
		*models.Page
		Editable bool `json:"editable"`
	}
	views := make([]pageView, 0, len(pages))
	for _, p := range pages {
		views = append(views, pageView{Page: p, Editable: editableIDs[p.ID]})
	}
	httputil.WriteSuccess(w, map[string]interface{}{"pages": views})
}

func (s *Server) getPage(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	access, err := s.guard.ProtectPageByID(r.Context(), id)
	if err != nil {
		s.writeGuardError(w, err)
		return
	}
	httputil.WriteSuccess(w, access.Page)
}

// getPublicPage is the unauthenticated read path. The password travels in
// a header so it stays out of access logs.
func (s *Server) getPublicPage(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	access, err := s.guard.PublicPageAccess(r.Context(), id, r.Header.Get("X-Page-Password"))
	if err != nil {
		s.writeGuardError(w, err)
		return
	}
	httputil.WriteSuccess(w, access.Page)
}

type sharingRequest struct {
	IsPublic bool   `json:"is_public"`
	Password string `json:"password,omitempty"`
}

func (s *Server) updatePageSharing(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	access, err := s.guard.ProtectPageSharing(r.Context(), id)
	if err != nil {
		s.writeGuardError(w, err)
		return
	}

	var req sharingRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := s.store.UpdatePageSharing(r.Context(), access.Page.ID, req.IsPublic, req.Password); err != nil {
		s.writeGuardError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) listAnnotations(w http.ResponseWriter, r *http.Request) {
	pageID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if _, err := s.guard.ProtectAnnotationList(r.Context(), pageID); err != nil {
		s.writeGuardError(w, err)
		return
	}
	annotations, err := s.store.AnnotationsByPage(r.Context(), pageID)
	if err != nil {
		s.writeGuardError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"annotations": annotations})
}

func (s *Server) getAnnotation(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	access, err := s.guard.ProtectAnnotationAccess(r.Context(), id)
	if err != nil {
		s.writeGuardError(w, err)
		return
	}
	httputil.WriteSuccess(w, access.Annotation)
}

func (s *Server) resolveAnnotation(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	access, err := s.guard.ProtectAnnotationResolution(r.Context(), id)
	if err != nil {
		s.writeGuardError(w, err)
		return
	}
	if err := s.store.ResolveAnnotation(r.Context(), id, access.User.ID); err != nil {
		s.writeGuardError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
