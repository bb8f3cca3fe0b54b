package guard

import (
	"context"
	"fmt"

	"github.com/loftdocs/loft/pkg/authz"
	"github.com/loftdocs/loft/pkg/models"
)

// PageAccess is the granted context for page operations. User is nil when
// the grant came through the public access path.
type PageAccess struct {
	User    *models.User
	Page    *models.Page
	Section *models.Section
	Project *models.Project
}

func (g *Guard) loadPage(ctx context.Context, id int64) (*models.Page, error) {
	page, err := g.store.PageByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load page %d: %w", id, err)
	}
	if page == nil {
		return nil, g.notFound("page", id)
	}
	return page, nil
}

// ProtectPageByID grants authenticated read access: page owner, any
// participant of the enclosing project, or super-admin.
func (g *Guard) ProtectPageByID(ctx context.Context, pageID int64) (*PageAccess, error) {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	page, err := g.loadPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	section, project, err := g.pageChain(ctx, page)
	if err != nil {
		return nil, err
	}
	if user.IsSuperAdmin {
		g.recordBypass(user, "page.access")
		return &PageAccess{User: user, Page: page, Section: section, Project: project}, nil
	}
	if page.OwnerID == user.ID {
		return &PageAccess{User: user, Page: page, Section: section, Project: project}, nil
	}
	ok, err := g.isProjectParticipant(ctx, user, project)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, g.deny(ctx, user, "access", "page", pageID)
	}
	return &PageAccess{User: user, Page: page, Section: section, Project: project}, nil
}

// PublicPageAccess is the unauthenticated read path. It grants only pages
// flagged public, and only when the supplied password matches exactly. A
// non-public page is reported as forbidden; a wrong password is a domain
// error so the client can re-prompt.
func (g *Guard) PublicPageAccess(ctx context.Context, pageID int64, password string) (*PageAccess, error) {
	page, err := g.loadPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if !page.IsPublic {
		return nil, &ForbiddenError{Action: "access", Resource: "page", ResourceID: pageID}
	}
	if page.Password != "" && page.Password != password {
		return nil, domainErr(CodeWrongPassword, "incorrect page password")
	}
	section, project, err := g.pageChain(ctx, page)
	if err != nil {
		return nil, err
	}
	return &PageAccess{Page: page, Section: section, Project: project}, nil
}

// ProtectPageCreation requires create:page on the target section or its
// project.
func (g *Guard) ProtectPageCreation(ctx context.Context, sectionID int64) (*SectionAccess, error) {
	return g.protectSectionPermission(ctx, sectionID, authz.PermCreatePage, "page.create")
}

// protectPagePermission checks the permission at page scope (ownership) or
// at the enclosing project (roles and direct grants).
func (g *Guard) protectPagePermission(ctx context.Context, pageID int64, permission, action string) (*PageAccess, error) {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	page, err := g.loadPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	section, project, err := g.pageChain(ctx, page)
	if err != nil {
		return nil, err
	}
	if user.IsSuperAdmin {
		g.recordBypass(user, action)
		return &PageAccess{User: user, Page: page, Section: section, Project: project}, nil
	}
	ws, err := g.workspaceForProject(ctx, project)
	if err != nil {
		return nil, err
	}
	if ws.OwnerID == user.ID {
		return &PageAccess{User: user, Page: page, Section: section, Project: project}, nil
	}
	if !g.hasOnResourceOrProject(ctx, user.ID, permission, authz.ScopePage, pageID, project.ID) {
		return nil, g.deny(ctx, user, action, "page", pageID)
	}
	return &PageAccess{User: user, Page: page, Section: section, Project: project}, nil
}

// ProtectPageUpdate requires edit:page.
func (g *Guard) ProtectPageUpdate(ctx context.Context, pageID int64) (*PageAccess, error) {
	return g.protectPagePermission(ctx, pageID, authz.PermEditPage, "page.edit")
}

// ProtectPageDeletion requires delete:page.
func (g *Guard) ProtectPageDeletion(ctx context.Context, pageID int64) (*PageAccess, error) {
	return g.protectPagePermission(ctx, pageID, authz.PermDeletePage, "page.delete")
}

// ProtectPageSharing requires share:page. Flipping visibility and setting
// the access password both pass through here.
func (g *Guard) ProtectPageSharing(ctx context.Context, pageID int64) (*PageAccess, error) {
	return g.protectPagePermission(ctx, pageID, authz.PermSharePage, "page.share")
}

// ProtectPageOwnership grants only the page owner or a super-admin.
func (g *Guard) ProtectPageOwnership(ctx context.Context, pageID int64) (*PageAccess, error) {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	page, err := g.loadPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	section, project, err := g.pageChain(ctx, page)
	if err != nil {
		return nil, err
	}
	if user.IsSuperAdmin {
		g.recordBypass(user, "page.ownership")
		return &PageAccess{User: user, Page: page, Section: section, Project: project}, nil
	}
	if page.OwnerID != user.ID {
		return nil, g.deny(ctx, user, "own", "page", pageID)
	}
	return &PageAccess{User: user, Page: page, Section: section, Project: project}, nil
}

// ProtectPageList grants listing the pages of a section through section
// read access.
func (g *Guard) ProtectPageList(ctx context.Context, sectionID int64) (*SectionAccess, error) {
	return g.ProtectSectionAccess(ctx, sectionID)
}
