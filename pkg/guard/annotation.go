package guard

import (
	"context"
	"fmt"

	"github.com/loftdocs/loft/pkg/authz"
	"github.com/loftdocs/loft/pkg/models"
)

// AnnotationAccess is the granted context for annotation operations.
type AnnotationAccess struct {
	User       *models.User
	Annotation *models.Annotation
	Page       *models.Page
	Project    *models.Project
}

func (g *Guard) loadAnnotation(ctx context.Context, id int64) (*models.Annotation, error) {
	ann, err := g.store.AnnotationByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load annotation %d: %w", id, err)
	}
	if ann == nil {
		return nil, g.notFound("annotation", id)
	}
	return ann, nil
}

func (g *Guard) annotationChain(ctx context.Context, ann *models.Annotation) (*models.Page, *models.Project, error) {
	page, err := g.store.PageByID(ctx, ann.PageID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load page %d: %w", ann.PageID, err)
	}
	if page == nil {
		return nil, nil, g.notFound("page", ann.PageID)
	}
	_, project, err := g.pageChain(ctx, page)
	if err != nil {
		return nil, nil, err
	}
	return page, project, nil
}

// ProtectAnnotationAccess grants read access through the enclosing page's
// read semantics.
func (g *Guard) ProtectAnnotationAccess(ctx context.Context, annotationID int64) (*AnnotationAccess, error) {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	ann, err := g.loadAnnotation(ctx, annotationID)
	if err != nil {
		return nil, err
	}
	page, project, err := g.annotationChain(ctx, ann)
	if err != nil {
		return nil, err
	}
	if user.IsSuperAdmin {
		g.recordBypass(user, "annotation.access")
		return &AnnotationAccess{User: user, Annotation: ann, Page: page, Project: project}, nil
	}
	if ann.OwnerID == user.ID || page.OwnerID == user.ID {
		return &AnnotationAccess{User: user, Annotation: ann, Page: page, Project: project}, nil
	}
	ok, err := g.isProjectParticipant(ctx, user, project)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, g.deny(ctx, user, "access", "annotation", annotationID)
	}
	return &AnnotationAccess{User: user, Annotation: ann, Page: page, Project: project}, nil
}

// ProtectAnnotationCreation grants anyone with read access to the target
// page.
func (g *Guard) ProtectAnnotationCreation(ctx context.Context, pageID int64) (*PageAccess, error) {
	return g.ProtectPageByID(ctx, pageID)
}

// ProtectAnnotationList grants page readers.
func (g *Guard) ProtectAnnotationList(ctx context.Context, pageID int64) (*PageAccess, error) {
	return g.ProtectPageByID(ctx, pageID)
}

// protectAnnotationModeration grants the annotation's author, a project
// moderator, or a super-admin.
func (g *Guard) protectAnnotationModeration(ctx context.Context, annotationID int64, action string) (*AnnotationAccess, error) {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	ann, err := g.loadAnnotation(ctx, annotationID)
	if err != nil {
		return nil, err
	}
	page, project, err := g.annotationChain(ctx, ann)
	if err != nil {
		return nil, err
	}
	if user.IsSuperAdmin {
		g.recordBypass(user, action)
		return &AnnotationAccess{User: user, Annotation: ann, Page: page, Project: project}, nil
	}
	if ann.OwnerID == user.ID {
		return &AnnotationAccess{User: user, Annotation: ann, Page: page, Project: project}, nil
	}
	if !g.has(ctx, user.ID, authz.PermModerateAnnotations, authz.ScopeProject, project.ID) {
		return nil, g.deny(ctx, user, action, "annotation", annotationID)
	}
	return &AnnotationAccess{User: user, Annotation: ann, Page: page, Project: project}, nil
}

// ProtectAnnotationUpdate grants the author, a moderator, or a super-admin.
func (g *Guard) ProtectAnnotationUpdate(ctx context.Context, annotationID int64) (*AnnotationAccess, error) {
	return g.protectAnnotationModeration(ctx, annotationID, "annotation.update")
}

// ProtectAnnotationDeletion grants the author, a moderator, or a
// super-admin.
func (g *Guard) ProtectAnnotationDeletion(ctx context.Context, annotationID int64) (*AnnotationAccess, error) {
	return g.protectAnnotationModeration(ctx, annotationID, "annotation.delete")
}

// ProtectAnnotationResolution grants the author, the page owner, a
// moderator, or a super-admin.
func (g *Guard) ProtectAnnotationResolution(ctx context.Context, annotationID int64) (*AnnotationAccess, error) {
	user, err := g.requireAuth(ctx)
	if err != nil {
		return nil, err
	}
	ann, err := g.loadAnnotation(ctx, annotationID)
	if err != nil {
		return nil, err
	}
	page, project, err := g.annotationChain(ctx, ann)
	if err != nil {
		return nil, err
	}
	if user.IsSuperAdmin {
		g.recordBypass(user, "annotation.resolve")
		return &AnnotationAccess{User: user, Annotation: ann, Page: page, Project: project}, nil
	}
	if ann.OwnerID == user.ID || page.OwnerID == user.ID {
		return &AnnotationAccess{User: user, Annotation: ann, Page: page, Project: project}, nil
	}
	if !g.has(ctx, user.ID, authz.PermModerateAnnotations, authz.ScopeProject, project.ID) {
		return nil, g.deny(ctx, user, "annotation.resolve", "annotation", annotationID)
	}
	return &AnnotationAccess{User: user, Annotation: ann, Page: page, Project: project}, nil
}
