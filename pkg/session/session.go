// Package session resolves the authenticated principal for a request.
// Token verification itself happens upstream (SSO, API gateway); this
// package only carries the resolved user through the request context.
package session

import (
	"context"

	"github.com/loftdocs/loft/pkg/models"
)

// Provider yields the current principal. A nil user with a nil error means
// no session is present; guards convert that into an unauthenticated
// rejection.
type Provider interface {
	CurrentUser(ctx context.Context) (*models.User, error)
}

type contextKey struct{}

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// UserFromContext extracts the authenticated user, if any.
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(contextKey{}).(*models.User)
	return user
}

// ContextProvider reads the principal placed on the context by the HTTP
// auth middleware.
type ContextProvider struct{}

func (ContextProvider) CurrentUser(ctx context.Context) (*models.User, error) {
	return UserFromContext(ctx), nil
}

// StaticProvider always returns the same user. Test double.
type StaticProvider struct {
	User *models.User
	Err  error
}

func (p StaticProvider) CurrentUser(context.Context) (*models.User, error) {
	return p.User, p.Err
}
