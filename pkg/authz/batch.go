package authz

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchCheck evaluates every requirement for one user, fanning out resolver
// queries with bounded concurrency. Results are positionally aligned with
// reqs. Individual failures surface as deny decisions, never as errors.
func (c *Checker) BatchCheck(ctx context.Context, userID int64, reqs []Requirement) []Decision {
	decisions := make([]Decision, len(reqs))
	if len(reqs) == 0 {
		return decisions
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.batchLimit)

	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			decisions[i] = c.Check(ctx, userID, req.Permission, req.Scope, req.ResourceID)
			return nil
		})
	}

	// Workers never return errors; Wait only joins them.
	_ = g.Wait()

	if c.metrics != nil {
		c.metrics.BatchSize.Observe(float64(len(reqs)))
	}
	return decisions
}

// FilterByPermission keeps only the items the user holds the permission on,
// preserving input order. Used by authorization-aware listing endpoints.
func FilterByPermission[T any](ctx context.Context, c *Checker, userID int64, permission string, scope Scope, items []T, resourceID func(T) int64) []T {
	reqs := make([]Requirement, len(items))
	for i, item := range items {
		reqs[i] = Requirement{Permission: permission, Scope: scope, ResourceID: resourceID(item)}
	}

	decisions := c.BatchCheck(ctx, userID, reqs)

	filtered := make([]T, 0, len(items))
	for i, item := range items {
		if decisions[i].Allowed {
			filtered = append(filtered, item)
		}
	}
	return filtered
}
