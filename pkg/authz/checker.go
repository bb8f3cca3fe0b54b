package authz

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Checker aggregates the three resolvers into a single yes/no decision.
// Evaluation order is fixed: direct grant, then role grant, then ownership
// (gated by the allow-list). The first allow wins.
//
// Resolver query failures never escape: they are logged, counted, and
// treated as a deny contribution from that resolver.
type Checker struct {
	store      Store
	log        *logrus.Logger
	cache      DecisionCache
	metrics    *Metrics
	batchLimit int
}

// Option configures a Checker.
type Option func(*Checker)

// WithLogger sets the structured logger. Defaults to logrus.StandardLogger.
func WithLogger(log *logrus.Logger) Option {
	return func(c *Checker) { c.log = log }
}

// WithCache enables decision caching. Mutating grants must call
// InvalidateUser to avoid serving stale allows.
func WithCache(cache DecisionCache) Option {
	return func(c *Checker) { c.cache = cache }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(c *Checker) { c.metrics = m }
}

// WithBatchLimit bounds the fan-out of BatchCheck and FilterByPermission.
// Size it below the database connection pool.
func WithBatchLimit(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.batchLimit = n
		}
	}
}

// DefaultBatchLimit bounds concurrent resolver queries during batch
// evaluation when no explicit limit is configured.
const DefaultBatchLimit = 8

// NewChecker creates a permission checker backed by the given store.
func NewChecker(store Store, opts ...Option) *Checker {
	c := &Checker{
		store:      store,
		log:        logrus.StandardLogger(),
		batchLimit: DefaultBatchLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HasPermission reports whether the user holds the named permission on the
// scoped resource. It never returns an error; infrastructure failures deny.
func (c *Checker) HasPermission(ctx context.Context, userID int64, permission string, scope Scope, resourceID int64) bool {
	return c.Check(ctx, userID, permission, scope, resourceID).Allowed
}

// Check evaluates a single permission and reports which resolver allowed it.
func (c *Checker) Check(ctx context.Context, userID int64, permission string, scope Scope, resourceID int64) Decision {
	start := time.Now()

	if c.cache != nil {
		key := decisionKey(userID, permission, scope, resourceID)
		if d, ok := c.cache.Get(ctx, key); ok {
			c.countCache(true)
			c.observe(scope, d, start)
			return d
		}
		c.countCache(false)
	}

	d := c.evaluate(ctx, userID, permission, scope, resourceID)

	if c.cache != nil {
		c.cache.Set(ctx, decisionKey(userID, permission, scope, resourceID), d)
	}
	c.observe(scope, d, start)
	return d
}

func (c *Checker) evaluate(ctx context.Context, userID int64, permission string, scope Scope, resourceID int64) Decision {
	ok, err := c.resolveDirectGrant(ctx, userID, permission, scope, resourceID)
	if err != nil {
		c.resolverError("direct", userID, permission, scope, resourceID, err)
	} else if ok {
		return Allow(SourceDirect)
	}

	ok, err = c.resolveRoleGrant(ctx, userID, permission, scope, resourceID)
	if err != nil {
		c.resolverError("role", userID, permission, scope, resourceID, err)
	} else if ok {
		return Allow(SourceRole)
	}

	if OwnershipImplies(scope, permission) {
		ok, err = c.resolveOwnership(ctx, userID, scope, resourceID)
		if err != nil {
			c.resolverError("ownership", userID, permission, scope, resourceID, err)
		} else if ok {
			return Allow(SourceOwnership)
		}
	}

	return Deny("no direct grant, role grant or ownership match")
}

// UserPermissions enumerates every permission the user holds on the scoped
// resource, grouped by source. A resolver failure empties that resolver's
// contribution but does not fail the enumeration.
func (c *Checker) UserPermissions(ctx context.Context, userID int64, scope Scope, resourceID int64) *PermissionSet {
	set := newPermissionSet()

	if scope == ScopeProject {
		grants, err := c.store.DirectGrants(ctx, userID, resourceID)
		if err != nil {
			c.resolverError("direct", userID, "*", scope, resourceID, err)
		} else {
			for _, g := range grants {
				if g.Scope == scope {
					set.Direct[g.Name] = struct{}{}
				}
			}
		}
	}

	if scope == ScopeWorkspace || scope == ScopeProject {
		roleID, found, err := c.store.MembershipRole(ctx, scope, userID, resourceID)
		if err != nil {
			c.resolverError("role", userID, "*", scope, resourceID, err)
		} else if found {
			grants, err := c.store.RoleGrants(ctx, roleID)
			if err != nil {
				c.resolverError("role", userID, "*", scope, resourceID, err)
			} else {
				for _, g := range grants {
					if g.Scope == scope {
						set.Role[g.Name] = struct{}{}
					}
				}
			}
		}
	}

	owns, err := c.resolveOwnership(ctx, userID, scope, resourceID)
	if err != nil {
		c.resolverError("ownership", userID, "*", scope, resourceID, err)
	} else if owns {
		for _, name := range OwnershipPermissions(scope) {
			set.Ownership[name] = struct{}{}
		}
	}

	return set
}

// CheckMultiple evaluates several requirements under AND or OR logic.
func (c *Checker) CheckMultiple(ctx context.Context, userID int64, reqs []Requirement, logic Logic) bool {
	if len(reqs) == 0 {
		return logic == LogicAND
	}
	for _, req := range reqs {
		allowed := c.HasPermission(ctx, userID, req.Permission, req.Scope, req.ResourceID)
		if logic == LogicOR && allowed {
			return true
		}
		if logic != LogicOR && !allowed {
			return false
		}
	}
	return logic != LogicOR
}

// ResourceOwner exposes the store's ownership lookup for callers that need
// an explicit ownership test outside the allow-list, such as the guard
// layer's ownership wrapper.
func (c *Checker) ResourceOwner(ctx context.Context, scope Scope, resourceID int64) (int64, bool, error) {
	return c.store.ResourceOwner(ctx, scope, resourceID)
}

// InvalidateUser drops any cached decisions for the user. Call after grant
// or membership mutations.
func (c *Checker) InvalidateUser(ctx context.Context, userID int64) {
	if c.cache != nil {
		c.cache.InvalidateUser(ctx, userID)
	}
}

func (c *Checker) resolverError(resolver string, userID int64, permission string, scope Scope, resourceID int64, err error) {
	c.log.WithFields(logrus.Fields{
		"resolver":    resolver,
		"user_id":     userID,
		"permission":  permission,
		"scope":       scope,
		"resource_id": resourceID,
	}).WithError(err).Error("permission resolver query failed, denying")
	if c.metrics != nil {
		c.metrics.ResolverErrorsTotal.WithLabelValues(resolver).Inc()
	}
}

func (c *Checker) observe(scope Scope, d Decision, start time.Time) {
	if c.metrics == nil {
		return
	}
	result := "deny"
	if d.Allowed {
		result = "allow"
	}
	c.metrics.ChecksTotal.WithLabelValues(string(scope), result, string(d.Source)).Inc()
	c.metrics.CheckDuration.WithLabelValues(string(scope)).Observe(time.Since(start).Seconds())
}

func (c *Checker) countCache(hit bool) {
	if c.metrics == nil {
		return
	}
	if hit {
		c.metrics.CacheHitsTotal.Inc()
	} else {
		c.metrics.CacheMissesTotal.Inc()
	}
}
