package authz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore implements Store with per-method hooks so tests can script
// each resolver independently.
type fakeStore struct {
	resourceOwner  func(scope Scope, resourceID int64) (int64, bool, error)
	membershipRole func(scope Scope, userID, resourceID int64) (int64, bool, error)
	roleGrants     func(roleID int64) ([]Grant, error)
	directGrants   func(userID, projectID int64) ([]Grant, error)

	directCalls int
	roleCalls   int
	ownerCalls  int
}

func (f *fakeStore) ResourceOwner(_ context.Context, scope Scope, resourceID int64) (int64, bool, error) {
	f.ownerCalls++
	if f.resourceOwner == nil {
		return 0, false, nil
	}
	return f.resourceOwner(scope, resourceID)
}

func (f *fakeStore) MembershipRole(_ context.Context, scope Scope, userID, resourceID int64) (int64, bool, error) {
	f.roleCalls++
	if f.membershipRole == nil {
		return 0, false, nil
	}
	return f.membershipRole(scope, userID, resourceID)
}

func (f *fakeStore) RoleGrants(_ context.Context, roleID int64) ([]Grant, error) {
	if f.roleGrants == nil {
		return nil, nil
	}
	return f.roleGrants(roleID)
}

func (f *fakeStore) DirectGrants(_ context.Context, userID, projectID int64) ([]Grant, error) {
	f.directCalls++
	if f.directGrants == nil {
		return nil, nil
	}
	return f.directGrants(userID, projectID)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestCheckDirectGrantWins(t *testing.T) {
	st := &fakeStore{
		directGrants: func(userID, projectID int64) ([]Grant, error) {
			return []Grant{{Name: PermEditProject, Scope: ScopeProject}}, nil
		},
	}
	c := NewChecker(st, WithLogger(quietLogger()))

	d := c.Check(context.Background(), 7, PermEditProject, ScopeProject, 42)
	require.True(t, d.Allowed)
	assert.Equal(t, SourceDirect, d.Source)
	// Short-circuit: later resolvers never run.
	assert.Zero(t, st.roleCalls)
	assert.Zero(t, st.ownerCalls)
}

func TestCheckRoleGrantAfterDirectMiss(t *testing.T) {
	st := &fakeStore{
		membershipRole: func(scope Scope, userID, resourceID int64) (int64, bool, error) {
			return 3, true, nil
		},
		roleGrants: func(roleID int64) ([]Grant, error) {
			require.Equal(t, int64(3), roleID)
			return []Grant{{Name: PermManageMembers, Scope: ScopeWorkspace}}, nil
		},
	}
	c := NewChecker(st, WithLogger(quietLogger()))

	d := c.Check(context.Background(), 7, PermManageMembers, ScopeWorkspace, 1)
	require.True(t, d.Allowed)
	assert.Equal(t, SourceRole, d.Source)
}

func TestCheckRoleGrantScopeMustMatch(t *testing.T) {
	// A workspace-scoped grant must not satisfy the same name at project
	// scope even when the role carries it.
	st := &fakeStore{
		membershipRole: func(scope Scope, userID, resourceID int64) (int64, bool, error) {
			return 3, true, nil
		},
		roleGrants: func(roleID int64) ([]Grant, error) {
			return []Grant{{Name: PermManageProject, Scope: ScopeWorkspace}}, nil
		},
	}
	c := NewChecker(st, WithLogger(quietLogger()))

	d := c.Check(context.Background(), 7, PermManageProject, ScopeProject, 1)
	assert.False(t, d.Allowed)
}

func TestCheckOwnershipAllowListed(t *testing.T) {
	st := &fakeStore{
		resourceOwner: func(scope Scope, resourceID int64) (int64, bool, error) {
			return 7, true, nil
		},
	}
	c := NewChecker(st, WithLogger(quietLogger()))

	d := c.Check(context.Background(), 7, PermEditPage, ScopePage, 9)
	require.True(t, d.Allowed)
	assert.Equal(t, SourceOwnership, d.Source)
}

func TestCheckOwnershipOutsideAllowListDenied(t *testing.T) {
	st := &fakeStore{
		resourceOwner: func(scope Scope, resourceID int64) (int64, bool, error) {
			return 7, true, nil
		},
	}
	c := NewChecker(st, WithLogger(quietLogger()))

	// manage:roles is not ownership-implied at any scope, so the ownership
	// resolver must not even be consulted.
	d := c.Check(context.Background(), 7, PermManageRoles, ScopeWorkspace, 9)
	assert.False(t, d.Allowed)
	assert.Zero(t, st.ownerCalls)
}

func TestCheckNonOwnerDenied(t *testing.T) {
	st := &fakeStore{
		resourceOwner: func(scope Scope, resourceID int64) (int64, bool, error) {
			return 99, true, nil
		},
	}
	c := NewChecker(st, WithLogger(quietLogger()))

	d := c.Check(context.Background(), 7, PermDeletePage, ScopePage, 9)
	assert.False(t, d.Allowed)
	assert.Equal(t, SourceNone, d.Source)
	assert.NotEmpty(t, d.Reason)
}

func TestCheckDirectGrantOnlyAtProjectScope(t *testing.T) {
	st := &fakeStore{
		directGrants: func(userID, projectID int64) ([]Grant, error) {
			t.Fatal("direct grants must not be consulted outside project scope")
			return nil, nil
		},
	}
	c := NewChecker(st, WithLogger(quietLogger()))

	d := c.Check(context.Background(), 7, PermManageWorkspace, ScopeWorkspace, 1)
	assert.False(t, d.Allowed)
}

func TestCheckResolverErrorDeniesButContinues(t *testing.T) {
	// A failing direct resolver must not poison the evaluation: the role
	// resolver can still allow.
	st := &fakeStore{
		directGrants: func(userID, projectID int64) ([]Grant, error) {
			return nil, errors.New("connection reset")
		},
		membershipRole: func(scope Scope, userID, resourceID int64) (int64, bool, error) {
			return 5, true, nil
		},
		roleGrants: func(roleID int64) ([]Grant, error) {
			return []Grant{{Name: PermEditProject, Scope: ScopeProject}}, nil
		},
	}
	c := NewChecker(st, WithLogger(quietLogger()))

	d := c.Check(context.Background(), 7, PermEditProject, ScopeProject, 42)
	require.True(t, d.Allowed)
	assert.Equal(t, SourceRole, d.Source)
}

func TestCheckAllResolversFailingDenies(t *testing.T) {
	boom := errors.New("db down")
	st := &fakeStore{
		directGrants: func(userID, projectID int64) ([]Grant, error) {
			return nil, boom
		},
		membershipRole: func(scope Scope, userID, resourceID int64) (int64, bool, error) {
			return 0, false, boom
		},
		resourceOwner: func(scope Scope, resourceID int64) (int64, bool, error) {
			return 0, false, boom
		},
	}
	c := NewChecker(st, WithLogger(quietLogger()))

	d := c.Check(context.Background(), 7, PermEditProject, ScopeProject, 42)
	assert.False(t, d.Allowed)
}

func TestCheckCachesDecisions(t *testing.T) {
	st := &fakeStore{
		directGrants: func(userID, projectID int64) ([]Grant, error) {
			return []Grant{{Name: PermEditProject, Scope: ScopeProject}}, nil
		},
	}
	c := NewChecker(st, WithLogger(quietLogger()), WithCache(NewLRUCache(16, time.Minute)))

	ctx := context.Background()
	first := c.Check(ctx, 7, PermEditProject, ScopeProject, 42)
	second := c.Check(ctx, 7, PermEditProject, ScopeProject, 42)

	require.True(t, first.Allowed)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, st.directCalls)
}

func TestInvalidateUserDropsCachedDecisions(t *testing.T) {
	st := &fakeStore{
		directGrants: func(userID, projectID int64) ([]Grant, error) {
			return []Grant{{Name: PermEditProject, Scope: ScopeProject}}, nil
		},
	}
	c := NewChecker(st, WithLogger(quietLogger()), WithCache(NewLRUCache(16, time.Minute)))

	ctx := context.Background()
	c.Check(ctx, 7, PermEditProject, ScopeProject, 42)
	c.InvalidateUser(ctx, 7)
	c.Check(ctx, 7, PermEditProject, ScopeProject, 42)

	assert.Equal(t, 2, st.directCalls)
}

func TestInvalidateUserLeavesOtherUsersCached(t *testing.T) {
	st := &fakeStore{
		directGrants: func(userID, projectID int64) ([]Grant, error) {
			return []Grant{{Name: PermEditProject, Scope: ScopeProject}}, nil
		},
	}
	c := NewChecker(st, WithLogger(quietLogger()), WithCache(NewLRUCache(16, time.Minute)))

	ctx := context.Background()
	c.Check(ctx, 7, PermEditProject, ScopeProject, 42)
	c.Check(ctx, 8, PermEditProject, ScopeProject, 42)
	require.Equal(t, 2, st.directCalls)

	c.InvalidateUser(ctx, 7)
	c.Check(ctx, 8, PermEditProject, ScopeProject, 42)
	assert.Equal(t, 2, st.directCalls, "user 8 should still be served from cache")
}

func TestCheckMultiple(t *testing.T) {
	st := &fakeStore{
		directGrants: func(userID, projectID int64) ([]Grant, error) {
			if projectID == 1 {
				return []Grant{{Name: PermEditProject, Scope: ScopeProject}}, nil
			}
			return nil, nil
		},
	}
	c := NewChecker(st, WithLogger(quietLogger()))
	ctx := context.Background()

	granted := Requirement{Permission: PermEditProject, Scope: ScopeProject, ResourceID: 1}
	missing := Requirement{Permission: PermEditProject, Scope: ScopeProject, ResourceID: 2}

	assert.True(t, c.CheckMultiple(ctx, 7, []Requirement{granted, missing}, LogicOR))
	assert.False(t, c.CheckMultiple(ctx, 7, []Requirement{granted, missing}, LogicAND))
	assert.True(t, c.CheckMultiple(ctx, 7, []Requirement{granted}, LogicAND))
	assert.False(t, c.CheckMultiple(ctx, 7, []Requirement{missing, missing}, LogicOR))

	// Empty requirement sets: vacuous truth for AND, nothing to satisfy
	// for OR.
	assert.True(t, c.CheckMultiple(ctx, 7, nil, LogicAND))
	assert.False(t, c.CheckMultiple(ctx, 7, nil, LogicOR))
}

func TestUserPermissionsGroupsBySource(t *testing.T) {
	st := &fakeStore{
		directGrants: func(userID, projectID int64) ([]Grant, error) {
			return []Grant{{Name: PermEditProject, Scope: ScopeProject}}, nil
		},
		membershipRole: func(scope Scope, userID, resourceID int64) (int64, bool, error) {
			return 3, true, nil
		},
		roleGrants: func(roleID int64) ([]Grant, error) {
			return []Grant{
				{Name: PermManageProject, Scope: ScopeProject},
				{Name: PermManageWorkspace, Scope: ScopeWorkspace}, // wrong scope, filtered
			}, nil
		},
		resourceOwner: func(scope Scope, resourceID int64) (int64, bool, error) {
			return 7, true, nil
		},
	}
	c := NewChecker(st, WithLogger(quietLogger()))

	set := c.UserPermissions(context.Background(), 7, ScopeProject, 42)

	assert.Contains(t, set.Direct, PermEditProject)
	assert.Contains(t, set.Role, PermManageProject)
	assert.NotContains(t, set.Role, PermManageWorkspace)
	for _, name := range OwnershipPermissions(ScopeProject) {
		assert.Contains(t, set.Ownership, name)
	}

	assert.True(t, set.Has(PermEditProject))
	assert.True(t, set.Has(PermDeleteProject))
	assert.False(t, set.Has(PermManageWorkspace))

	all := set.All()
	assert.Contains(t, all, PermEditProject)
	assert.Contains(t, all, PermManageProject)
}

func TestUserPermissionsSkipsDirectOutsideProjectScope(t *testing.T) {
	st := &fakeStore{
		directGrants: func(userID, projectID int64) ([]Grant, error) {
			t.Fatal("direct grants must not be enumerated at workspace scope")
			return nil, nil
		},
	}
	c := NewChecker(st, WithLogger(quietLogger()))

	set := c.UserPermissions(context.Background(), 7, ScopeWorkspace, 1)
	assert.Empty(t, set.Direct)
}

func TestOwnershipImplies(t *testing.T) {
	assert.True(t, OwnershipImplies(ScopeWorkspace, PermManageWorkspace))
	assert.True(t, OwnershipImplies(ScopePage, PermSharePage))
	assert.False(t, OwnershipImplies(ScopeWorkspace, PermManageRoles))
	assert.False(t, OwnershipImplies(ScopePage, PermEditSection))
	assert.False(t, OwnershipImplies(Scope("unknown"), PermEditPage))
}

func TestScopeValid(t *testing.T) {
	assert.True(t, ScopeWorkspace.Valid())
	assert.True(t, ScopePage.Valid())
	assert.False(t, Scope("org").Valid())
	assert.False(t, Scope("").Valid())
}
