package rbac

import (
	"context"
	"time"
)

// Store loads assignment and grant rows for resolution.
//
// ActiveAssignments returns the principal's assignments with is_active=true;
// expiry filtering is the resolver's job so clock handling stays in one place.
// PermissionNames returns the permission names granted to a set of roles.
type Store interface {
	ActiveAssignments(ctx context.Context, principalID string) ([]Assignment, error)
	PermissionNames(ctx context.Context, roleIDs []string) ([]string, error)
}

// AuditFunc receives resolution failures so deny decisions stay observable.
type AuditFunc func(principalID, permission string, err error)

// Resolver defines a public type used by authcore APIs.
//
// Resolver instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Resolver struct {
	store   Store
	onError AuditFunc
	now     func() time.Time
}

// NewResolver describes the newresolver operation and its observable behavior.
//
// NewResolver does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewResolver(store Store, onError AuditFunc) *Resolver {
	return &Resolver{
		store:   store,
		onError: onError,
		now:     time.Now,
	}
}

// HasPermission reports whether the principal holds the named permission for
// the requested resource. Storage failures resolve to deny.
//
// HasPermission does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (r *Resolver) HasPermission(ctx context.Context, principalID, permission string, rt ResourceType, resourceID string) bool {
	if principalID == "" || permission == "" {
		return false
	}

	assignments, err := r.store.ActiveAssignments(ctx, principalID)
	if err != nil {
		r.deny(principalID, permission, err)
		return false
	}

	now := r.now()
	var roleIDs []string
	for _, a := range assignments {
		if !a.Valid(now) {
			continue
		}
		if !a.Matches(rt, resourceID) {
			continue
		}
		roleIDs = append(roleIDs, a.RoleID)
	}
	if len(roleIDs) == 0 {
		return false
	}

	names, err := r.store.PermissionNames(ctx, roleIDs)
	if err != nil {
		r.deny(principalID, permission, err)
		return false
	}

	for _, name := range names {
		if name == AdminOverride {
			return true
		}
		if name == permission {
			return true
		}
	}
	return false
}

func (r *Resolver) deny(principalID, permission string, err error) {
	if r.onError != nil {
		r.onError(principalID, permission, err)
	}
}
