package rbac

import (
	"errors"
	"fmt"
	"time"
)

// ResourceType defines a public type used by authcore APIs.
//
// ResourceType instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ResourceType string

const (
	// ResourceSystem is an exported constant or variable used by the authentication engine.
	ResourceSystem ResourceType = "system"
	// ResourceOrganization is an exported constant or variable used by the authentication engine.
	ResourceOrganization ResourceType = "organization"
	// ResourceProject is an exported constant or variable used by the authentication engine.
	ResourceProject ResourceType = "project"
	// ResourceTask is an exported constant or variable used by the authentication engine.
	ResourceTask ResourceType = "task"
	// ResourceUser is an exported constant or variable used by the authentication engine.
	ResourceUser ResourceType = "user"
)

// Action defines a public type used by authcore APIs.
//
// Action instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Action string

const (
	// ActionCreate is an exported constant or variable used by the authentication engine.
	ActionCreate Action = "create"
	// ActionRead is an exported constant or variable used by the authentication engine.
	ActionRead Action = "read"
	// ActionUpdate is an exported constant or variable used by the authentication engine.
	ActionUpdate Action = "update"
	// ActionDelete is an exported constant or variable used by the authentication engine.
	ActionDelete Action = "delete"
	// ActionManage is an exported constant or variable used by the authentication engine.
	ActionManage Action = "manage"
	// ActionInvite is an exported constant or variable used by the authentication engine.
	ActionInvite Action = "invite"
	// ActionAssign is an exported constant or variable used by the authentication engine.
	ActionAssign Action = "assign"
)

// AdminOverride is the universal system-admin permission name. A principal
// whose resolved grant set contains it passes every check.
const AdminOverride = "system.admin"

// Permission is an immutable catalog entry named "resource_type.action".
type Permission struct {
	ID           string
	Name         string
	ResourceType ResourceType
	Action       Action
	SystemOnly   bool
}

// PermissionName composes the canonical "resource_type.action" name.
func PermissionName(rt ResourceType, action Action) string {
	return fmt.Sprintf("%s.%s", rt, action)
}

// Role defines a public type used by authcore APIs.
//
// Role instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Role struct {
	ID        string
	Name      string
	Scope     ResourceType
	IsActive  bool
	IsSystem  bool
	CreatedAt time.Time
}

// RolePermission is an append-only grant linking a role to a permission.
type RolePermission struct {
	RoleID       string
	PermissionID string
	GrantedBy    string
	GrantedAt    time.Time
}

// ErrSystemScopeResource is an exported constant or variable used by the authentication engine.
var ErrSystemScopeResource = errors.New("rbac: system-scoped assignment must not name a resource")

// ErrMissingResource is an exported constant or variable used by the authentication engine.
var ErrMissingResource = errors.New("rbac: resource-scoped assignment requires a resource id")

// ErrExpiryBeforeGrant is an exported constant or variable used by the authentication engine.
var ErrExpiryBeforeGrant = errors.New("rbac: expiry must be after grant time")

// Assignment binds a principal to a role within an optional resource context.
//
// Assignment instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Assignment struct {
	ID           string
	PrincipalID  string
	RoleID       string
	ResourceType ResourceType
	ResourceID   string
	IsActive     bool
	GrantedAt    time.Time
	ExpiresAt    *time.Time
}

// NewAssignment describes the newassignment operation and its observable behavior.
//
// NewAssignment may return an error when input validation, dependency calls, or security checks fail.
// NewAssignment does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewAssignment(principalID, roleID string, rt ResourceType, resourceID string, expiresAt *time.Time) (*Assignment, error) {
	if principalID == "" || roleID == "" {
		return nil, errors.New("rbac: principal and role are required")
	}
	if rt == ResourceSystem && resourceID != "" {
		return nil, ErrSystemScopeResource
	}
	if rt != ResourceSystem && resourceID == "" {
		return nil, ErrMissingResource
	}

	now := time.Now()
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, ErrExpiryBeforeGrant
	}

	return &Assignment{
		PrincipalID:  principalID,
		RoleID:       roleID,
		ResourceType: rt,
		ResourceID:   resourceID,
		IsActive:     true,
		GrantedAt:    now,
		ExpiresAt:    expiresAt,
	}, nil
}

// Valid reports whether the assignment is active and unexpired at t.
func (a *Assignment) Valid(t time.Time) bool {
	if !a.IsActive {
		return false
	}
	if a.ExpiresAt != nil && !a.ExpiresAt.After(t) {
		return false
	}
	return true
}

// Matches reports whether the assignment covers a request against (rt, resourceID).
//
// System-scoped grants cover every request. A system-scoped request is covered
// ONLY by system-scoped grants. Everything else requires an exact scope and
// resource match.
func (a *Assignment) Matches(rt ResourceType, resourceID string) bool {
	if a.ResourceType == ResourceSystem {
		return true
	}
	if rt == ResourceSystem {
		return false
	}
	return a.ResourceType == rt && a.ResourceID == resourceID
}
