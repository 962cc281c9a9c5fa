// Package store persists the RBAC entity graph: modules, permissions,
// roles, groups, users and their join relationships.
package store

import (
	"fmt"
	"time"

	"github.com/wardenhq/warden/internal/platform/httpx"
)

// Action is one of the four capability verbs. Actions are independent;
// granting one never implies another.
type Action string

// Supported actions.
const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Actions lists every valid action in a stable order.
func Actions() []Action {
	return []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}
}

// Valid reports whether the action is a member of the enum.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// ParseAction validates a raw action string.
func ParseAction(raw string) (Action, error) {
	a := Action(raw)
	if !a.Valid() {
		return "", fmt.Errorf("store: invalid action %q: %w", raw, httpx.ErrValidation)
	}
	return a, nil
}

// Module represents a named resource domain subject to access control.
type Module struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Permission is a (module, action) capability unit owned by one module.
type Permission struct {
	ID         int64     `json:"id"`
	ModuleID   int64     `json:"moduleId"`
	ModuleName string    `json:"moduleName"`
	Action     Action    `json:"action"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Role is a named bundle of permissions.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Group joins users to roles.
type Group struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// User is an account known to the authorization engine. CredentialRef is
// an opaque credential handle owned by the identity store.
type User struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	CredentialRef string    `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ModuleDetail includes the permissions owned by a module.
type ModuleDetail struct {
	Module
	Permissions []Permission `json:"permissions"`
}

// RoleDetail includes a role's immediate relationship collections.
type RoleDetail struct {
	Role
	Permissions []Permission `json:"permissions"`
	Groups      []Group      `json:"groups"`
}

// GroupDetail includes a group's immediate relationship collections.
type GroupDetail struct {
	Group
	Users []User `json:"users"`
	Roles []Role `json:"roles"`
}

// UserDetail includes the groups a user belongs to.
type UserDetail struct {
	User
	Groups []Group `json:"groups"`
}

// Grant is a resolved (module name, action) capability.
type Grant struct {
	Module string `json:"module"`
	Action Action `json:"action"`
}

// String renders the grant in the console's "Module:action" form.
func (g Grant) String() string {
	return g.Module + ":" + string(g.Action)
}

// GrantPath records one group/role chain contributing a grant to a user.
type GrantPath struct {
	GroupName string
	RoleName  string
	Module    string
	Action    Action
}

// ListQuery narrows list reads.
type ListQuery struct {
	Search  string
	Page    int
	PerPage int
}

// Normalize applies list defaults and bounds.
func (q ListQuery) Normalize() ListQuery {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PerPage <= 0 {
		q.PerPage = 50
	}
	if q.PerPage > 200 {
		q.PerPage = 200
	}
	return q
}

// Offset converts page/per-page into a SQL offset.
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.PerPage
}
