// Package gateway serializes entity and relationship mutations, keeping
// the authorization cache coherent: every mutation invalidates all
// potentially affected users before it acknowledges success.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/wardenhq/warden/internal/platform/httpx"
	"github.com/wardenhq/warden/internal/store"
	"github.com/wardenhq/warden/jobs"
)

// Store is the slice of the entity store the gateway mutates. Multi-step
// deletes are transactional inside the store and report the users whose
// effective permissions change.
type Store interface {
	CreateModule(ctx context.Context, name, description string) (store.Module, error)
	UpdateModule(ctx context.Context, id int64, name, description string) (store.Module, error)
	DeleteModule(ctx context.Context, id int64) error
	DeleteModuleCascade(ctx context.Context, id int64) ([]int64, error)

	CreatePermission(ctx context.Context, moduleID int64, action store.Action) (store.Permission, error)
	UpdatePermission(ctx context.Context, id, moduleID int64, action store.Action) (store.Permission, error)
	DeletePermissionDetach(ctx context.Context, id int64) ([]int64, error)
	UserIDsForPermission(ctx context.Context, permissionID int64) ([]int64, error)

	CreateRole(ctx context.Context, name, description string) (store.Role, error)
	UpdateRole(ctx context.Context, id int64, name, description string) (store.Role, error)
	DeleteRoleDetach(ctx context.Context, id int64) ([]int64, error)
	UserIDsForRole(ctx context.Context, roleID int64) ([]int64, error)

	CreateGroup(ctx context.Context, name, description string) (store.Group, error)
	UpdateGroup(ctx context.Context, id int64, name, description string) (store.Group, error)
	DeleteGroupDetach(ctx context.Context, id int64) ([]int64, error)
	UserIDsForGroup(ctx context.Context, groupID int64) ([]int64, error)

	CreateUser(ctx context.Context, username, credentialRef string) (store.User, error)
	UpdateUser(ctx context.Context, id int64, username, credentialRef string) (store.User, error)
	DeleteUserDetach(ctx context.Context, id int64) error

	AttachPermission(ctx context.Context, roleID, permissionID int64) error
	DetachPermission(ctx context.Context, roleID, permissionID int64) error
	AttachGroupRole(ctx context.Context, groupID, roleID int64) error
	DetachGroupRole(ctx context.Context, groupID, roleID int64) error
	AttachGroupUser(ctx context.Context, groupID, userID int64) error
	DetachGroupUser(ctx context.Context, groupID, userID int64) error
}

// Invalidator drops cached permission sets. Satisfied by authz.Service.
type Invalidator interface {
	Invalidate(userIDs ...int64)
	InvalidateAll()
}

// Enqueuer submits background tasks. Satisfied by *asynq.Client.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Gateway is the single entry point for mutations. A global mutex
// serializes them so overlapping invalidations are never lost.
type Gateway struct {
	mu          sync.Mutex
	store       Store
	invalidator Invalidator
	enqueuer    Enqueuer
	logger      *slog.Logger
}

// New constructs a Gateway. The enqueuer may be nil; audit records are
// then skipped.
func New(st Store, invalidator Invalidator, enqueuer Enqueuer, logger *slog.Logger) *Gateway {
	return &Gateway{store: st, invalidator: invalidator, enqueuer: enqueuer, logger: logger}
}

// run drives the mutation state machine. The invalidation step always
// precedes the successful return; apply errors abort with no invalidation
// because the store left no partial write behind.
func (g *Gateway) run(m *Mutation, validate func() error, apply func() ([]int64, error), all bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	m.advance(StateValidating)
	if err := validate(); err != nil {
		m.advance(StateRejected)
		return err
	}

	m.advance(StateApplying)
	affected, err := apply()
	if err != nil {
		m.advance(StateRejected)
		return err
	}

	m.advance(StateInvalidating)
	if all {
		g.invalidator.InvalidateAll()
	} else if len(affected) > 0 {
		g.invalidator.Invalidate(affected...)
	}

	m.advance(StateCommitted)
	g.audit(m)
	return nil
}

func (g *Gateway) audit(m *Mutation) {
	if g.enqueuer == nil {
		return
	}
	task, err := jobs.NewAuditRecordTask(jobs.AuditRecordPayload{
		MutationID: m.ID,
		ActorID:    m.ActorID,
		Verb:       m.Verb,
		Entity:     m.Entity,
		EntityID:   m.EntityID,
		OccurredAt: time.Now().UTC(),
	})
	if err == nil {
		_, err = g.enqueuer.Enqueue(task)
	}
	if err != nil && g.logger != nil {
		g.logger.Warn("enqueue audit record",
			slog.String("mutation_id", m.ID), slog.Any("error", err))
	}
}

func requireName(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("gateway: %s name required: %w", kind, httpx.ErrValidation)
	}
	return nil
}

func requireIDs(ids ...int64) error {
	for _, id := range ids {
		if id <= 0 {
			return fmt.Errorf("gateway: invalid id %d: %w", id, httpx.ErrValidation)
		}
	}
	return nil
}

// CreateModule creates a resource module. No cached set can reference a
// brand-new module, so nothing is invalidated.
func (g *Gateway) CreateModule(ctx context.Context, actorID int64, name, description string) (store.Module, error) {
	var created store.Module
	m := newMutation(actorID, "create", "module")
	err := g.run(m,
		func() error { return requireName("module", name) },
		func() ([]int64, error) {
			var err error
			created, err = g.store.CreateModule(ctx, name, description)
			m.EntityID = created.ID
			return nil, err
		}, false)
	return created, err
}

// UpdateModule renames a module. The module name is part of every grant's
// identity, so the whole cache is dropped.
func (g *Gateway) UpdateModule(ctx context.Context, actorID, id int64, name, description string) (store.Module, error) {
	var updated store.Module
	m := newMutation(actorID, "update", "module")
	m.EntityID = id
	err := g.run(m,
		func() error {
			if err := requireIDs(id); err != nil {
				return err
			}
			return requireName("module", name)
		},
		func() ([]int64, error) {
			var err error
			updated, err = g.store.UpdateModule(ctx, id, name, description)
			return nil, err
		}, true)
	return updated, err
}

// DeleteModule removes a module. Without cascade it fails with Conflict
// while the module owns permissions; with cascade the owned permissions
// are deleted too and every user reachable through them is invalidated.
func (g *Gateway) DeleteModule(ctx context.Context, actorID, id int64, cascade bool) error {
	m := newMutation(actorID, "delete", "module")
	m.EntityID = id
	return g.run(m,
		func() error { return requireIDs(id) },
		func() ([]int64, error) {
			if cascade {
				return g.store.DeleteModuleCascade(ctx, id)
			}
			return nil, g.store.DeleteModule(ctx, id)
		}, false)
}

// CreatePermission registers a (module, action) capability.
func (g *Gateway) CreatePermission(ctx context.Context, actorID, moduleID int64, action store.Action) (store.Permission, error) {
	var created store.Permission
	m := newMutation(actorID, "create", "permission")
	err := g.run(m,
		func() error {
			if err := requireIDs(moduleID); err != nil {
				return err
			}
			if !action.Valid() {
				return fmt.Errorf("gateway: invalid action %q: %w", action, httpx.ErrValidation)
			}
			return nil
		},
		func() ([]int64, error) {
			var err error
			created, err = g.store.CreatePermission(ctx, moduleID, action)
			m.EntityID = created.ID
			return nil, err
		}, false)
	return created, err
}

// UpdatePermission retargets a permission; everyone holding it through any
// role is invalidated.
func (g *Gateway) UpdatePermission(ctx context.Context, actorID, id, moduleID int64, action store.Action) (store.Permission, error) {
	var updated store.Permission
	m := newMutation(actorID, "update", "permission")
	m.EntityID = id
	err := g.run(m,
		func() error {
			if err := requireIDs(id, moduleID); err != nil {
				return err
			}
			if !action.Valid() {
				return fmt.Errorf("gateway: invalid action %q: %w", action, httpx.ErrValidation)
			}
			return nil
		},
		func() ([]int64, error) {
			affected, err := g.store.UserIDsForPermission(ctx, id)
			if err != nil {
				return nil, err
			}
			updated, err = g.store.UpdatePermission(ctx, id, moduleID, action)
			return affected, err
		}, false)
	return updated, err
}

// DeletePermission removes a permission and detaches it from all roles.
func (g *Gateway) DeletePermission(ctx context.Context, actorID, id int64) error {
	m := newMutation(actorID, "delete", "permission")
	m.EntityID = id
	return g.run(m,
		func() error { return requireIDs(id) },
		func() ([]int64, error) { return g.store.DeletePermissionDetach(ctx, id) },
		false)
}

// CreateRole creates a role.
func (g *Gateway) CreateRole(ctx context.Context, actorID int64, name, description string) (store.Role, error) {
	var created store.Role
	m := newMutation(actorID, "create", "role")
	err := g.run(m,
		func() error { return requireName("role", name) },
		func() ([]int64, error) {
			var err error
			created, err = g.store.CreateRole(ctx, name, description)
			m.EntityID = created.ID
			return nil, err
		}, false)
	return created, err
}

// UpdateRole renames a role. Role names do not appear in grants, so no
// cached set changes.
func (g *Gateway) UpdateRole(ctx context.Context, actorID, id int64, name, description string) (store.Role, error) {
	var updated store.Role
	m := newMutation(actorID, "update", "role")
	m.EntityID = id
	err := g.run(m,
		func() error {
			if err := requireIDs(id); err != nil {
				return err
			}
			return requireName("role", name)
		},
		func() ([]int64, error) {
			var err error
			updated, err = g.store.UpdateRole(ctx, id, name, description)
			return nil, err
		}, false)
	return updated, err
}

// DeleteRole removes a role; users holding it through any group lose its
// grants.
func (g *Gateway) DeleteRole(ctx context.Context, actorID, id int64) error {
	m := newMutation(actorID, "delete", "role")
	m.EntityID = id
	return g.run(m,
		func() error { return requireIDs(id) },
		func() ([]int64, error) { return g.store.DeleteRoleDetach(ctx, id) },
		false)
}

// CreateGroup creates a group.
func (g *Gateway) CreateGroup(ctx context.Context, actorID int64, name, description string) (store.Group, error) {
	var created store.Group
	m := newMutation(actorID, "create", "group")
	err := g.run(m,
		func() error { return requireName("group", name) },
		func() ([]int64, error) {
			var err error
			created, err = g.store.CreateGroup(ctx, name, description)
			m.EntityID = created.ID
			return nil, err
		}, false)
	return created, err
}

// UpdateGroup renames a group.
func (g *Gateway) UpdateGroup(ctx context.Context, actorID, id int64, name, description string) (store.Group, error) {
	var updated store.Group
	m := newMutation(actorID, "update", "group")
	m.EntityID = id
	err := g.run(m,
		func() error {
			if err := requireIDs(id); err != nil {
				return err
			}
			return requireName("group", name)
		},
		func() ([]int64, error) {
			var err error
			updated, err = g.store.UpdateGroup(ctx, id, name, description)
			return nil, err
		}, false)
	return updated, err
}

// DeleteGroup removes a group; its members lose the grants it carried.
func (g *Gateway) DeleteGroup(ctx context.Context, actorID, id int64) error {
	m := newMutation(actorID, "delete", "group")
	m.EntityID = id
	return g.run(m,
		func() error { return requireIDs(id) },
		func() ([]int64, error) { return g.store.DeleteGroupDetach(ctx, id) },
		false)
}

// CreateUser registers a user with an opaque credential reference.
func (g *Gateway) CreateUser(ctx context.Context, actorID int64, username, credentialRef string) (store.User, error) {
	var created store.User
	m := newMutation(actorID, "create", "user")
	err := g.run(m,
		func() error { return requireName("user", username) },
		func() ([]int64, error) {
			var err error
			created, err = g.store.CreateUser(ctx, username, credentialRef)
			m.EntityID = created.ID
			return nil, err
		}, false)
	return created, err
}

// UpdateUser changes username or credential reference; grants are keyed by
// id and unaffected.
func (g *Gateway) UpdateUser(ctx context.Context, actorID, id int64, username, credentialRef string) (store.User, error) {
	var updated store.User
	m := newMutation(actorID, "update", "user")
	m.EntityID = id
	err := g.run(m,
		func() error {
			if err := requireIDs(id); err != nil {
				return err
			}
			return requireName("user", username)
		},
		func() ([]int64, error) {
			var err error
			updated, err = g.store.UpdateUser(ctx, id, username, credentialRef)
			return nil, err
		}, false)
	return updated, err
}

// DeleteUser removes a user and that user's cached set.
func (g *Gateway) DeleteUser(ctx context.Context, actorID, id int64) error {
	m := newMutation(actorID, "delete", "user")
	m.EntityID = id
	return g.run(m,
		func() error { return requireIDs(id) },
		func() ([]int64, error) {
			if err := g.store.DeleteUserDetach(ctx, id); err != nil {
				return nil, err
			}
			return []int64{id}, nil
		}, false)
}

// AssignRolePermission bundles a permission into a role. Idempotent.
func (g *Gateway) AssignRolePermission(ctx context.Context, actorID, roleID, permissionID int64) error {
	m := newMutation(actorID, "assign", "role_permission")
	m.EntityID = roleID
	return g.run(m,
		func() error { return requireIDs(roleID, permissionID) },
		func() ([]int64, error) {
			if err := g.store.AttachPermission(ctx, roleID, permissionID); err != nil {
				return nil, err
			}
			return g.store.UserIDsForRole(ctx, roleID)
		}, false)
}

// UnassignRolePermission removes a permission from a role. Idempotent.
func (g *Gateway) UnassignRolePermission(ctx context.Context, actorID, roleID, permissionID int64) error {
	m := newMutation(actorID, "unassign", "role_permission")
	m.EntityID = roleID
	return g.run(m,
		func() error { return requireIDs(roleID, permissionID) },
		func() ([]int64, error) {
			affected, err := g.store.UserIDsForRole(ctx, roleID)
			if err != nil {
				return nil, err
			}
			return affected, g.store.DetachPermission(ctx, roleID, permissionID)
		}, false)
}

// AssignGroupRole grants a role to a group's members. Idempotent.
func (g *Gateway) AssignGroupRole(ctx context.Context, actorID, groupID, roleID int64) error {
	m := newMutation(actorID, "assign", "group_role")
	m.EntityID = groupID
	return g.run(m,
		func() error { return requireIDs(groupID, roleID) },
		func() ([]int64, error) {
			if err := g.store.AttachGroupRole(ctx, groupID, roleID); err != nil {
				return nil, err
			}
			return g.store.UserIDsForGroup(ctx, groupID)
		}, false)
}

// UnassignGroupRole removes a role from a group. Idempotent.
func (g *Gateway) UnassignGroupRole(ctx context.Context, actorID, groupID, roleID int64) error {
	m := newMutation(actorID, "unassign", "group_role")
	m.EntityID = groupID
	return g.run(m,
		func() error { return requireIDs(groupID, roleID) },
		func() ([]int64, error) {
			affected, err := g.store.UserIDsForGroup(ctx, groupID)
			if err != nil {
				return nil, err
			}
			return affected, g.store.DetachGroupRole(ctx, groupID, roleID)
		}, false)
}

// AssignGroupUser adds a user to a group; only that user is affected.
func (g *Gateway) AssignGroupUser(ctx context.Context, actorID, groupID, userID int64) error {
	m := newMutation(actorID, "assign", "group_user")
	m.EntityID = groupID
	return g.run(m,
		func() error { return requireIDs(groupID, userID) },
		func() ([]int64, error) {
			if err := g.store.AttachGroupUser(ctx, groupID, userID); err != nil {
				return nil, err
			}
			return []int64{userID}, nil
		}, false)
}

// UnassignGroupUser removes a user from a group.
func (g *Gateway) UnassignGroupUser(ctx context.Context, actorID, groupID, userID int64) error {
	m := newMutation(actorID, "unassign", "group_user")
	m.EntityID = groupID
	return g.run(m,
		func() error { return requireIDs(groupID, userID) },
		func() ([]int64, error) {
			return []int64{userID}, g.store.DetachGroupUser(ctx, groupID, userID)
		}, false)
}
