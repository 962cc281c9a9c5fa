// Package authz computes and caches effective permission sets and is the
// single decision point for authorization checks.
package authz

import (
	"context"
	"fmt"
	"sort"

	"github.com/wardenhq/warden/internal/platform/httpx"
	"github.com/wardenhq/warden/internal/store"
)

// Graph is the id-keyed view of the entity store the resolver traverses.
type Graph interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
	GroupIDsForUser(ctx context.Context, userID int64) ([]int64, error)
	RoleIDsForGroups(ctx context.Context, groupIDs []int64) ([]int64, error)
	GrantsForRoles(ctx context.Context, roleIDs []int64) ([]store.Grant, error)
	GrantPathsForUser(ctx context.Context, userID int64) ([]store.GrantPath, error)
}

// PermissionSet is the effective set of grants a user holds.
type PermissionSet map[store.Grant]struct{}

// Has reports membership of the exact (module, action) pair. Actions carry
// no hierarchy; update does not imply read.
func (s PermissionSet) Has(module string, action store.Action) bool {
	_, ok := s[store.Grant{Module: module, Action: action}]
	return ok
}

// Strings renders the set as sorted "Module:action" strings.
func (s PermissionSet) Strings() []string {
	out := make([]string, 0, len(s))
	for g := range s {
		out = append(out, g.String())
	}
	sort.Strings(out)
	return out
}

// Resolver computes effective permission sets by traversing the
// user -> group -> role -> permission graph.
type Resolver struct {
	graph Graph
}

// NewResolver constructs a Resolver over the graph.
func NewResolver(graph Graph) *Resolver {
	return &Resolver{graph: graph}
}

// Resolve returns the user's effective permission set, or ErrNotFound when
// the user does not exist. The traversal visits each group and role at
// most once; a role reachable through several groups contributes its
// grants a single time.
func (r *Resolver) Resolve(ctx context.Context, userID int64) (PermissionSet, error) {
	exists, err := r.graph.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("authz: user %d: %w", userID, httpx.ErrNotFound)
	}

	groupIDs, err := r.graph.GroupIDsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	groupIDs = dedupe(groupIDs)

	roleIDs, err := r.graph.RoleIDsForGroups(ctx, groupIDs)
	if err != nil {
		return nil, err
	}
	roleIDs = dedupe(roleIDs)

	grants, err := r.graph.GrantsForRoles(ctx, roleIDs)
	if err != nil {
		return nil, err
	}

	set := make(PermissionSet, len(grants))
	for _, g := range grants {
		set[g] = struct{}{}
	}
	return set, nil
}

// dedupe keeps the first occurrence of each id, acting as the visited set
// for the traversal.
func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
