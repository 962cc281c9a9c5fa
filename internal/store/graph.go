package store

import (
	"context"
)

// Graph reads used by the permission resolver. The resolver traverses by
// id lookup only; no entity objects cross this boundary.

// UserExists reports whether the user id is known.
func (s *Store) UserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, mapError(err, "user exists")
	}
	return exists, nil
}

// GroupIDsForUser lists the groups the user belongs to.
func (s *Store) GroupIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT group_id FROM group_users WHERE user_id = $1`, userID)
	if err != nil {
		return nil, mapError(err, "groups for user")
	}
	ids, err := scanIDs(rows)
	return ids, mapError(err, "groups for user")
}

// RoleIDsForGroups lists the distinct roles assigned across the groups.
func (s *Store) RoleIDsForGroups(ctx context.Context, groupIDs []int64) ([]int64, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT role_id FROM group_roles WHERE group_id = ANY($1)`, groupIDs)
	if err != nil {
		return nil, mapError(err, "roles for groups")
	}
	ids, err := scanIDs(rows)
	return ids, mapError(err, "roles for groups")
}

// GrantsForRoles resolves the distinct (module name, action) pairs bundled
// across the roles.
func (s *Store) GrantsForRoles(ctx context.Context, roleIDs []int64) ([]Grant, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT m.name, p.action
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		JOIN modules m ON m.id = p.module_id
		WHERE rp.role_id = ANY($1)`, roleIDs)
	if err != nil {
		return nil, mapError(err, "grants for roles")
	}
	defer rows.Close()
	var grants []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.Module, &g.Action); err != nil {
			return nil, mapError(err, "scan grant")
		}
		grants = append(grants, g)
	}
	return grants, mapError(rows.Err(), "grants for roles")
}

// GrantPathsForUser lists every group/role chain contributing a grant to
// the user, for explain-mode simulation.
func (s *Store) GrantPathsForUser(ctx context.Context, userID int64) ([]GrantPath, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT g.name, r.name, m.name, p.action
		FROM group_users gu
		JOIN groups g ON g.id = gu.group_id
		JOIN group_roles gr ON gr.group_id = gu.group_id
		JOIN roles r ON r.id = gr.role_id
		JOIN role_permissions rp ON rp.role_id = r.id
		JOIN permissions p ON p.id = rp.permission_id
		JOIN modules m ON m.id = p.module_id
		WHERE gu.user_id = $1
		ORDER BY m.name, p.action, r.name, g.name`, userID)
	if err != nil {
		return nil, mapError(err, "grant paths for user")
	}
	defer rows.Close()
	var paths []GrantPath
	for rows.Next() {
		var p GrantPath
		if err := rows.Scan(&p.GroupName, &p.RoleName, &p.Module, &p.Action); err != nil {
			return nil, mapError(err, "scan grant path")
		}
		paths = append(paths, p)
	}
	return paths, mapError(rows.Err(), "grant paths for user")
}
