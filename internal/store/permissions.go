package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wardenhq/warden/internal/platform/db"
	"github.com/wardenhq/warden/internal/platform/httpx"
)

const permissionSelect = `
	SELECT p.id, p.module_id, m.name, p.action, p.created_at
	FROM permissions p
	JOIN modules m ON m.id = p.module_id`

func (s *Store) permissionsWhere(ctx context.Context, q querier, where string, args ...any) ([]Permission, error) {
	rows, err := q.Query(ctx, permissionSelect+` WHERE `+where+` ORDER BY p.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	perms := make([]Permission, 0)
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.ModuleID, &p.ModuleName, &p.Action, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// CreatePermission inserts a (module, action) capability. The pair is
// unique per module; duplicates fail with ErrDuplicate, an unknown module
// with ErrNotFound.
func (s *Store) CreatePermission(ctx context.Context, moduleID int64, action Action) (Permission, error) {
	if !action.Valid() {
		return Permission{}, fmt.Errorf("store: invalid action %q: %w", action, httpx.ErrValidation)
	}
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO permissions (module_id, action) VALUES ($1, $2) RETURNING id`,
		moduleID, action,
	).Scan(&id)
	if err != nil {
		return Permission{}, mapError(err, "create permission")
	}
	return s.GetPermission(ctx, id)
}

// GetPermission fetches a permission with its owning module name.
func (s *Store) GetPermission(ctx context.Context, id int64) (Permission, error) {
	var p Permission
	err := s.pool.QueryRow(ctx, permissionSelect+` WHERE p.id = $1`, id).
		Scan(&p.ID, &p.ModuleID, &p.ModuleName, &p.Action, &p.CreatedAt)
	if err != nil {
		return Permission{}, mapError(err, "get permission")
	}
	return p, nil
}

// ListPermissions returns permissions in creation order.
func (s *Store) ListPermissions(ctx context.Context, q ListQuery) ([]Permission, int, error) {
	q = q.Normalize()
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM permissions`).Scan(&total); err != nil {
		return nil, 0, mapError(err, "count permissions")
	}
	rows, err := s.pool.Query(ctx,
		permissionSelect+` ORDER BY p.id LIMIT $1 OFFSET $2`, q.PerPage, q.Offset())
	if err != nil {
		return nil, 0, mapError(err, "list permissions")
	}
	defer rows.Close()
	perms := make([]Permission, 0)
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.ModuleID, &p.ModuleName, &p.Action, &p.CreatedAt); err != nil {
			return nil, 0, mapError(err, "scan permission")
		}
		perms = append(perms, p)
	}
	return perms, total, mapError(rows.Err(), "list permissions")
}

// UpdatePermission moves a permission to another module/action pair.
func (s *Store) UpdatePermission(ctx context.Context, id, moduleID int64, action Action) (Permission, error) {
	if !action.Valid() {
		return Permission{}, fmt.Errorf("store: invalid action %q: %w", action, httpx.ErrValidation)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE permissions SET module_id = $2, action = $3 WHERE id = $1`,
		id, moduleID, action)
	if err != nil {
		return Permission{}, mapError(err, "update permission")
	}
	if tag.RowsAffected() == 0 {
		return Permission{}, fmt.Errorf("store: permission %d: %w", id, httpx.ErrNotFound)
	}
	return s.GetPermission(ctx, id)
}

// DeletePermissionDetach removes a permission and its role assignments,
// returning the ids of users whose effective permissions shrink.
func (s *Store) DeletePermissionDetach(ctx context.Context, id int64) ([]int64, error) {
	var affected []int64
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT DISTINCT gu.user_id
			FROM role_permissions rp
			JOIN group_roles gr ON gr.role_id = rp.role_id
			JOIN group_users gu ON gu.group_id = gr.group_id
			WHERE rp.permission_id = $1`, id)
		if err != nil {
			return err
		}
		affected, err = scanIDs(rows)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
	if err != nil {
		return nil, mapError(err, "delete permission")
	}
	return affected, nil
}

// UserIDsForPermission lists users reachable through any role holding the permission.
func (s *Store) UserIDsForPermission(ctx context.Context, permissionID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT gu.user_id
		FROM role_permissions rp
		JOIN group_roles gr ON gr.role_id = rp.role_id
		JOIN group_users gu ON gu.group_id = gr.group_id
		WHERE rp.permission_id = $1`, permissionID)
	if err != nil {
		return nil, mapError(err, "users for permission")
	}
	ids, err := scanIDs(rows)
	return ids, mapError(err, "users for permission")
}
