package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/wardenhq/warden/internal/platform/db"
	"github.com/wardenhq/warden/internal/platform/httpx"
)

const roleColumns = `id, name, description, created_at, updated_at`

// CreateRole inserts a new role.
func (s *Store) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("store: role name required: %w", httpx.ErrValidation)
	}
	var r Role
	err := s.pool.QueryRow(ctx,
		`INSERT INTO roles (name, description) VALUES ($1, $2) RETURNING `+roleColumns,
		name, strings.TrimSpace(description),
	).Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return Role{}, mapError(err, "create role")
	}
	return r, nil
}

// GetRole fetches a role by ID.
func (s *Store) GetRole(ctx context.Context, id int64) (Role, error) {
	var r Role
	err := s.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id).
		Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return Role{}, mapError(err, "get role")
	}
	return r, nil
}

// GetRoleDetail fetches a role with its permissions and groups.
func (s *Store) GetRoleDetail(ctx context.Context, id int64) (RoleDetail, error) {
	r, err := s.GetRole(ctx, id)
	if err != nil {
		return RoleDetail{}, err
	}
	perms, err := s.permissionsWhere(ctx, s.pool,
		`p.id IN (SELECT permission_id FROM role_permissions WHERE role_id = $1)`, id)
	if err != nil {
		return RoleDetail{}, mapError(err, "role permissions")
	}
	groups, err := s.groupsWhere(ctx,
		`id IN (SELECT group_id FROM group_roles WHERE role_id = $1)`, id)
	if err != nil {
		return RoleDetail{}, mapError(err, "role groups")
	}
	return RoleDetail{Role: r, Permissions: perms, Groups: groups}, nil
}

// ListRoles returns roles in creation order.
func (s *Store) ListRoles(ctx context.Context, q ListQuery) ([]Role, int, error) {
	q = q.Normalize()
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM roles`).Scan(&total); err != nil {
		return nil, 0, mapError(err, "count roles")
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+roleColumns+` FROM roles ORDER BY id LIMIT $1 OFFSET $2`, q.PerPage, q.Offset())
	if err != nil {
		return nil, 0, mapError(err, "list roles")
	}
	defer rows.Close()
	roles := make([]Role, 0)
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, 0, mapError(err, "scan role")
		}
		roles = append(roles, r)
	}
	return roles, total, mapError(rows.Err(), "list roles")
}

// UpdateRole updates an existing role.
func (s *Store) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, fmt.Errorf("store: role name required: %w", httpx.ErrValidation)
	}
	var r Role
	err := s.pool.QueryRow(ctx,
		`UPDATE roles SET name = $2, description = $3, updated_at = NOW() WHERE id = $1 RETURNING `+roleColumns,
		id, name, strings.TrimSpace(description),
	).Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return Role{}, mapError(err, "update role")
	}
	return r, nil
}

// DeleteRoleDetach removes a role; join rows cascade in the schema. Returns
// the ids of users who held the role through any group.
func (s *Store) DeleteRoleDetach(ctx context.Context, id int64) ([]int64, error) {
	var affected []int64
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT DISTINCT gu.user_id
			FROM group_roles gr
			JOIN group_users gu ON gu.group_id = gr.group_id
			WHERE gr.role_id = $1`, id)
		if err != nil {
			return err
		}
		affected, err = scanIDs(rows)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
	if err != nil {
		return nil, mapError(err, "delete role")
	}
	return affected, nil
}

// AttachPermission assigns a permission to a role. Idempotent.
func (s *Store) AttachPermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		roleID, permissionID)
	return mapError(err, "attach permission")
}

// DetachPermission removes a permission from a role. Idempotent.
func (s *Store) DetachPermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`,
		roleID, permissionID)
	return mapError(err, "detach permission")
}

// UserIDsForRole lists users in any group holding the role.
func (s *Store) UserIDsForRole(ctx context.Context, roleID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT gu.user_id
		FROM group_roles gr
		JOIN group_users gu ON gu.group_id = gr.group_id
		WHERE gr.role_id = $1`, roleID)
	if err != nil {
		return nil, mapError(err, "users for role")
	}
	ids, err := scanIDs(rows)
	return ids, mapError(err, "users for role")
}
