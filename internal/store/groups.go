package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/wardenhq/warden/internal/platform/db"
	"github.com/wardenhq/warden/internal/platform/httpx"
)

const groupColumns = `id, name, description, created_at, updated_at`

func (s *Store) groupsWhere(ctx context.Context, where string, args ...any) ([]Group, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+groupColumns+` FROM groups WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	groups := make([]Group, 0)
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// CreateGroup inserts a new group.
func (s *Store) CreateGroup(ctx context.Context, name, description string) (Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Group{}, fmt.Errorf("store: group name required: %w", httpx.ErrValidation)
	}
	var g Group
	err := s.pool.QueryRow(ctx,
		`INSERT INTO groups (name, description) VALUES ($1, $2) RETURNING `+groupColumns,
		name, strings.TrimSpace(description),
	).Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return Group{}, mapError(err, "create group")
	}
	return g, nil
}

// GetGroup fetches a group by ID.
func (s *Store) GetGroup(ctx context.Context, id int64) (Group, error) {
	var g Group
	err := s.pool.QueryRow(ctx, `SELECT `+groupColumns+` FROM groups WHERE id = $1`, id).
		Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return Group{}, mapError(err, "get group")
	}
	return g, nil
}

// GetGroupDetail fetches a group with its users and roles.
func (s *Store) GetGroupDetail(ctx context.Context, id int64) (GroupDetail, error) {
	g, err := s.GetGroup(ctx, id)
	if err != nil {
		return GroupDetail{}, err
	}
	users, err := s.usersWhere(ctx,
		`id IN (SELECT user_id FROM group_users WHERE group_id = $1)`, id)
	if err != nil {
		return GroupDetail{}, mapError(err, "group users")
	}
	roles := make([]Role, 0)
	rows, err := s.pool.Query(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE id IN (SELECT role_id FROM group_roles WHERE group_id = $1) ORDER BY id`, id)
	if err != nil {
		return GroupDetail{}, mapError(err, "group roles")
	}
	defer rows.Close()
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return GroupDetail{}, mapError(err, "scan group role")
		}
		roles = append(roles, r)
	}
	if err := rows.Err(); err != nil {
		return GroupDetail{}, mapError(err, "group roles")
	}
	return GroupDetail{Group: g, Users: users, Roles: roles}, nil
}

// ListGroups returns groups in creation order, optionally filtered by name.
func (s *Store) ListGroups(ctx context.Context, q ListQuery) ([]Group, int, error) {
	q = q.Normalize()
	search := "%" + strings.TrimSpace(q.Search) + "%"
	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM groups WHERE name ILIKE $1`, search).Scan(&total); err != nil {
		return nil, 0, mapError(err, "count groups")
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+groupColumns+` FROM groups WHERE name ILIKE $1 ORDER BY id LIMIT $2 OFFSET $3`,
		search, q.PerPage, q.Offset())
	if err != nil {
		return nil, 0, mapError(err, "list groups")
	}
	defer rows.Close()
	groups := make([]Group, 0)
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, 0, mapError(err, "scan group")
		}
		groups = append(groups, g)
	}
	return groups, total, mapError(rows.Err(), "list groups")
}

// UpdateGroup updates an existing group.
func (s *Store) UpdateGroup(ctx context.Context, id int64, name, description string) (Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Group{}, fmt.Errorf("store: group name required: %w", httpx.ErrValidation)
	}
	var g Group
	err := s.pool.QueryRow(ctx,
		`UPDATE groups SET name = $2, description = $3, updated_at = NOW() WHERE id = $1 RETURNING `+groupColumns,
		id, name, strings.TrimSpace(description),
	).Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return Group{}, mapError(err, "update group")
	}
	return g, nil
}

// DeleteGroupDetach removes a group; membership rows cascade. Returns the
// ids of users who were members.
func (s *Store) DeleteGroupDetach(ctx context.Context, id int64) ([]int64, error) {
	var affected []int64
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT user_id FROM group_users WHERE group_id = $1`, id)
		if err != nil {
			return err
		}
		affected, err = scanIDs(rows)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
	if err != nil {
		return nil, mapError(err, "delete group")
	}
	return affected, nil
}

// AttachGroupRole assigns a role to a group. Idempotent.
func (s *Store) AttachGroupRole(ctx context.Context, groupID, roleID int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO group_roles (group_id, role_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		groupID, roleID)
	return mapError(err, "attach group role")
}

// DetachGroupRole removes a role from a group. Idempotent.
func (s *Store) DetachGroupRole(ctx context.Context, groupID, roleID int64) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM group_roles WHERE group_id = $1 AND role_id = $2`, groupID, roleID)
	return mapError(err, "detach group role")
}

// AttachGroupUser adds a user to a group. Idempotent.
func (s *Store) AttachGroupUser(ctx context.Context, groupID, userID int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO group_users (group_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		groupID, userID)
	return mapError(err, "attach group user")
}

// DetachGroupUser removes a user from a group. Idempotent.
func (s *Store) DetachGroupUser(ctx context.Context, groupID, userID int64) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM group_users WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	return mapError(err, "detach group user")
}

// UserIDsForGroup lists member user ids.
func (s *Store) UserIDsForGroup(ctx context.Context, groupID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id FROM group_users WHERE group_id = $1`, groupID)
	if err != nil {
		return nil, mapError(err, "users for group")
	}
	ids, err := scanIDs(rows)
	return ids, mapError(err, "users for group")
}
