package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/wardenhq/warden/internal/platform/db"
	"github.com/wardenhq/warden/internal/platform/httpx"
)

const moduleColumns = `id, name, description, created_at, updated_at`

// CreateModule inserts a new module. Fails with ErrDuplicate on name reuse.
func (s *Store) CreateModule(ctx context.Context, name, description string) (Module, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Module{}, fmt.Errorf("store: module name required: %w", httpx.ErrValidation)
	}
	var m Module
	err := s.pool.QueryRow(ctx,
		`INSERT INTO modules (name, description) VALUES ($1, $2) RETURNING `+moduleColumns,
		name, strings.TrimSpace(description),
	).Scan(&m.ID, &m.Name, &m.Description, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return Module{}, mapError(err, "create module")
	}
	return m, nil
}

// GetModule fetches a module by ID.
func (s *Store) GetModule(ctx context.Context, id int64) (Module, error) {
	var m Module
	err := s.pool.QueryRow(ctx,
		`SELECT `+moduleColumns+` FROM modules WHERE id = $1`, id,
	).Scan(&m.ID, &m.Name, &m.Description, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return Module{}, mapError(err, "get module")
	}
	return m, nil
}

// GetModuleDetail fetches a module with its owned permissions.
func (s *Store) GetModuleDetail(ctx context.Context, id int64) (ModuleDetail, error) {
	m, err := s.GetModule(ctx, id)
	if err != nil {
		return ModuleDetail{}, err
	}
	perms, err := s.permissionsWhere(ctx, s.pool, `p.module_id = $1`, id)
	if err != nil {
		return ModuleDetail{}, mapError(err, "module permissions")
	}
	return ModuleDetail{Module: m, Permissions: perms}, nil
}

// ListModules returns modules in creation order.
func (s *Store) ListModules(ctx context.Context, q ListQuery) ([]Module, int, error) {
	q = q.Normalize()
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM modules`).Scan(&total); err != nil {
		return nil, 0, mapError(err, "count modules")
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+moduleColumns+` FROM modules ORDER BY id LIMIT $1 OFFSET $2`,
		q.PerPage, q.Offset())
	if err != nil {
		return nil, 0, mapError(err, "list modules")
	}
	defer rows.Close()
	modules := make([]Module, 0)
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.ID, &m.Name, &m.Description, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, 0, mapError(err, "scan module")
		}
		modules = append(modules, m)
	}
	return modules, total, mapError(rows.Err(), "list modules")
}

// UpdateModule updates name and description.
func (s *Store) UpdateModule(ctx context.Context, id int64, name, description string) (Module, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Module{}, fmt.Errorf("store: module name required: %w", httpx.ErrValidation)
	}
	var m Module
	err := s.pool.QueryRow(ctx,
		`UPDATE modules SET name = $2, description = $3, updated_at = NOW() WHERE id = $1 RETURNING `+moduleColumns,
		id, name, strings.TrimSpace(description),
	).Scan(&m.ID, &m.Name, &m.Description, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return Module{}, mapError(err, "update module")
	}
	return m, nil
}

// DeleteModule removes a module that owns no permissions. Fails with
// ErrConflict while permissions exist; callers cascade explicitly.
func (s *Store) DeleteModule(ctx context.Context, id int64) error {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM permissions WHERE module_id = $1`, id).Scan(&count); err != nil {
		return mapError(err, "module permission count")
	}
	if count > 0 {
		return fmt.Errorf("store: module %d owns %d permissions: %w", id, count, httpx.ErrConflict)
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM modules WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "delete module")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: module %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}

// DeleteModuleCascade deletes a module together with its permissions and
// returns the ids of users whose effective permissions shrink. The whole
// operation runs in one transaction.
func (s *Store) DeleteModuleCascade(ctx context.Context, id int64) ([]int64, error) {
	var affected []int64
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT DISTINCT gu.user_id
			FROM permissions p
			JOIN role_permissions rp ON rp.permission_id = p.id
			JOIN group_roles gr ON gr.role_id = rp.role_id
			JOIN group_users gu ON gu.group_id = gr.group_id
			WHERE p.module_id = $1`, id)
		if err != nil {
			return err
		}
		affected, err = scanIDs(rows)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM permissions WHERE module_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM modules WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
	if err != nil {
		return nil, mapError(err, "delete module cascade")
	}
	return affected, nil
}
