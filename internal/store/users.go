package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/wardenhq/warden/internal/platform/db"
	"github.com/wardenhq/warden/internal/platform/httpx"
)

const userColumns = `id, username, credential_ref, created_at, updated_at`

func (s *Store) usersWhere(ctx context.Context, where string, args ...any) ([]User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := make([]User, 0)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.CredentialRef, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CreateUser inserts a new user. CredentialRef is stored opaquely.
func (s *Store) CreateUser(ctx context.Context, username, credentialRef string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, fmt.Errorf("store: username required: %w", httpx.ErrValidation)
	}
	var u User
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, credential_ref) VALUES ($1, $2) RETURNING `+userColumns,
		username, credentialRef,
	).Scan(&u.ID, &u.Username, &u.CredentialRef, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return User{}, mapError(err, "create user")
	}
	return u, nil
}

// GetUser fetches a user by ID.
func (s *Store) GetUser(ctx context.Context, id int64) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Username, &u.CredentialRef, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return User{}, mapError(err, "get user")
	}
	return u, nil
}

// GetUserByUsername fetches a user by unique username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username).
		Scan(&u.ID, &u.Username, &u.CredentialRef, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return User{}, mapError(err, "get user by username")
	}
	return u, nil
}

// GetUserDetail fetches a user with group memberships.
func (s *Store) GetUserDetail(ctx context.Context, id int64) (UserDetail, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return UserDetail{}, err
	}
	groups, err := s.groupsWhere(ctx,
		`id IN (SELECT group_id FROM group_users WHERE user_id = $1)`, id)
	if err != nil {
		return UserDetail{}, mapError(err, "user groups")
	}
	return UserDetail{User: u, Groups: groups}, nil
}

// ListUsers returns users in creation order, optionally filtered by username.
func (s *Store) ListUsers(ctx context.Context, q ListQuery) ([]User, int, error) {
	q = q.Normalize()
	search := "%" + strings.TrimSpace(q.Search) + "%"
	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE username ILIKE $1`, search).Scan(&total); err != nil {
		return nil, 0, mapError(err, "count users")
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE username ILIKE $1 ORDER BY id LIMIT $2 OFFSET $3`,
		search, q.PerPage, q.Offset())
	if err != nil {
		return nil, 0, mapError(err, "list users")
	}
	defer rows.Close()
	users := make([]User, 0)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.CredentialRef, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, mapError(err, "scan user")
		}
		users = append(users, u)
	}
	return users, total, mapError(rows.Err(), "list users")
}

// UpdateUser updates username and, when non-empty, the credential reference.
func (s *Store) UpdateUser(ctx context.Context, id int64, username, credentialRef string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return User{}, fmt.Errorf("store: username required: %w", httpx.ErrValidation)
	}
	var u User
	err := s.pool.QueryRow(ctx,
		`UPDATE users SET username = $2,
			credential_ref = CASE WHEN $3 = '' THEN credential_ref ELSE $3 END,
			updated_at = NOW()
		 WHERE id = $1 RETURNING `+userColumns,
		id, username, credentialRef,
	).Scan(&u.ID, &u.Username, &u.CredentialRef, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return User{}, mapError(err, "update user")
	}
	return u, nil
}

// DeleteUserDetach removes a user; membership rows cascade.
func (s *Store) DeleteUserDetach(ctx context.Context, id int64) error {
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
	return mapError(err, "delete user")
}
