package store

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/wardenhq/warden/internal/platform/httpx"
)

// StoreIntegrationTestSuite runs the transactional delete paths against a
// real PostgreSQL. Set WARDEN_TEST_PG_DSN to a database with
// scripts/schema.sql applied; the suite is skipped otherwise. Tables are
// truncated before each test.
type StoreIntegrationTestSuite struct {
	suite.Suite
	pool  *pgxpool.Pool
	store *Store
	ctx   context.Context
}

func (s *StoreIntegrationTestSuite) SetupSuite() {
	dsn := os.Getenv("WARDEN_TEST_PG_DSN")
	if dsn == "" {
		s.T().Skip("WARDEN_TEST_PG_DSN not set")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(s.T(), err)
	s.pool = pool
	s.store = New(pool)
}

func (s *StoreIntegrationTestSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *StoreIntegrationTestSuite) SetupTest() {
	s.ctx = context.Background()
	_, err := s.pool.Exec(s.ctx, `
		TRUNCATE group_users, group_roles, role_permissions, audit_logs,
		         permissions, modules, roles, groups, users
		RESTART IDENTITY CASCADE`)
	require.NoError(s.T(), err)
}

type grantChain struct {
	moduleID     int64
	permissionID int64
	roleID       int64
	groupID      int64
	userID       int64
}

// seedChain wires user -> group -> role -> permission -> module and returns
// every id in the chain.
func (s *StoreIntegrationTestSuite) seedChain(module, role, group, username string) grantChain {
	t := s.T()

	m, err := s.store.CreateModule(s.ctx, module, "")
	require.NoError(t, err)
	p, err := s.store.CreatePermission(s.ctx, m.ID, ActionRead)
	require.NoError(t, err)
	r, err := s.store.CreateRole(s.ctx, role, "")
	require.NoError(t, err)
	g, err := s.store.CreateGroup(s.ctx, group, "")
	require.NoError(t, err)
	u, err := s.store.CreateUser(s.ctx, username, "unused-credential-ref")
	require.NoError(t, err)

	require.NoError(t, s.store.AttachPermission(s.ctx, r.ID, p.ID))
	require.NoError(t, s.store.AttachGroupRole(s.ctx, g.ID, r.ID))
	require.NoError(t, s.store.AttachGroupUser(s.ctx, g.ID, u.ID))

	return grantChain{
		moduleID:     m.ID,
		permissionID: p.ID,
		roleID:       r.ID,
		groupID:      g.ID,
		userID:       u.ID,
	}
}

func (s *StoreIntegrationTestSuite) countRows(table, where string, args ...any) int {
	var n int
	err := s.pool.QueryRow(s.ctx, `SELECT COUNT(*) FROM `+table+` WHERE `+where, args...).Scan(&n)
	require.NoError(s.T(), err)
	return n
}

func (s *StoreIntegrationTestSuite) TestDeleteModuleConflictsWhilePermissionsExist() {
	t := s.T()
	chain := s.seedChain("Reports", "Analyst", "Finance", "alice")

	err := s.store.DeleteModule(s.ctx, chain.moduleID)
	require.ErrorIs(t, err, httpx.ErrConflict)

	// Nothing was deleted.
	_, err = s.store.GetModule(s.ctx, chain.moduleID)
	assert.NoError(t, err)
	_, err = s.store.GetPermission(s.ctx, chain.permissionID)
	assert.NoError(t, err)
}

func (s *StoreIntegrationTestSuite) TestDeleteModuleCascade() {
	t := s.T()
	chain := s.seedChain("Reports", "Analyst", "Finance", "alice")
	other := s.seedChain("Billing", "Clerk", "Sales", "bob")

	affected, err := s.store.DeleteModuleCascade(s.ctx, chain.moduleID)
	require.NoError(t, err)

	// Only members reachable from the deleted module's permissions count.
	assert.Equal(t, []int64{chain.userID}, affected)

	_, err = s.store.GetModule(s.ctx, chain.moduleID)
	assert.ErrorIs(t, err, httpx.ErrNotFound)
	_, err = s.store.GetPermission(s.ctx, chain.permissionID)
	assert.ErrorIs(t, err, httpx.ErrNotFound)
	assert.Zero(t, s.countRows("role_permissions", "permission_id = $1", chain.permissionID))

	// The role survives with an empty permission set.
	detail, err := s.store.GetRoleDetail(s.ctx, chain.roleID)
	require.NoError(t, err)
	assert.Empty(t, detail.Permissions)

	// The other module's chain is untouched.
	_, err = s.store.GetPermission(s.ctx, other.permissionID)
	assert.NoError(t, err)
}

func (s *StoreIntegrationTestSuite) TestDeleteModuleCascadeUnknown() {
	_, err := s.store.DeleteModuleCascade(s.ctx, 9999)
	require.ErrorIs(s.T(), err, httpx.ErrNotFound)
}

func (s *StoreIntegrationTestSuite) TestDeletePermissionDetach() {
	t := s.T()
	chain := s.seedChain("Reports", "Analyst", "Finance", "alice")

	affected, err := s.store.DeletePermissionDetach(s.ctx, chain.permissionID)
	require.NoError(t, err)
	assert.Equal(t, []int64{chain.userID}, affected)

	_, err = s.store.GetPermission(s.ctx, chain.permissionID)
	assert.ErrorIs(t, err, httpx.ErrNotFound)
	assert.Zero(t, s.countRows("role_permissions", "permission_id = $1", chain.permissionID))

	// Module and role remain.
	_, err = s.store.GetModule(s.ctx, chain.moduleID)
	assert.NoError(t, err)
	_, err = s.store.GetRole(s.ctx, chain.roleID)
	assert.NoError(t, err)
}

func (s *StoreIntegrationTestSuite) TestDeleteRoleDetach() {
	t := s.T()
	chain := s.seedChain("Reports", "Analyst", "Finance", "alice")

	affected, err := s.store.DeleteRoleDetach(s.ctx, chain.roleID)
	require.NoError(t, err)
	assert.Equal(t, []int64{chain.userID}, affected)

	_, err = s.store.GetRole(s.ctx, chain.roleID)
	assert.ErrorIs(t, err, httpx.ErrNotFound)
	assert.Zero(t, s.countRows("role_permissions", "role_id = $1", chain.roleID))
	assert.Zero(t, s.countRows("group_roles", "role_id = $1", chain.roleID))

	// The permission itself is not deleted with the role.
	_, err = s.store.GetPermission(s.ctx, chain.permissionID)
	assert.NoError(t, err)
}

func TestStoreIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(StoreIntegrationTestSuite))
}
