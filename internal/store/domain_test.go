package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	for _, raw := range []string{"create", "read", "update", "delete"} {
		action, err := ParseAction(raw)
		require.NoError(t, err, "parse %q", raw)
		assert.Equal(t, raw, string(action))
	}

	for _, raw := range []string{"", "READ", "write", "admin", "read "} {
		_, err := ParseAction(raw)
		assert.Error(t, err, "expected error for %q", raw)
	}
}

func TestGrantString(t *testing.T) {
	g := Grant{Module: "Reports", Action: ActionRead}
	assert.Equal(t, "Reports:read", g.String())
}

func TestListQueryNormalize(t *testing.T) {
	q := ListQuery{}.Normalize()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 50, q.PerPage)

	q = ListQuery{Page: 3, PerPage: 1000}.Normalize()
	assert.Equal(t, 200, q.PerPage)
	assert.Equal(t, 400, q.Offset())

	q = ListQuery{Page: -1, PerPage: -5}.Normalize()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 50, q.PerPage)
}
