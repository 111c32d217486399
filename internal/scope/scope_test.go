package scope

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/poolfund/internal/orgcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroScopeIsInvalid(t *testing.T) {
	var sc Scope
	assert.ErrorIs(t, sc.Validate(), ErrInvalidScope)
	assert.False(t, sc.IsSystemWide())

	_, ok := sc.TenantID()
	assert.False(t, ok)
	assert.Equal(t, "invalid", sc.String())
}

func TestTenantScope(t *testing.T) {
	orgID := snowflake.ID(42)
	sc := Tenant(orgID)
	require.NoError(t, sc.Validate())
	assert.False(t, sc.IsSystemWide())

	got, ok := sc.TenantID()
	require.True(t, ok)
	assert.Equal(t, orgID, got)
	assert.Equal(t, orgID.String(), sc.String())

	assert.ErrorIs(t, Tenant(0).Validate(), ErrInvalidScope)
}

func TestSystemWideScope(t *testing.T) {
	sc := SystemWide()
	require.NoError(t, sc.Validate())
	assert.True(t, sc.IsSystemWide())

	_, ok := sc.TenantID()
	assert.False(t, ok)
	assert.Equal(t, "system", sc.String())
}

func TestFromContext(t *testing.T) {
	ctx := orgcontext.WithOrgID(context.Background(), 42)
	sc, err := FromContext(ctx)
	require.NoError(t, err)

	got, ok := sc.TenantID()
	require.True(t, ok)
	assert.Equal(t, snowflake.ID(42), got)

	_, err = FromContext(context.Background())
	assert.ErrorIs(t, err, ErrInvalidScope)

	_, err = FromContext(orgcontext.WithOrgID(context.Background(), 0))
	assert.ErrorIs(t, err, ErrInvalidScope)
}
