package services

import (
	"context"
	"testing"

	"github.com/MonkyMars/gecho"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthService_ServerStatus(t *testing.T) {
	hs := NewHealthService(gecho.NewDefaultLogger(), nil, nil)

	status := hs.GetServerHealthStatus()
	assert.True(t, status.ServiceAlive)
	assert.GreaterOrEqual(t, status.Uptime, 0.0)
	require.NotNil(t, status.RamStats)
}

func TestHealthService_UnconfiguredDependencies(t *testing.T) {
	hs := NewHealthService(gecho.NewDefaultLogger(), nil, nil)

	db, err := hs.GetDatabaseHealthStatus(context.Background())
	require.NoError(t, err)
	assert.False(t, db.Enabled)

	cache, err := hs.GetCacheHealthStatus(context.Background())
	require.NoError(t, err)
	assert.False(t, cache.Enabled)
}
