package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arena-game-bot/internal/config"
)

func TestPoolConfig(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Host:           "db",
		Port:           5433,
		User:           "arena",
		Password:       "pw",
		Name:           "arena",
		PoolSize:       12,
		ConnectTimeout: 3 * time.Second,
	}

	pc, err := PoolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, int32(12), pc.MaxConns)
	assert.Equal(t, int32(3), pc.MinConns)
	assert.Equal(t, 3*time.Second, pc.ConnConfig.ConnectTimeout)
	assert.Equal(t, defaultMaxConnLifetime, pc.MaxConnLifetime)
	assert.Equal(t, defaultMaxConnIdleTime, pc.MaxConnIdleTime)
	assert.Equal(t, "db", pc.ConnConfig.Host)
	assert.Equal(t, uint16(5433), pc.ConnConfig.Port)
}

func TestPoolConfig_SmallPoolKeepsOneConn(t *testing.T) {
	pc, err := PoolConfig(&config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Name: "n", PoolSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int32(1), pc.MinConns)
}
