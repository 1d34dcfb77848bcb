package database

import (
	"testing"

	"relay-service/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialectorFor(t *testing.T) {
	d, err := dialectorFor(config.DatabaseConfig{Driver: "postgres", URI: "postgres://localhost/relay"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	d, err = dialectorFor(config.DatabaseConfig{Driver: "mysql", URI: "root:pw@tcp(localhost:3306)/relay"})
	require.NoError(t, err)
	assert.Equal(t, "mysql", d.Name())

	_, err = dialectorFor(config.DatabaseConfig{Driver: "sqlite"})
	assert.Error(t, err)
}

func TestNewRedisConnectionRejectsBadURL(t *testing.T) {
	_, err := NewRedisConnection("not-a-redis-url")
	assert.ErrorContains(t, err, "invalid redis url")
}
