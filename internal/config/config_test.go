package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "3001", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.False(t, cfg.Kafka.Enabled())
	assert.False(t, cfg.MinIO.Enabled())
	assert.Equal(t, 256, cfg.WebSocket.SendBuffer)
	assert.Equal(t, int64(64*1024), cfg.WebSocket.MaxMessageSize)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("RELAY_PORT", "9000")
	t.Setenv("DB_DRIVER", "MySQL")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com,https://b.example.com")
	t.Setenv("MINIO_ENDPOINT", "minio:9000")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr())
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.MinIO.Enabled())
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")

	_, err := Load(viper.New())
	assert.Error(t, err)
}
