package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, StorageMemory, cfg.StorageDriver)
	assert.Equal(t, NotifyDirect, cfg.NotifyMode)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":8888")
	t.Setenv("STORAGE_DRIVER", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("NOTIFY_MODE", "queue")
	t.Setenv("NOTIFY_POLL_INTERVAL", "250ms")
	t.Setenv("NOTIFY_BATCH_SIZE", "50")
	t.Setenv("LOW_STOCK_THRESHOLD", "5")

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8888", cfg.HTTPAddr)
	assert.Equal(t, StorageRedis, cfg.StorageDriver)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, NotifyQueue, cfg.NotifyMode)
	assert.Equal(t, 250*time.Millisecond, cfg.NotifyPollInterval)
	assert.Equal(t, 50, cfg.NotifyBatchSize)
	assert.Equal(t, int32(5), cfg.LowStockThreshold)
}

func TestLoadConfigFromEnv_InvalidDuration(t *testing.T) {
	t.Setenv("NOTIFY_POLL_INTERVAL", "soon")

	_, err := LoadConfigFromEnv()
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mut     func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mut: func(*Config) {}},
		{name: "postgres without dsn", mut: func(c *Config) { c.StorageDriver = StoragePostgres }, wantErr: true},
		{name: "postgres with dsn", mut: func(c *Config) {
			c.StorageDriver = StoragePostgres
			c.PostgresDSN = "postgres://localhost/bookstore"
		}},
		{name: "redis without addr", mut: func(c *Config) { c.StorageDriver = StorageRedis }, wantErr: true},
		{name: "unknown driver", mut: func(c *Config) { c.StorageDriver = "etcd" }, wantErr: true},
		{name: "unknown notify mode", mut: func(c *Config) { c.NotifyMode = "carrier-pigeon" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mut(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}
