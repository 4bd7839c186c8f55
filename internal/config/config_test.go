package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef")
	t.Setenv("DB_DRIVER", "sqlite")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "data/vans.db", cfg.SQLitePath)
	assert.Equal(t, 15, cfg.AccessTTLMin)
	assert.Equal(t, "Van Principal", cfg.DefaultVanName)
	assert.Equal(t, 15, cfg.DefaultVanCapacity)
}

func TestParseRejectsInvalid(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef")
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_NAME", "")
	_, err := Parse()
	assert.Error(t, err, "mysql needs a user and database")

	t.Setenv("DB_DRIVER", "postgres")
	_, err = Parse()
	assert.Error(t, err)

	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DEFAULT_VAN_CAPACITY", "65")
	_, err = Parse()
	assert.Error(t, err)

	t.Setenv("DEFAULT_VAN_CAPACITY", "10")
	t.Setenv("ADMIN_EMAIL", "admin@example.com")
	_, err = Parse()
	assert.Error(t, err, "admin email without password")

	t.Setenv("ADMIN_PASSWORD", "long-enough")
	_, err = Parse()
	assert.NoError(t, err)
}

func TestParseRequiresSecret(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")
	_, err := Parse()
	assert.Error(t, err)
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("VAN_TEST_A=from-file\nVAN_TEST_B=from-file\n"), 0o600))
	t.Setenv("VAN_TEST_A", "from-env")
	t.Cleanup(func() { os.Unsetenv("VAN_TEST_B") })

	LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env"))
	assert.Equal(t, "from-env", os.Getenv("VAN_TEST_A"))
	assert.Equal(t, "from-file", os.Getenv("VAN_TEST_B"))
}

func TestRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 10*time.Second, cfg.TTL)
}

func TestRateLimitConfigFallsBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_KEY_STRATEGY", "cookie")
	cfg := LoadRateLimitConfig()
	assert.Equal(t, "ip_route", cfg.KeyStrategy)
	assert.Equal(t, 20, cfg.Capacity)
}

func TestCacheConfigMethods(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	cfg := LoadCacheConfig()
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cfg.Methods)
	assert.Equal(t, 30*time.Second, cfg.TTL)
}

func TestRedisAddress(t *testing.T) {
	assert.Equal(t, "localhost:6379", RedisConfig{Addr: "localhost:6379"}.Address())
	assert.Equal(t, "cache:6380", RedisConfig{Host: "cache", Port: "6380", Addr: "x:1"}.Address())
}

func TestBrokerAndSchedulerConfig(t *testing.T) {
	t.Setenv("BROKER_ENABLED", "true")
	t.Setenv("SUMMARY_CRON", "*/5 * * * *")
	t.Setenv("ANALYTICS_WEBHOOK_URL", "not a url")

	broker := LoadBrokerConfig()
	assert.True(t, broker.Enabled)
	assert.Equal(t, "reservation.events", broker.Queue)

	sched := LoadSchedulerConfig()
	assert.Equal(t, "0 6 * * *", sched.SummaryCron)
	assert.False(t, sched.Enabled)
}
