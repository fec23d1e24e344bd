package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, 5*time.Second, cfg.LockWaitTimeout)
	assert.Equal(t, "0 0 3 * * *", cfg.SessionSweepSchedule)
	assert.True(t, cfg.CronEnabled)
	assert.False(t, cfg.IsProduction())
}

func TestGetLayersFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9000
db_driver: sqlite
sqlite_path: /tmp/fitcamp.sqlite
jwt_secret: from-file
lock_wait_timeout: 2s
kafka_brokers:
  - kafka-1:9092
  - kafka-2:9092
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("JWT_EXPIRY", "30m")
	t.Setenv("CRON_ENABLED", "false")
	t.Setenv("GO_ENV", "production")

	cfg, err := Get()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "/tmp/fitcamp.sqlite", cfg.SQLitePath)
	assert.Equal(t, "from-env", cfg.JWTSecret)
	assert.Equal(t, 30*time.Minute, cfg.JWTExpiry)
	assert.Equal(t, 2*time.Second, cfg.LockWaitTimeout)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.False(t, cfg.CronEnabled)
	assert.True(t, cfg.IsProduction())

	// untouched keys keep their defaults
	assert.Equal(t, "fitcamp-api", cfg.JWTIssuer)
}

func TestGetEnvLists(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")
	t.Setenv("PORT", "7000")

	cfg, err := Get()
	require.NoError(t, err)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 7000, cfg.Port)
}

func TestGetRejectsBadValues(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	t.Run("port", func(t *testing.T) {
		t.Setenv("PORT", "eighty")
		_, err := Get()
		assert.Error(t, err)
	})

	t.Run("duration", func(t *testing.T) {
		t.Setenv("LOCK_WAIT_TIMEOUT", "soon")
		_, err := Get()
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := Get()
		assert.Error(t, err)
	})
}
