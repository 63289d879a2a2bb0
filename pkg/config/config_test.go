package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/avoiney/oppy/pkg/errors"
)

const sampleConfig = `
profiles:
  work:
    domain: acme
    vault: Private
    tempFile: /tmp/oppy-work
  home: {}
logging:
  level: debug
query:
  lenient: true
session:
  backend: redis
  ttl: 10m
vault:
  commandTimeout: 5s
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.True(t, cfg.Query.Lenient)
	assert.Equal(t, "redis", cfg.Session.Backend)
	assert.Equal(t, 10*time.Minute, cfg.Session.TTL)
	assert.Equal(t, 5*time.Second, cfg.Vault.CommandTimeout)
	assert.Equal(t, "op", cfg.Vault.Binary)
	assert.Equal(t, "file", cfg.Cache.Backend)
	assert.Len(t, cfg.Profiles, 2)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "profiles: [unterminated"))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OPPY_REDIS_ADDR", "redis:6380")
	t.Setenv("OPPY_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("OPPY_POSTGRES_PORT", "6543")
	t.Setenv("OPPY_QUERY_LENIENT", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 6543, cfg.Postgres.Port)
	assert.True(t, cfg.Query.Lenient)
}

func TestProfile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	t.Run("configured", func(t *testing.T) {
		p, err := cfg.Profile("work", Overrides{})
		require.NoError(t, err)
		assert.Equal(t, "work", p.Name)
		assert.Equal(t, "acme", p.Domain)
		assert.Equal(t, "Private", p.Vault)
		assert.Equal(t, "/tmp/oppy-work-Private", p.CachePath())
	})

	t.Run("defaults", func(t *testing.T) {
		p, err := cfg.Profile("home", Overrides{Debug: true, Vault: "Shared"})
		require.NoError(t, err)
		assert.Equal(t, "home", p.Domain)
		assert.True(t, p.Debug)
		assert.Equal(t, "Shared", p.Vault)
		assert.NotContains(t, p.TempFile, "~")
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := cfg.Profile("missing", Overrides{})
		require.ErrorIs(t, err, apperrors.ErrUnknownProfile)
		assert.Equal(t, apperrors.ExitUsage, apperrors.ExitCode(err))
	})
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "oppy", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=oppy sslmode=disable", p.DSN())
}
