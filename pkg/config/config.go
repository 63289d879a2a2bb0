// Package config loads oppy configuration from a YAML file with
// environment-variable overrides. A file holds any number of vault profiles
// plus the settings of the optional backends (Redis, Kafka, PostgreSQL).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/avoiney/oppy/pkg/errors"
)

// DefaultPath is used when no --config flag is given.
const DefaultPath = "~/.config/oppy/config.yaml"

// Config is the top-level application configuration.
type Config struct {
	Profiles map[string]ProfileConfig `yaml:"profiles"`
	Logging  LoggingConfig            `yaml:"logging"`
	Query    QueryConfig              `yaml:"query"`
	Session  SessionConfig            `yaml:"session"`
	Cache    CacheConfig              `yaml:"cache"`
	Vault    VaultConfig              `yaml:"vault"`
	Redis    RedisConfig              `yaml:"redis"`
	Kafka    KafkaConfig              `yaml:"kafka"`
	Postgres PostgresConfig           `yaml:"postgres"`
	Audit    AuditConfig              `yaml:"audit"`
	Metrics  MetricsConfig            `yaml:"metrics"`
	Output   OutputConfig             `yaml:"output"`
}

// ProfileConfig describes one vault account.
type ProfileConfig struct {
	Name     string `yaml:"-"`
	Domain   string `yaml:"domain"`
	Vault    string `yaml:"vault"`
	Debug    bool   `yaml:"debug"`
	TempFile string `yaml:"tempFile"`
}

// CachePath returns the listing cache file for the profile's current vault.
func (p ProfileConfig) CachePath() string {
	if p.Vault != "" {
		return fmt.Sprintf("%s-%s", p.TempFile, p.Vault)
	}
	return p.TempFile
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// QueryConfig controls TQL behaviour.
type QueryConfig struct {
	// Lenient skips illegal characters instead of failing the query.
	Lenient bool `yaml:"lenient"`
}

// SessionConfig selects where session tokens are kept.
type SessionConfig struct {
	Backend string        `yaml:"backend"` // keyring, redis, env
	TTL     time.Duration `yaml:"ttl"`
}

// CacheConfig selects where the encrypted item listing is cached.
type CacheConfig struct {
	Backend string        `yaml:"backend"` // file, redis, none
	TTL     time.Duration `yaml:"ttl"`
}

// VaultConfig controls invocation of the op executable.
type VaultConfig struct {
	Binary         string        `yaml:"binary"`
	CommandTimeout time.Duration `yaml:"commandTimeout"`
	Retries        int           `yaml:"retries"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// KafkaConfig holds Kafka broker and topic settings for the audit trail.
type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	ConsumerGroup string   `yaml:"consumerGroup"`
	AuditTopic    string   `yaml:"auditTopic"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// AuditConfig enables the query audit sinks.
type AuditConfig struct {
	Kafka      bool `yaml:"kafka"`
	Postgres   bool `yaml:"postgres"`
	BufferSize int  `yaml:"bufferSize"`
}

// MetricsConfig controls the Prometheus metrics server. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// OutputConfig controls how JSON is printed.
type OutputConfig struct {
	Color bool   `yaml:"color"`
	Style string `yaml:"style"`
}

// Overrides carries command-line flags that take precedence over the file.
type Overrides struct {
	Debug bool
	Vault string
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. A missing file at DefaultPath is not an error.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		expanded := ExpandHome(path)
		data, err := os.ReadFile(expanded)
		switch {
		case err != nil && os.IsNotExist(err) && path == DefaultPath:
		case err != nil:
			return nil, fmt.Errorf("reading config file %s: %w", expanded, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", expanded, err)
			}
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Profile returns the named profile with defaults and CLI overrides applied.
func (c *Config) Profile(name string, ov Overrides) (ProfileConfig, error) {
	p, ok := c.Profiles[name]
	if !ok {
		return ProfileConfig{}, apperrors.Newf(apperrors.ErrUnknownProfile, apperrors.ExitUsage, "profile %q is not configured", name)
	}
	p.Name = name
	if p.Domain == "" {
		p.Domain = name
	}
	if p.TempFile == "" {
		p.TempFile = "~/.config/oppy/tmpfile"
	}
	p.TempFile = ExpandHome(p.TempFile)
	if ov.Debug {
		p.Debug = true
	}
	if ov.Vault != "" {
		p.Vault = ov.Vault
	}
	return p, nil
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

func defaultConfig() *Config {
	return &Config{
		Profiles: map[string]ProfileConfig{},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Session: SessionConfig{
			Backend: "keyring",
			TTL:     30 * time.Minute,
		},
		Cache: CacheConfig{
			Backend: "file",
			TTL:     24 * time.Hour,
		},
		Vault: VaultConfig{
			Binary:         "op",
			CommandTimeout: 30 * time.Second,
			Retries:        3,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 4,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "oppy-audit-tail",
			AuditTopic:    "oppy-audit",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "oppy",
			User:            "oppy",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    4,
			MaxIdleConns:    1,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Audit: AuditConfig{
			BufferSize: 256,
		},
		Output: OutputConfig{
			Color: true,
			Style: "monokai",
		},
	}
}

// applyEnvOverrides reads OPPY_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPPY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("OPPY_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("OPPY_QUERY_LENIENT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Query.Lenient = b
		}
	}
	if v := os.Getenv("OPPY_SESSION_BACKEND"); v != "" {
		cfg.Session.Backend = v
	}
	if v := os.Getenv("OPPY_CACHE_BACKEND"); v != "" {
		cfg.Cache.Backend = v
	}
	if v := os.Getenv("OPPY_OP_BINARY"); v != "" {
		cfg.Vault.Binary = v
	}
	if v := os.Getenv("OPPY_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("OPPY_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("OPPY_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("OPPY_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("OPPY_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("OPPY_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("OPPY_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("OPPY_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("OPPY_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}
