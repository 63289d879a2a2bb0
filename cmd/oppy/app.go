package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/avoiney/oppy/internal/audit"
	"github.com/avoiney/oppy/internal/catalog"
	"github.com/avoiney/oppy/internal/itemcache"
	"github.com/avoiney/oppy/internal/session"
	"github.com/avoiney/oppy/internal/shell"
	"github.com/avoiney/oppy/internal/vault"
	"github.com/avoiney/oppy/pkg/config"
	"github.com/avoiney/oppy/pkg/kafka"
	"github.com/avoiney/oppy/pkg/logger"
	"github.com/avoiney/oppy/pkg/metrics"
	"github.com/avoiney/oppy/pkg/postgres"
	pkgredis "github.com/avoiney/oppy/pkg/redis"
	"github.com/avoiney/oppy/pkg/resilience"
)

const historyFile = "~/.config/oppy/history"

// app holds everything a profile needs, wired from the config file.
type app struct {
	cfg      *config.Config
	profile  config.ProfileConfig
	metrics  *metrics.Metrics
	vault    *vault.Client
	sessions session.Store
	catalog  *catalog.Catalog
	stats    *audit.Aggregator
	history  *audit.PostgresStore
	closers  []func() error
}

// loadConfig reads the config file and sets up logging.
func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if opts.debug {
		logger.SetDebug(true)
	}
	return cfg, nil
}

// needsRedis reports whether any configured backend lives in Redis.
func needsRedis(cfg *config.Config) bool {
	return cfg.Session.Backend == "redis" || cfg.Cache.Backend == "redis"
}

func newApp(ctx context.Context, opts *options, profileName string) (_ *app, err error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	profile, err := cfg.Profile(profileName, opts.overrides())
	if err != nil {
		return nil, err
	}
	if profile.Debug {
		logger.SetDebug(true)
	}

	a := &app{cfg: cfg, profile: profile, metrics: metrics.New(nil)}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.Metrics.Addr != "" {
		shutdown, err := metrics.StartServer(cfg.Metrics.Addr, a.metrics)
		if err != nil {
			return nil, err
		}
		a.onClose(func() error { return shutdown(context.Background()) })
	}

	var kv *pkgredis.Client
	if needsRedis(cfg) {
		kv, err = pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.onClose(kv.Close)
	}

	a.sessions, err = session.Open(cfg.Session, sessionKV(kv))
	if err != nil {
		return nil, err
	}
	a.vault = vault.NewClient(vault.ExecRunner{Binary: cfg.Vault.Binary}, cfg.Vault, a.metrics)

	secret := func(ctx context.Context) (string, error) {
		return a.sessions.Get(ctx, profile.Domain)
	}
	cache, err := itemcache.Open(cfg.Cache, cacheKV(kv), secret)
	if err != nil {
		return nil, err
	}

	recorder, err := a.openAudit(ctx)
	if err != nil {
		return nil, err
	}

	a.catalog = catalog.New(profile, catalog.Deps{
		Sessions: a.sessions,
		Lister:   a.vault,
		Cache:    cache,
		Metrics:  a.metrics,
		Recorder: recorder,
		Lenient:  cfg.Query.Lenient,
	})
	slog.Debug("profile ready",
		"profile", profile.Name,
		"domain", profile.Domain,
		"vault", profile.Vault,
		"session_backend", cfg.Session.Backend,
		"cache_backend", cfg.Cache.Backend,
	)
	return a, nil
}

// openAudit builds the audit recorder. The in-memory aggregator is always
// on; Kafka and PostgreSQL sinks follow the audit section of the config.
func (a *app) openAudit(ctx context.Context) (*audit.Recorder, error) {
	a.stats = audit.NewAggregator(10)
	sinks := []audit.Sink{a.stats}

	if a.cfg.Audit.Kafka {
		producer := kafka.NewProducer(a.cfg.Kafka)
		breaker := resilience.NewCircuitBreaker("audit-kafka", resilience.CircuitBreakerConfig{
			OnStateChange: func(name string, to resilience.State) {
				a.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			},
		})
		sink := audit.NewKafkaSink(producer, breaker, a.cfg.Audit.BufferSize)
		sink.Start(ctx)
		sinks = append(sinks, sink)
		slog.Debug("kafka audit sink enabled", "topic", a.cfg.Kafka.AuditTopic)
	}

	if a.cfg.Audit.Postgres {
		db, err := postgres.New(ctx, a.cfg.Postgres)
		if err != nil {
			return nil, err
		}
		a.onClose(db.Close)
		store := audit.NewPostgresStore(db)
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrating audit store: %w", err)
		}
		a.history = store
		sinks = append(sinks, store)
		slog.Debug("postgres audit store enabled", "database", a.cfg.Postgres.Database)
	}

	recorder := audit.NewRecorder(sinks...)
	a.onClose(recorder.Close)
	return recorder, nil
}

// sessionKV and cacheKV keep a nil client from becoming a non-nil interface.
func sessionKV(c *pkgredis.Client) session.KV {
	if c == nil {
		return nil
	}
	return c
}

func cacheKV(c *pkgredis.Client) itemcache.KV {
	if c == nil {
		return nil
	}
	return c
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for _, fn := range slices.Backward(a.closers) {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func runShell(ctx context.Context, opts *options, profileName string) error {
	a, err := newApp(ctx, opts, profileName)
	if err != nil {
		return err
	}
	defer a.Close()

	historyPath := config.ExpandHome(historyFile)
	if err := os.MkdirAll(filepath.Dir(historyPath), 0o700); err != nil {
		slog.Warn("shell history disabled", "error", err)
		historyPath = ""
	}
	prompter := shell.NewLinerPrompter(historyPath)
	defer prompter.Close()

	deps := shell.Deps{
		Catalog:  a.catalog,
		Vault:    a.vault,
		Sessions: a.sessions,
		Stats:    a.stats,
		Prompter: prompter,
		Printer:  shell.NewPrinter(a.cfg.Output.Color, a.cfg.Output.Style),
		Out:      os.Stdout,
	}
	if a.history != nil {
		deps.History = a.history
	}
	return shell.New(deps).Run(ctx)
}
