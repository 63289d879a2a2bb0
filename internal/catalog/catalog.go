// Package catalog serves a profile's item listing and runs TQL queries
// against it. The listing comes from the cache when possible and from op
// otherwise; concurrent fetches of the same vault share one op call.
package catalog

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/avoiney/oppy/internal/audit"
	"github.com/avoiney/oppy/internal/itemcache"
	"github.com/avoiney/oppy/internal/records"
	"github.com/avoiney/oppy/internal/session"
	"github.com/avoiney/oppy/internal/tql"
	"github.com/avoiney/oppy/internal/vault"
	"github.com/avoiney/oppy/pkg/config"
	"github.com/avoiney/oppy/pkg/logger"
	"github.com/avoiney/oppy/pkg/metrics"
	"github.com/avoiney/oppy/pkg/tracing"
)

// Lister fetches the raw item listing; *vault.Client is one.
type Lister interface {
	ListItems(ctx context.Context, s vault.Session, vaultName string) ([]byte, error)
}

// Deps are the collaborators of a Catalog. Metrics and Recorder may be nil.
type Deps struct {
	Sessions session.Store
	Lister   Lister
	Cache    itemcache.Cache
	Metrics  *metrics.Metrics
	Recorder *audit.Recorder
	Lenient  bool
}

// Catalog is bound to one profile. The vault can be switched at runtime.
type Catalog struct {
	deps   Deps
	group  singleflight.Group
	logger *slog.Logger

	mu      sync.RWMutex
	profile config.ProfileConfig
}

func New(profile config.ProfileConfig, deps Deps) *Catalog {
	if deps.Cache == nil {
		deps.Cache = itemcache.NopCache{}
	}
	return &Catalog{
		deps:    deps,
		profile: profile,
		logger:  logger.WithComponent("catalog").With("profile", profile.Name),
	}
}

// Profile returns the profile with the current vault.
func (c *Catalog) Profile() config.ProfileConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.profile
}

// SetVault switches to vault; "" selects every vault.
func (c *Catalog) SetVault(vault string) {
	c.mu.Lock()
	c.profile.Vault = vault
	c.mu.Unlock()
}

// Session returns the stored session of the profile.
func (c *Catalog) Session(ctx context.Context) (vault.Session, error) {
	domain := c.Profile().Domain
	token, err := c.deps.Sessions.Get(ctx, domain)
	if err != nil {
		return vault.Session{}, err
	}
	return vault.Session{Domain: domain, Token: token}, nil
}

// Items returns the listing of the current vault. With refresh set, or when
// the cache holds nothing, the listing is fetched from op and cached.
func (c *Catalog) Items(ctx context.Context, refresh bool) (*records.Collection, error) {
	ctx, span := tracing.StartChildSpan(ctx, "items")
	defer span.End()

	profile := c.Profile()
	sess, err := c.Session(ctx)
	if err != nil {
		return nil, err
	}
	key := c.deps.Cache.KeyFor(profile)

	if !refresh {
		items, err := c.deps.Cache.Load(ctx, key)
		if err != nil {
			c.logger.Debug("cache load failed", "key", key, "error", err)
		} else if items.Len() > 0 {
			c.countCache(true)
			span.SetAttr("cache", "hit")
			return items, nil
		}
	}
	c.countCache(false)
	span.SetAttr("cache", "miss")

	// Callers joining this fetch must not fail because the first one gave up;
	// the op command timeout still bounds it.
	fetchCtx := context.WithoutCancel(ctx)
	v, err, shared := c.group.Do(key, func() (any, error) {
		return c.fetch(fetchCtx, sess, profile.Vault, key)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("joined in-flight listing fetch", "key", key)
	}
	return v.(*records.Collection).Copy(), nil
}

func (c *Catalog) fetch(ctx context.Context, sess vault.Session, vaultName, key string) (*records.Collection, error) {
	raw, err := c.deps.Lister.ListItems(ctx, sess, vaultName)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	items := records.New()
	if len(bytes.TrimSpace(raw)) > 0 {
		if items, err = records.Decode(bytes.NewReader(raw)); err != nil {
			return nil, err
		}
	}
	if err := c.deps.Cache.Save(ctx, key, items); err != nil {
		c.logger.Debug("cache save failed", "key", key, "error", err)
	}
	c.logger.Debug("listing fetched", "vault", vaultName, "items", items.Len())
	return items, nil
}

func (c *Catalog) countCache(hit bool) {
	if c.deps.Metrics == nil {
		return
	}
	if hit {
		c.deps.Metrics.CacheHitsTotal.Inc()
	} else {
		c.deps.Metrics.CacheMissesTotal.Inc()
	}
}

// Refresh drops the cached listing and fetches a new one.
func (c *Catalog) Refresh(ctx context.Context) (*records.Collection, error) {
	return c.Items(ctx, true)
}

// Compile parses query with the catalog's lexing policy.
func (c *Catalog) Compile(query string) (*tql.Query, error) {
	return tql.Parse(query, tql.WithLenient(c.deps.Lenient))
}

// Query runs a TQL query against the current listing. Every call, failed or
// not, is handed to the audit recorder.
func (c *Catalog) Query(ctx context.Context, query string) (*records.Collection, error) {
	ctx = logger.WithQueryID(ctx, uuid.NewString())
	ctx, span := tracing.StartSpan(ctx, "query")
	log := logger.FromContext(ctx)
	profile := c.Profile()
	event := audit.NewEvent(profile.Name, profile.Vault, query)
	start := time.Now()

	result, err := c.query(ctx, query)

	elapsed := time.Since(start)
	span.End()
	span.Log(log)
	event.LatencyMs = float64(elapsed.Microseconds()) / 1000
	outcome := "match"
	switch {
	case err != nil:
		outcome = "error"
		event.Error = err.Error()
	case result.Len() == 0:
		outcome = "zero_result"
	}
	if result != nil {
		event.Matches = result.Len()
	}
	if m := c.deps.Metrics; m != nil {
		m.QueriesTotal.WithLabelValues(outcome).Inc()
		if err == nil {
			m.QueryDuration.Observe(elapsed.Seconds())
			m.QueryResults.Observe(float64(result.Len()))
		}
	}
	c.deps.Recorder.Record(ctx, event)
	log.Debug("query finished", "query", query, "outcome", outcome, "matches", event.Matches, "duration", elapsed)
	return result, err
}

func (c *Catalog) query(ctx context.Context, query string) (*records.Collection, error) {
	_, span := tracing.StartChildSpan(ctx, "compile")
	q, err := c.Compile(query)
	span.End()
	if err != nil {
		return nil, err
	}
	items, err := c.Items(ctx, false)
	if err != nil {
		return nil, err
	}
	_, span = tracing.StartChildSpan(ctx, "evaluate")
	result := tql.Evaluate(q, items)
	span.SetAttr("matches", result.Len())
	span.End()
	return result, nil
}
