// Package itemcache stores the item listing between runs, encrypted with a
// key derived from the current session token. A listing saved under one
// session cannot be read under another; such entries are dropped.
package itemcache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/avoiney/oppy/internal/records"
	"github.com/avoiney/oppy/pkg/config"
	apperrors "github.com/avoiney/oppy/pkg/errors"
	"github.com/avoiney/oppy/pkg/logger"
	"github.com/avoiney/oppy/pkg/redis"
)

// SecretFunc returns the secret the cache key is derived from, normally the
// session token of the profile.
type SecretFunc func(ctx context.Context) (string, error)

// Cache persists item listings. Load never fails on a bad entry: it drops
// the entry and returns an empty collection.
type Cache interface {
	// KeyFor names the entry holding the listing of p's current vault.
	KeyFor(p config.ProfileConfig) string
	Load(ctx context.Context, key string) (*records.Collection, error)
	Save(ctx context.Context, key string, items *records.Collection) error
	Clear(ctx context.Context, key string) error
}

func encode(items *records.Collection) ([]byte, error) {
	recs := items.Records()
	if recs == nil {
		recs = []records.Record{}
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return nil, fmt.Errorf("encoding items: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*records.Collection, error) {
	items, err := records.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCacheCorrupt, err)
	}
	return items, nil
}

// FileCache keeps one sealed file per key; the key is the file path.
type FileCache struct {
	secret SecretFunc
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewFileCache returns a FileCache. Files older than ttl are ignored; zero
// keeps them forever.
func NewFileCache(secret SecretFunc, ttl time.Duration) *FileCache {
	return &FileCache{
		secret: secret,
		ttl:    ttl,
		logger: logger.WithComponent("itemcache"),
		now:    time.Now,
	}
}

// KeyFor returns the cache file path of p.
func (c *FileCache) KeyFor(p config.ProfileConfig) string {
	return p.CachePath()
}

func (c *FileCache) Load(ctx context.Context, path string) (*records.Collection, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return records.New(), nil
	}
	if err == nil && c.ttl > 0 && c.now().Sub(info.ModTime()) > c.ttl {
		c.logger.Debug("cache file expired", "path", path, "age", c.now().Sub(info.ModTime()))
		return records.New(), nil
	}
	secret, err := c.secret(ctx)
	if err != nil {
		return nil, err
	}
	items, err := c.load(secret, path)
	if err != nil {
		c.logger.Debug("dropping unreadable cache file", "path", path, "error", err)
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			c.logger.Debug("removing cache file", "path", path, "error", rmErr)
		}
		return records.New(), nil
	}
	return items, nil
}

func (c *FileCache) load(secret, path string) (*records.Collection, error) {
	sealed, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	plain, err := open(secret, filepath.Base(path), sealed)
	if err != nil {
		return nil, err
	}
	return decode(plain)
}

func (c *FileCache) Save(ctx context.Context, path string, items *records.Collection) error {
	secret, err := c.secret(ctx)
	if err != nil {
		return err
	}
	plain, err := encode(items)
	if err != nil {
		return err
	}
	sealed, err := seal(secret, filepath.Base(path), plain)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(sealed); err != nil {
		tmp.Close()
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing cache file: %w", err)
	}
	return nil
}

func (c *FileCache) Clear(_ context.Context, path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing cache file: %w", err)
	}
	return nil
}

// KV is the subset of the Redis client RedisCache needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// RedisCache stores sealed listings under oppy:items:<key> with a TTL.
type RedisCache struct {
	kv     KV
	secret SecretFunc
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(kv KV, secret SecretFunc, ttl time.Duration) *RedisCache {
	return &RedisCache{
		kv:     kv,
		secret: secret,
		ttl:    ttl,
		logger: logger.WithComponent("itemcache"),
	}
}

// KeyFor returns <domain>/<vault>, with "*" standing for all vaults.
func (c *RedisCache) KeyFor(p config.ProfileConfig) string {
	v := p.Vault
	if v == "" {
		v = "*"
	}
	return p.Domain + "/" + v
}

func redisKey(key string) string {
	return "oppy:items:" + key
}

func (c *RedisCache) Load(ctx context.Context, key string) (*records.Collection, error) {
	sealed, err := c.kv.Get(ctx, redisKey(key))
	if redis.IsNilError(err) {
		return records.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cached items: %w", err)
	}
	secret, err := c.secret(ctx)
	if err != nil {
		return nil, err
	}
	plain, err := open(secret, key, sealed)
	if err == nil {
		var items *records.Collection
		if items, err = decode(plain); err == nil {
			return items, nil
		}
	}
	c.logger.Debug("dropping unreadable cache entry", "key", key, "error", err)
	if delErr := c.kv.Del(ctx, redisKey(key)); delErr != nil {
		c.logger.Debug("deleting cache entry", "key", key, "error", delErr)
	}
	return records.New(), nil
}

func (c *RedisCache) Save(ctx context.Context, key string, items *records.Collection) error {
	secret, err := c.secret(ctx)
	if err != nil {
		return err
	}
	plain, err := encode(items)
	if err != nil {
		return err
	}
	sealed, err := seal(secret, key, plain)
	if err != nil {
		return err
	}
	if err := c.kv.Set(ctx, redisKey(key), sealed, c.ttl); err != nil {
		return fmt.Errorf("writing cached items: %w", err)
	}
	return nil
}

func (c *RedisCache) Clear(ctx context.Context, key string) error {
	return c.kv.Del(ctx, redisKey(key))
}

// NopCache never holds anything.
type NopCache struct{}

func (NopCache) KeyFor(p config.ProfileConfig) string {
	return p.Domain
}

func (NopCache) Load(context.Context, string) (*records.Collection, error) {
	return records.New(), nil
}

func (NopCache) Save(context.Context, string, *records.Collection) error {
	return nil
}

func (NopCache) Clear(context.Context, string) error {
	return nil
}

// Open returns the cache selected by cfg.Backend. kv is only used by the
// redis backend and may be nil otherwise.
func Open(cfg config.CacheConfig, kv KV, secret SecretFunc) (Cache, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileCache(secret, cfg.TTL), nil
	case "none":
		return NopCache{}, nil
	case "redis":
		if kv == nil {
			return nil, apperrors.New(apperrors.ErrUnavailable, apperrors.ExitUnavailable, "redis cache backend needs a redis connection")
		}
		return NewRedisCache(kv, secret, cfg.TTL), nil
	default:
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "unknown cache backend %q", cfg.Backend)
	}
}
