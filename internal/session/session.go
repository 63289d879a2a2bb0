// Package session keeps op session tokens between runs. The default store is
// the OS keyring; Redis and the process environment are alternatives.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/zalando/go-keyring"

	"github.com/avoiney/oppy/internal/vault"
	"github.com/avoiney/oppy/pkg/config"
	apperrors "github.com/avoiney/oppy/pkg/errors"
	"github.com/avoiney/oppy/pkg/redis"
)

// KeyringService is the keyring service name tokens are stored under.
const KeyringService = "OnePasswordCLI"

// Store reads and writes the session token of a domain. Get returns an error
// wrapping errors.ErrNotLoggedIn when there is none.
type Store interface {
	Get(ctx context.Context, domain string) (string, error)
	Set(ctx context.Context, domain, token string) error
	Delete(ctx context.Context, domain string) error
}

func notLoggedIn(domain string) error {
	return apperrors.Newf(apperrors.ErrNotLoggedIn, apperrors.ExitAuth, "no session for %s", domain)
}

// KeyringStore keeps tokens in the OS keyring.
type KeyringStore struct{}

func (KeyringStore) Get(_ context.Context, domain string) (string, error) {
	token, err := keyring.Get(KeyringService, vault.SessionVar(domain))
	if errors.Is(err, keyring.ErrNotFound) || (err == nil && token == "") {
		return "", notLoggedIn(domain)
	}
	if err != nil {
		return "", fmt.Errorf("reading keyring: %w", err)
	}
	return token, nil
}

func (KeyringStore) Set(_ context.Context, domain, token string) error {
	if err := keyring.Set(KeyringService, vault.SessionVar(domain), token); err != nil {
		return fmt.Errorf("writing keyring: %w", err)
	}
	return nil
}

func (KeyringStore) Delete(_ context.Context, domain string) error {
	err := keyring.Delete(KeyringService, vault.SessionVar(domain))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("deleting keyring entry: %w", err)
	}
	return nil
}

// KV is the subset of the Redis client RedisStore needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// RedisStore keeps tokens in Redis with an expiry matching op's session
// lifetime, so a stale token disappears on its own.
type RedisStore struct {
	kv  KV
	ttl time.Duration
}

func NewRedisStore(kv KV, ttl time.Duration) *RedisStore {
	return &RedisStore{kv: kv, ttl: ttl}
}

func redisKey(domain string) string {
	return "oppy:session:" + domain
}

func (s *RedisStore) Get(ctx context.Context, domain string) (string, error) {
	val, err := s.kv.Get(ctx, redisKey(domain))
	if redis.IsNilError(err) || (err == nil && len(val) == 0) {
		return "", notLoggedIn(domain)
	}
	if err != nil {
		return "", fmt.Errorf("reading session from redis: %w", err)
	}
	return string(val), nil
}

func (s *RedisStore) Set(ctx context.Context, domain, token string) error {
	if err := s.kv.Set(ctx, redisKey(domain), []byte(token), s.ttl); err != nil {
		return fmt.Errorf("writing session to redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, domain string) error {
	return s.kv.Del(ctx, redisKey(domain))
}

// EnvStore reads OP_SESSION_<domain> from the environment, as exported by
// `eval $(op signin)`. Set only affects this process.
type EnvStore struct{}

func (EnvStore) Get(_ context.Context, domain string) (string, error) {
	if token := os.Getenv(vault.SessionVar(domain)); token != "" {
		return token, nil
	}
	return "", notLoggedIn(domain)
}

func (EnvStore) Set(_ context.Context, domain, token string) error {
	return os.Setenv(vault.SessionVar(domain), token)
}

func (EnvStore) Delete(_ context.Context, domain string) error {
	return os.Unsetenv(vault.SessionVar(domain))
}

// Open returns the store selected by cfg.Backend. kv is only used by the
// redis backend and may be nil otherwise.
func Open(cfg config.SessionConfig, kv KV) (Store, error) {
	switch cfg.Backend {
	case "", "keyring":
		return KeyringStore{}, nil
	case "env":
		return EnvStore{}, nil
	case "redis":
		if kv == nil {
			return nil, apperrors.New(apperrors.ErrUnavailable, apperrors.ExitUnavailable, "redis session backend needs a redis connection")
		}
		return NewRedisStore(kv, cfg.TTL), nil
	default:
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "unknown session backend %q", cfg.Backend)
	}
}
