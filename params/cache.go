package params

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/puzpuzpuz/xsync/v3"
)

// SSMAPI is the subset of *ssm.Client the cache depends on. It mirrors the
// AWS SDK v2 client signature so either the real client or a fake source
// satisfies it.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

var (
	cacheHits     = metrics.GetOrCreateCounter(`plinth_params_cache_hits_total`)
	cacheMisses   = metrics.GetOrCreateCounter(`plinth_params_cache_misses_total`)
	mockHits      = metrics.GetOrCreateCounter(`plinth_params_mock_hits_total`)
	sourceFetches = metrics.GetOrCreateCounter(`plinth_params_source_fetches_total`)
)

// Config holds configuration for the Cache.
type Config struct {
	// Policies maps parameter names to retention policies. Names without a
	// configured policy default to Temporary with no expiry.
	Policies map[string]Policy

	// Dir is the directory backing Persistent entries.
	// Default: <os.TempDir()>/plinth-params
	Dir string

	// Mock resolves overrides when mock mode is enabled.
	// Default: EnvProvider{} (process environment, DefaultEnvPrefix).
	Mock Provider

	// Logger receives debug output for cache decisions.
	// Default: slog.Default()
	Logger *slog.Logger

	// Now is the clock used for fetch timestamps and expiry checks.
	// Default: time.Now. Tests inject a fake to simulate time.
	Now func() time.Time
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.Dir == "" {
		c.Dir = filepath.Join(os.TempDir(), "plinth-params")
	}
	if c.Mock == nil {
		c.Mock = EnvProvider{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Cache resolves parameters from SSM and holds them under per-name
// retention policies. All methods are safe for concurrent use; a cache
// miss may perform redundant concurrent fetches for the same name, which
// is accepted rather than serialized.
type Cache struct {
	source SSMAPI
	config Config

	policyMu sync.RWMutex
	policies map[string]Policy

	entries  *xsync.MapOf[string, Value]
	disk     *diskStore
	mockMode atomic.Bool
}

// New creates a new Cache instance.
func New(source SSMAPI, config Config) *Cache {
	config.validate()

	policies := make(map[string]Policy, len(config.Policies))
	for name, p := range config.Policies {
		policies[name] = p
	}

	return &Cache{
		source:   source,
		config:   config,
		policies: policies,
		entries:  xsync.NewMapOf[string, Value](),
		disk:     &diskStore{dir: config.Dir},
	}
}

// Configure replaces the per-name policy table. Call it before the first
// Get; entries already cached keep the policy they were stored under until
// invalidated or expired.
func (c *Cache) Configure(policies map[string]Policy) {
	next := make(map[string]Policy, len(policies))
	for name, p := range policies {
		next[name] = p
	}
	c.policyMu.Lock()
	c.policies = next
	c.policyMu.Unlock()
}

// SetMockMode toggles mock resolution. While enabled, Get consults the
// configured override provider first and falls through to normal
// resolution when no override exists for the name.
func (c *Cache) SetMockMode(enabled bool) {
	c.mockMode.Store(enabled)
}

// Get resolves one parameter. Resolution order: mock override (only in
// mock mode; never written back to the cache), live cached entry, durable
// entry for Persistent names, then the remote source. Fetch failures are
// surfaced as ErrNotFound or ErrSourceUnavailable and are never cached.
func (c *Cache) Get(ctx context.Context, name string) (Value, error) {
	if c.mockMode.Load() {
		if v, ok := c.config.Mock.Lookup(name); ok {
			mockHits.Inc()
			return Value{String: v, FetchedAt: c.config.Now()}, nil
		}
	}

	policy := c.policy(name)

	if v, ok := c.entries.Load(name); ok {
		if !policy.expired(v, c.config.Now()) {
			cacheHits.Inc()
			return v, nil
		}
		c.entries.Delete(name)
		c.config.Logger.Debug("cached parameter expired",
			"name", name,
			"ttl", policy.TTL,
		)
	}

	if policy.Retention == Persistent {
		if v, ok, err := c.disk.load(name); err == nil && ok && !policy.expired(v, c.config.Now()) {
			c.entries.Store(name, v)
			cacheHits.Inc()
			return v, nil
		} else if err != nil {
			c.config.Logger.Warn("failed to read persisted parameter",
				"name", name,
				"error", err,
			)
		}
	}

	cacheMisses.Inc()
	return c.fetch(ctx, name, policy)
}

// Invalidate drops any cached entry for name, in memory and on disk, so
// the next Get re-fetches from the remote source.
func (c *Cache) Invalidate(name string) {
	c.entries.Delete(name)
	if err := c.disk.delete(name); err != nil {
		c.config.Logger.Warn("failed to remove persisted parameter",
			"name", name,
			"error", err,
		)
	}
}

func (c *Cache) policy(name string) Policy {
	c.policyMu.RLock()
	p, ok := c.policies[name]
	c.policyMu.RUnlock()
	if !ok {
		return Policy{Retention: Temporary}
	}
	return p
}

func (c *Cache) fetch(ctx context.Context, name string, policy Policy) (Value, error) {
	sourceFetches.Inc()
	result, err := c.source.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			return Value{}, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return Value{}, fmt.Errorf("%w: fetch %q: %v", ErrSourceUnavailable, name, err)
	}
	if result.Parameter == nil || result.Parameter.Value == nil {
		return Value{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	v := Value{String: *result.Parameter.Value, FetchedAt: c.config.Now()}
	c.entries.Store(name, v)

	if policy.Retention == Persistent {
		if err := c.disk.store(name, v); err != nil {
			// Entry stays usable in memory; durability degrades only.
			c.config.Logger.Warn("failed to persist parameter",
				"name", name,
				"error", err,
			)
		}
	}

	return v, nil
}
