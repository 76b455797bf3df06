// Package cache keeps recently decoded bank statements so that re-running a
// reconciliation against a corrected ledger does not decode the same bank
// file again.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"psp-reconciliation-service/internal/models"
	"psp-reconciliation-service/pkg/logger"
)

// Config bounds the cache.
type Config struct {
	Enabled    bool          `json:"enabled" mapstructure:"enabled"`
	MaxEntries int           `json:"max_entries" mapstructure:"max_entries"`
	TTL        time.Duration `json:"ttl" mapstructure:"ttl"`
}

// DefaultConfig returns the cache settings used when none are configured.
func DefaultConfig() *Config {
	return &Config{
		Enabled:    true,
		MaxEntries: 5,
		TTL:        10 * time.Minute,
	}
}

// Validate checks if the cache configuration is valid
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.MaxEntries <= 0 {
		return fmt.Errorf("max entries must be positive, got %d", c.MaxEntries)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", c.TTL)
	}
	return nil
}

// Stats counts cache lookups.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// DecodeFunc decodes a bank file.
type DecodeFunc func(ctx context.Context, data []byte) (*models.BankSource, error)

// SourceCache is a bounded, expiring cache of decoded bank sources keyed by
// the file content and the decode settings. It is safe for concurrent use. A
// nil *SourceCache is valid and caches nothing.
type SourceCache struct {
	entries *expirable.LRU[string, *models.BankSource]
	hits    atomic.Int64
	misses  atomic.Int64
	logger  logger.Logger
}

// New creates a cache, or returns nil when cfg disables caching.
func New(cfg *Config) (*SourceCache, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, nil
	}

	log := logger.GetGlobalLogger().WithComponent("source_cache")
	onEvict := func(key string, _ *models.BankSource) {
		log.WithField("key", shortKey(key)).Debug("Evicted decoded bank source")
	}

	return &SourceCache{
		entries: expirable.NewLRU[string, *models.BankSource](cfg.MaxEntries, onEvict, cfg.TTL),
		logger:  log,
	}, nil
}

// Key derives the cache key of a file decoded with the settings identified by
// fingerprint.
func Key(data []byte, fingerprint string) string {
	h := sha256.New()
	h.Write(data)
	h.Write([]byte{0})
	h.Write([]byte(fingerprint))
	return hex.EncodeToString(h.Sum(nil))
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}

// Get returns the source cached under key.
func (c *SourceCache) Get(key string) (*models.BankSource, bool) {
	if c == nil {
		return nil, false
	}
	source, ok := c.entries.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return source, ok
}

// Add stores source under key.
func (c *SourceCache) Add(key string, source *models.BankSource) {
	if c == nil || source == nil {
		return
	}
	c.entries.Add(key, source)
}

// GetOrDecode returns the cached source for data or decodes and caches it.
// The boolean reports a cache hit. Failed decodes are not cached.
func (c *SourceCache) GetOrDecode(ctx context.Context, data []byte, fingerprint string, decode DecodeFunc) (*models.BankSource, bool, error) {
	if c == nil {
		source, err := decode(ctx, data)
		return source, false, err
	}

	key := Key(data, fingerprint)
	if source, ok := c.Get(key); ok {
		c.logger.WithFields(logger.Fields{
			"key":    shortKey(key),
			"layout": source.Layout,
		}).Debug("Reusing decoded bank source")
		return source, true, nil
	}

	source, err := decode(ctx, data)
	if err != nil {
		return nil, false, err
	}
	c.Add(key, source)
	return source, false, nil
}

// Purge drops every entry.
func (c *SourceCache) Purge() {
	if c == nil {
		return
	}
	c.entries.Purge()
}

// Stats returns the lookup counters and the current entry count.
func (c *SourceCache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.entries.Len(),
	}
}
