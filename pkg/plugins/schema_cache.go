package plugins

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/platinummonkey/jukebox/pkg/validation"
	"golang.org/x/sync/singleflight"
)

// SchemaCache memoizes parsed schema files. Entries are keyed by path, size and
// modification time, so an edited file is parsed again on the next lookup.
type SchemaCache struct {
	cache  *lru.LRU[string, *validation.Schema]
	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
}

// SchemaCacheStats reports cache effectiveness
type SchemaCacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Entries int     `json:"entries"`
	HitRate float64 `json:"hit_rate"`
}

// NewSchemaCache creates a cache holding at most size schemas for ttl
func NewSchemaCache(size int, ttl time.Duration) *SchemaCache {
	if size < 1 {
		size = 128
	}
	return &SchemaCache{
		cache: lru.NewLRU[string, *validation.Schema](size, nil, ttl),
	}
}

// Load returns the schema at path. A missing file yields (nil, nil): the
// plugin has no schema.
func (c *SchemaCache) Load(path string) (*validation.Schema, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat schema: %w", err)
	}

	key := fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
	if schema, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return schema, nil
	}
	c.misses.Add(1)

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		schema, err := validation.LoadSchema(path)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, schema)
		return schema, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*validation.Schema), nil
}

// Purge drops every cached schema
func (c *SchemaCache) Purge() {
	c.cache.Purge()
}

// Stats returns cache statistics
func (c *SchemaCache) Stats() SchemaCacheStats {
	stats := SchemaCacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.cache.Len(),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}
