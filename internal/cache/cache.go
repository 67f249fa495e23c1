// Package cache provides an in-memory TTL cache with ETag support for
// serialized API responses.
package cache

import (
	"crypto/md5"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// TTLVisibleAlerts is the default lifetime of the public visible-alerts
// response. Short, since windows open and close on the minute.
const TTLVisibleAlerts = 30 * time.Second

type entry struct {
	data []byte
	etag string
}

// Cache is a thread-safe in-memory TTL cache.
type Cache struct {
	store   *gocache.Cache
	enabled bool
}

// New creates a new cache. Pass enabled=false to create a no-op cache.
// cleanupInterval <= 0 disables the background janitor; expired entries are
// then dropped lazily on read.
func New(enabled bool, cleanupInterval time.Duration) *Cache {
	return &Cache{
		store:   gocache.New(gocache.NoExpiration, cleanupInterval),
		enabled: enabled,
	}
}

// Get retrieves a cached value. Returns data, etag, and whether the entry was found.
func (c *Cache) Get(key string) (data []byte, etag string, ok bool) {
	if !c.enabled {
		return nil, "", false
	}
	v, found := c.store.Get(key)
	if !found {
		return nil, "", false
	}
	e := v.(entry)
	return e.data, e.etag, true
}

// Set stores a value with a TTL and returns its ETag.
func (c *Cache) Set(key string, data []byte, ttl time.Duration) string {
	etag := ComputeETag(data)
	if !c.enabled {
		return etag
	}
	c.store.Set(key, entry{data: data, etag: etag}, ttl)
	return etag
}

// Flush drops every entry. Called when announcements change.
func (c *Cache) Flush() {
	c.store.Flush()
}

// Stats returns cache statistics.
func (c *Cache) Stats() map[string]interface{} {
	return map[string]interface{}{
		"enabled":     c.enabled,
		"total_keys":  c.store.ItemCount(),
		"active_keys": len(c.store.Items()),
	}
}

// ComputeETag generates a weak ETag from response data using MD5.
func ComputeETag(data []byte) string {
	hash := md5.Sum(data)
	return fmt.Sprintf(`W/"%x"`, hash[:8])
}

// CheckETagMatch checks if If-None-Match header matches the current ETag.
func CheckETagMatch(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" {
		return false
	}
	if ifNoneMatch == "*" {
		return true
	}
	return ifNoneMatch == etag
}
