// Package service caches constructed memory service instances by
// configuration identity. One instance per key, rebuilt only when the
// recognized configuration changes.
package service

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/rcliao/memu-bridge/internal/memsvc"
)

// ConstructionError wraps a failure from the service constructor, so
// callers can tell bad configuration apart from operation failures.
type ConstructionError struct {
	Key string
	Err error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("construct service %q: %v", e.Key, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

type entry struct {
	fingerprint string
	svc         memsvc.Service
}

// Cache owns every live service instance in the daemon. Instances are
// never torn down; process exit reclaims them.
type Cache struct {
	construct memsvc.Constructor

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	entries map[string]entry
}

// NewCache creates a cache that builds instances with the given
// constructor.
func NewCache(construct memsvc.Constructor) *Cache {
	return &Cache{
		construct: construct,
		locks:     make(map[string]*sync.Mutex),
		entries:   make(map[string]entry),
	}
}

// GetOrCreate returns the cached instance for the payload's key, building
// one when the key is new or its recognized configuration changed. The
// per-key lock serializes construction: two concurrent requests for the
// same key can never double-construct. A failed construction leaves the
// cache untouched so a corrected request can retry.
func (c *Cache) GetOrCreate(payload map[string]any) (memsvc.Service, error) {
	key := Key(payload)
	filtered := FilteredConfig(payload)
	fingerprint := Fingerprint(filtered)

	lock := c.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	c.mu.Lock()
	cur, ok := c.entries[key]
	c.mu.Unlock()
	if ok && cur.fingerprint == fingerprint {
		return cur.svc, nil
	}

	if err := os.MkdirAll(ResourcesDir(payload), 0o755); err != nil {
		return nil, &ConstructionError{Key: key, Err: fmt.Errorf("create resources dir: %w", err)}
	}

	cfg, err := DecodeConfig(filtered)
	if err != nil {
		return nil, &ConstructionError{Key: key, Err: err}
	}

	svc, err := c.construct(cfg)
	if err != nil {
		return nil, &ConstructionError{Key: key, Err: err}
	}

	c.mu.Lock()
	c.entries[key] = entry{fingerprint: fingerprint, svc: svc}
	c.mu.Unlock()
	return svc, nil
}

// Len reports how many service instances are live.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys lists the live cache keys, sorted.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// lockFor returns the exclusive lock for a key, creating it on first
// reference. Locks are never removed; key cardinality is bounded by
// distinct configurations, not requests.
func (c *Cache) lockFor(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.locks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	c.locks[key] = l
	return l
}
