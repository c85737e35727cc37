// Copyright 2025 KrakLabs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package astcache implements the bounded AST cache: a map from absolute
// file path to its parsed syntax-tree root, capped by both entry count and
// approximate memory use, with LRU eviction.
package astcache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Entry is one cached parse result.
type Entry struct {
	Root     any // opaque *sitter.Node, kept untyped to avoid a parse-package import cycle
	Language string
	Bytes    int // approximate memory footprint in bytes
}

// Cache is the bounded AST cache described in the data model: LRU eviction
// on insertion overflow, checked against both caps independently.
type Cache struct {
	mu               sync.Mutex
	order            *lru.Cache[string, struct{}] // tracks recency independent of Entry storage
	entries          map[string]Entry
	maxEntries       int
	maxMemoryBytes   int64
	evictionFraction int // percent of entries dropped on a memory-cap breach
	totalBytes       int64
}

// New creates an AST cache bounded by maxEntries and maxMemoryBytes.
// evictionFraction is the percentage of (oldest) entries removed when a
// memory-cap breach is detected (default 10, per configuration contract).
func New(maxEntries int, maxMemoryBytes int64, evictionFraction int) *Cache {
	if evictionFraction <= 0 {
		evictionFraction = 10
	}
	order, _ := lru.New[string, struct{}](maxEntries + 1)
	return &Cache{
		order:            order,
		entries:          make(map[string]Entry, maxEntries),
		maxEntries:       maxEntries,
		maxMemoryBytes:   maxMemoryBytes,
		evictionFraction: evictionFraction,
	}
}

// Get returns the cached entry for path, if present, marking it recently
// used.
func (c *Cache) Get(path string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	if ok {
		c.order.Get(path) // touch for recency
	}
	return e, ok
}

// Put inserts or replaces the entry for path, then evicts to satisfy both
// caps: while len > max_entries, pop the oldest; if approximate byte size
// exceeds max_memory_bytes, pop evictionFraction percent of the oldest
// entries.
func (c *Cache) Put(path string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[path]; ok {
		c.totalBytes -= int64(old.Bytes)
	}
	c.entries[path] = e
	c.totalBytes += int64(e.Bytes)
	c.order.Add(path, struct{}{})

	for len(c.entries) > c.maxEntries {
		c.evictOldestLocked(1)
	}
	if c.maxMemoryBytes > 0 && c.totalBytes > c.maxMemoryBytes && len(c.entries) > 0 {
		n := len(c.entries) * c.evictionFraction / 100
		if n < 1 {
			n = 1
		}
		c.evictOldestLocked(n)
	}
}

// Evict removes path from the cache if present.
func (c *Cache) Evict(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[path]; ok {
		c.totalBytes -= int64(e.Bytes)
		delete(c.entries, path)
		c.order.Remove(path)
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// ApproximateBytes returns the running byte-size estimate.
func (c *Cache) ApproximateBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalBytes
}

// evictOldestLocked removes up to n least-recently-used entries. Caller
// must hold c.mu.
func (c *Cache) evictOldestLocked(n int) {
	for i := 0; i < n; i++ {
		keys := c.order.Keys()
		if len(keys) == 0 {
			return
		}
		oldest := keys[0]
		if e, ok := c.entries[oldest]; ok {
			c.totalBytes -= int64(e.Bytes)
			delete(c.entries, oldest)
		}
		c.order.Remove(oldest)
	}
}
