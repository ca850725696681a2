package slsconfig

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/goliatone/go-slsconfig/document"
)

// DocumentCache stores resolved file references keyed by absolute path.
type DocumentCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// LRUDocumentCache is a bounded DocumentCache. Values are cloned on the way
// in and out so callers never share trees.
type LRUDocumentCache struct {
	cache *lru.Cache[string, any]
}

// NewLRUDocumentCache returns a cache holding up to size documents.
func NewLRUDocumentCache(size int) (*LRUDocumentCache, error) {
	if size <= 0 {
		size = 64
	}
	cache, err := lru.New[string, any](size)
	if err != nil {
		return nil, err
	}
	return &LRUDocumentCache{cache: cache}, nil
}

// Get implements DocumentCache.
func (c *LRUDocumentCache) Get(key string) (any, bool) {
	value, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	return document.Clone(value), true
}

// Set implements DocumentCache.
func (c *LRUDocumentCache) Set(key string, value any) {
	c.cache.Add(key, document.Clone(value))
}

// Len reports how many documents are cached.
func (c *LRUDocumentCache) Len() int {
	return c.cache.Len()
}

// Purge drops every entry.
func (c *LRUDocumentCache) Purge() {
	c.cache.Purge()
}
