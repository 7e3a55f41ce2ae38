package entity

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Config sizes the cache. MaxEntries <= 0 disables it.
type Config struct {
	MaxEntries int
	TTL        time.Duration
}

func DefaultConfig() Config {
	return Config{MaxEntries: 0, TTL: time.Minute}
}

// Cache holds resolved entity documents by OpenCTI id. A nil *Cache is a
// valid, always-missing cache.
type Cache struct {
	lru *expirable.LRU[string, json.RawMessage]
}

// New returns nil when cfg disables caching.
func New(cfg Config) *Cache {
	if cfg.MaxEntries <= 0 {
		return nil
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	return &Cache{lru: expirable.NewLRU[string, json.RawMessage](cfg.MaxEntries, nil, cfg.TTL)}
}

func (c *Cache) Get(id string) (json.RawMessage, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.lru.Get(strings.TrimSpace(id))
	if !ok {
		return nil, false
	}
	return append(json.RawMessage(nil), v...), true
}

func (c *Cache) Set(id string, doc json.RawMessage) {
	if c == nil {
		return
	}
	id = strings.TrimSpace(id)
	if id == "" || len(doc) == 0 {
		return
	}
	c.lru.Add(id, append(json.RawMessage(nil), doc...))
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

func (c *Cache) Purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}
