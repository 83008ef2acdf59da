package service

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// StatsCache memoises aggregate queries between ledger mutations.
type StatsCache struct {
	c *cache.Cache
}

func NewStatsCache(ttl time.Duration) *StatsCache {
	return &StatsCache{c: cache.New(ttl, 2*ttl)}
}

func (s *StatsCache) get(key string) (interface{}, bool) {
	if s == nil {
		return nil, false
	}
	return s.c.Get(key)
}

func (s *StatsCache) set(key string, v interface{}) {
	if s != nil {
		s.c.SetDefault(key, v)
	}
}

// Invalidate drops every cached aggregate.
func (s *StatsCache) Invalidate() {
	if s != nil {
		s.c.Flush()
	}
}
