// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cache

import (
	"encoding/json"
	"strings"
	"time"
)

const memoryWarnBytes = 100 << 20

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits           uint64         `json:"hits"`
	Misses         uint64         `json:"misses"`
	Evictions      uint64         `json:"evictions"`
	Expirations    uint64         `json:"expirations"`
	Size           int            `json:"size"`
	MaxSize        int            `json:"max_size"`
	ExpiredEntries int            `json:"expired_entries"`
	HitRate        float64        `json:"hit_rate"`
	ByPrefix       map[string]int `json:"by_prefix"`
	EstimatedBytes int64          `json:"estimated_bytes"`
	Uptime         time.Duration  `json:"uptime"`
}

// Requests returns hits plus misses.
func (s Stats) Requests() uint64 {
	return s.Hits + s.Misses
}

// Utilization returns Size as a fraction of MaxSize.
func (s Stats) Utilization() float64 {
	if s.MaxSize == 0 {
		return 0
	}
	return float64(s.Size) / float64(s.MaxSize)
}

// Stats returns current counters. Entry sizes are estimated from their
// JSON encoding; values that fail to encode count as zero bytes.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	now := c.now()
	s := Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
		Size:        c.lru.Len(),
		MaxSize:     c.maxSize,
		ByPrefix:    make(map[string]int),
		Uptime:      now.Sub(c.createdAt),
	}
	values := make([]any, 0, s.Size)
	for _, key := range c.lru.Keys() {
		e, ok := c.lru.Peek(key)
		if !ok {
			continue
		}
		if e.expired(now) {
			s.ExpiredEntries++
		}
		namespace, _, _ := strings.Cut(key, ":")
		s.ByPrefix[namespace]++
		values = append(values, e.value)
	}
	c.mu.Unlock()

	for _, v := range values {
		if b, err := json.Marshal(v); err == nil {
			s.EstimatedBytes += int64(len(b))
		}
	}
	if total := s.Requests(); total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

// Recommendations returns tuning advice for the snapshot.
func (s Stats) Recommendations() []string {
	var recs []string

	if s.Requests() > 0 {
		switch {
		case s.HitRate < 0.5:
			recs = append(recs, "Low hit rate (<50%). Consider longer TTLs or caching more data.")
		case s.HitRate > 0.9:
			recs = append(recs, "Excellent hit rate (>90%). Cache is working effectively.")
		}
	}

	util := s.Utilization()
	if util > 0.8 {
		recs = append(recs, "High cache utilization (>80%). Consider increasing the max size.")
	} else if util < 0.1 && s.Size > 10 {
		recs = append(recs, "Low cache utilization (<10%). The max size could be reduced.")
	}

	if s.Size > 0 && float64(s.ExpiredEntries) > float64(s.Size)*0.1 {
		recs = append(recs, "Many expired entries. Consider sweeping more often.")
	}

	if s.EstimatedBytes > memoryWarnBytes {
		recs = append(recs, "High memory usage (>100MB). Consider reducing TTLs or the max size.")
	}

	if len(recs) == 0 {
		recs = append(recs, "Cache performance looks good.")
	}
	return recs
}
