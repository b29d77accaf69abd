// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/pollgate/cache"
	"github.com/danielhkuo/pollgate/middleware"
)

// CacheStatsResponse is cache.Stats plus human-readable summaries.
type CacheStatsResponse struct {
	cache.Stats
	Memory          string   `json:"memory"`
	Started         string   `json:"started"`
	Recommendations []string `json:"recommendations"`
}

type CacheHandler struct {
	cache *cache.Cache
	now   func() time.Time
}

func NewCacheHandler(c *cache.Cache) *CacheHandler {
	return &CacheHandler{cache: c, now: time.Now}
}

// Stats handles GET /cache/stats
func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.cache.Stats()
	now := h.now()

	middleware.JSONResponse(w, http.StatusOK, CacheStatsResponse{
		Stats:           stats,
		Memory:          humanize.Bytes(uint64(stats.EstimatedBytes)),
		Started:         humanize.RelTime(now.Add(-stats.Uptime), now, "ago", "from now"),
		Recommendations: stats.Recommendations(),
	})
}
