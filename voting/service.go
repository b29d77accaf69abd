// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"time"

	"github.com/danielhkuo/pollgate/cache"
)

// Config tunes a Service. Zero values select the defaults.
type Config struct {
	// CacheTTL applies to poll displays and active lists; zero uses the
	// cache's default TTL.
	CacheTTL     time.Duration
	Stage2Window time.Duration
	ExpiryPolicy ExpiryPolicy
}

// Option configures a Service.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now. Tests use it to move through deadlines.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Service wires the voting components around one store and one cache.
type Service struct {
	Ledger      *Ledger
	Evaluator   *ThresholdEvaluator
	Stages      *StageManager
	Assembler   *Assembler
	Invalidator *Invalidator
	Polls       *PollManager

	cache *cache.Cache
}

func New(st Store, c *cache.Cache, cfg Config, opts ...Option) *Service {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	now := func() time.Time { return o.now().UTC() }

	inv := NewInvalidator(c)
	stages := NewStageManager(st, inv, cfg.Stage2Window, cfg.ExpiryPolicy, now)
	evaluator := NewThresholdEvaluator(st, stages, inv, now)

	return &Service{
		Ledger:      NewLedger(st, evaluator, inv, now),
		Evaluator:   evaluator,
		Stages:      stages,
		Assembler:   NewAssembler(st, c, cfg.CacheTTL, now),
		Invalidator: inv,
		Polls:       NewPollManager(st, c, inv, cfg.CacheTTL, now),
		cache:       c,
	}
}

// Cache returns the read cache the service fills and invalidates.
func (s *Service) Cache() *cache.Cache {
	return s.cache
}
