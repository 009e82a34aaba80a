package store

import (
	"context"
	"time"

	"github.com/promptforge/backend/internal/cache"
	"github.com/promptforge/backend/internal/models"
)

// Cached decorates a Store with a read-through cache for the defaults tables,
// which every executor invocation reads and which change rarely.
type Cached struct {
	Store
	cache *cache.Cache
	ttl   time.Duration
}

func NewCached(inner Store, c *cache.Cache, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cached{Store: inner, cache: c, ttl: ttl}
}

func (s *Cached) GetGlobalDefaults(ctx context.Context) (*models.GlobalDefaults, error) {
	var g models.GlobalDefaults
	if err := s.cache.Get(ctx, "defaults:global", &g); err == nil {
		return &g, nil
	}

	fresh, err := s.Store.GetGlobalDefaults(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, "defaults:global", fresh, s.ttl)
	return fresh, nil
}

func (s *Cached) GetModelDefaults(ctx context.Context, model string) (*models.ModelDefaults, error) {
	key := "defaults:model:" + model
	var m models.ModelDefaults
	if err := s.cache.Get(ctx, key, &m); err == nil {
		return &m, nil
	}

	fresh, err := s.Store.GetModelDefaults(ctx, model)
	if err != nil {
		return nil, err
	}
	if fresh != nil {
		_ = s.cache.Set(ctx, key, fresh, s.ttl)
	}
	return fresh, nil
}
