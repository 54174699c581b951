package service

import (
	"context"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/cache"
	"github.com/toprakhenaz/sword-combat/internal/domain"
	"github.com/toprakhenaz/sword-combat/internal/store"
)

const (
	cacheKeyItems = "catalog:items"
	cacheKeyTasks = "catalog:tasks"
)

// CatalogService serves item and task catalogs through a cache.
type CatalogService struct {
	store store.Store
	cache cache.Cache
	ttl   time.Duration
}

func NewCatalogService(st store.Store, c cache.Cache, ttl time.Duration) *CatalogService {
	if c == nil {
		c = cache.Nop{}
	}
	return &CatalogService{store: st, cache: c, ttl: ttl}
}

func (s *CatalogService) Items(ctx context.Context) ([]*domain.Item, error) {
	return cache.Fetch(ctx, s.cache, cacheKeyItems, s.ttl, s.store.Items().List)
}

// ActiveTasks returns tasks visible to players.
func (s *CatalogService) ActiveTasks(ctx context.Context) ([]*domain.Task, error) {
	return cache.Fetch(ctx, s.cache, cacheKeyTasks, s.ttl, func(ctx context.Context) ([]*domain.Task, error) {
		return s.store.Tasks().List(ctx, true)
	})
}

// Invalidate drops cached catalogs after an admin edit.
func (s *CatalogService) Invalidate(ctx context.Context) {
	_ = s.cache.Delete(ctx, cacheKeyItems, cacheKeyTasks)
}
