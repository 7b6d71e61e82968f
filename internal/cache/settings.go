package cache

import (
	"context"
	"sync"
	"time"

	"chama-connect/internal/models"
)

type SettingsLoader func(context.Context) (*models.RaffleSettings, error)

// SettingsCache is a read-through cache for the raffle settings row.
type SettingsCache struct {
	mu       sync.RWMutex
	value    *models.RaffleSettings
	expires  time.Time
	ttl      time.Duration
	loadFunc SettingsLoader
}

func NewSettingsCache(ttl time.Duration, loader SettingsLoader) *SettingsCache {
	return &SettingsCache{
		ttl:      ttl,
		loadFunc: loader,
	}
}

// Get returns a copy so callers cannot mutate the cached value.
func (c *SettingsCache) Get(ctx context.Context) (*models.RaffleSettings, error) {
	c.mu.RLock()
	if time.Now().Before(c.expires) && c.value != nil {
		defer c.mu.RUnlock()
		v := *c.value
		return &v, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Now().Before(c.expires) && c.value != nil {
		v := *c.value
		return &v, nil
	}
	settings, err := c.loadFunc(ctx)
	if err != nil {
		return nil, err
	}
	c.value = settings
	c.expires = time.Now().Add(c.ttl)
	v := *settings
	return &v, nil
}

func (c *SettingsCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = nil
	c.expires = time.Time{}
}
