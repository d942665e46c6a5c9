// Package settings exposes site-wide settings backed by the settings table
// with an in-process read-through cache.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// Well-known keys. Values are stored as strings; boolean keys hold
// "true"/"false".
const (
	KeyRegistrationEnabled    = "registration_enabled"
	KeyCommentsEnabled        = "comments_enabled"
	KeySuggestionsEnabled     = "suggestions_enabled"
	KeySiteTitle              = "site_title"
	KeyDefaultLanguage        = "default_language"
	KeyCommentCooldownSeconds = "comment_cooldown_seconds"
)

// Store is the persistence interface the cache reads through to.
type Store interface {
	ListSettings(ctx context.Context) (map[string]string, error)
	UpsertSetting(ctx context.Context, key, value string) error
}

// Cache keeps all settings in memory after the first read. Writes go to
// the store first and update the cached copy only on success.
type Cache struct {
	store Store

	mu     sync.RWMutex
	loaded bool
	values map[string]string
}

func NewCache(store Store) *Cache {
	return &Cache{store: store}
}

// All returns a copy of every setting.
func (c *Cache) All(ctx context.Context) (map[string]string, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out, nil
}

// Get returns the value for key and whether it is set.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return "", false, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.values[key]
	return value, ok, nil
}

// GetBool reads a boolean setting, returning def when unset or malformed.
func (c *Cache) GetBool(ctx context.Context, key string, def bool) bool {
	value, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return def
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return parsed
}

// GetInt reads an integer setting, returning def when unset or malformed.
func (c *Cache) GetInt(ctx context.Context, key string, def int) int {
	value, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

// GetString reads a string setting, returning def when unset.
func (c *Cache) GetString(ctx context.Context, key, def string) string {
	value, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return def
	}
	return value
}

// Set persists the value and updates the cache. The cache is populated
// first so a write before the first read is not lost to a later reload.
func (c *Cache) Set(ctx context.Context, key, value string) error {
	if err := c.ensureLoaded(ctx); err != nil {
		return err
	}
	if err := c.store.UpsertSetting(ctx, key, value); err != nil {
		return fmt.Errorf("persist setting %s: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

// Invalidate drops the cached copy; the next read reloads from the store.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = false
	c.values = nil
}

func (c *Cache) ensureLoaded(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}

	values, err := c.store.ListSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	c.values = values
	c.loaded = true
	return nil
}
