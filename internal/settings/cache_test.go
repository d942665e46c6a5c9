package settings

import (
	"context"
	"errors"
	"testing"
)

type fakeSettingsStore struct {
	values    map[string]string
	listCalls int
	failList  bool
	failWrite bool
}

func (f *fakeSettingsStore) ListSettings(ctx context.Context) (map[string]string, error) {
	f.listCalls++
	if f.failList {
		return nil, errors.New("db down")
	}
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out, nil
}

func (f *fakeSettingsStore) UpsertSetting(ctx context.Context, key, value string) error {
	if f.failWrite {
		return errors.New("db down")
	}
	if f.values == nil {
		f.values = make(map[string]string)
	}
	f.values[key] = value
	return nil
}

func TestCacheReadThrough(t *testing.T) {
	ctx := context.Background()
	fake := &fakeSettingsStore{values: map[string]string{
		KeyCommentsEnabled: "false",
		KeySiteTitle:       "Folio",
	}}
	cache := NewCache(fake)

	if got := cache.GetString(ctx, KeySiteTitle, "fallback"); got != "Folio" {
		t.Errorf("expected Folio, got %s", got)
	}
	if cache.GetBool(ctx, KeyCommentsEnabled, true) {
		t.Error("expected comments_enabled=false")
	}

	// Second read must come from the cache
	cache.Get(ctx, KeySiteTitle)
	if fake.listCalls != 1 {
		t.Errorf("expected 1 store read, got %d", fake.listCalls)
	}
}

func TestCacheDefaults(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(&fakeSettingsStore{})

	if !cache.GetBool(ctx, KeySuggestionsEnabled, true) {
		t.Error("expected default true for unset boolean")
	}
	if got := cache.GetString(ctx, KeyDefaultLanguage, "ru"); got != "ru" {
		t.Errorf("expected default ru, got %s", got)
	}
}

func TestCacheMalformedBool(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(&fakeSettingsStore{values: map[string]string{
		KeyCommentsEnabled: "banana",
	}})

	if !cache.GetBool(ctx, KeyCommentsEnabled, true) {
		t.Error("expected default for malformed boolean")
	}
}

func TestCacheSetUpdatesBothSides(t *testing.T) {
	ctx := context.Background()
	fake := &fakeSettingsStore{}
	cache := NewCache(fake)

	if err := cache.Set(ctx, KeySiteTitle, "New Title"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if fake.values[KeySiteTitle] != "New Title" {
		t.Error("expected value persisted to the store")
	}
	if got := cache.GetString(ctx, KeySiteTitle, ""); got != "New Title" {
		t.Errorf("expected cached value, got %s", got)
	}
}

func TestCacheSetBeforeFirstReadSurvivesReload(t *testing.T) {
	ctx := context.Background()
	fake := &fakeSettingsStore{values: map[string]string{KeyDefaultLanguage: "ru"}}
	cache := NewCache(fake)

	// Write before any read has populated the cache.
	if err := cache.Set(ctx, KeySiteTitle, "New Title"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	all, err := cache.All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if all[KeySiteTitle] != "New Title" {
		t.Errorf("expected written value in All, got %v", all)
	}
	if all[KeyDefaultLanguage] != "ru" {
		t.Errorf("expected pre-existing value in All, got %v", all)
	}
	if got := cache.GetString(ctx, KeySiteTitle, "unset"); got != "New Title" {
		t.Errorf("expected written value, got %s", got)
	}
	if fake.listCalls != 1 {
		t.Errorf("expected a single store read, got %d", fake.listCalls)
	}
}

func TestCacheSetFailureDoesNotCache(t *testing.T) {
	ctx := context.Background()
	fake := &fakeSettingsStore{failWrite: true}
	cache := NewCache(fake)

	if err := cache.Set(ctx, KeySiteTitle, "x"); err == nil {
		t.Fatal("expected error from failed write")
	}

	fake.failWrite = false
	if got := cache.GetString(ctx, KeySiteTitle, "unset"); got != "unset" {
		t.Errorf("failed write must not populate the cache, got %s", got)
	}
}

func TestCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	fake := &fakeSettingsStore{values: map[string]string{KeySiteTitle: "v1"}}
	cache := NewCache(fake)

	cache.Get(ctx, KeySiteTitle)
	fake.values[KeySiteTitle] = "v2"

	if got := cache.GetString(ctx, KeySiteTitle, ""); got != "v1" {
		t.Errorf("expected stale cached v1, got %s", got)
	}

	cache.Invalidate()
	if got := cache.GetString(ctx, KeySiteTitle, ""); got != "v2" {
		t.Errorf("expected reloaded v2, got %s", got)
	}
	if fake.listCalls != 2 {
		t.Errorf("expected 2 store reads, got %d", fake.listCalls)
	}
}
