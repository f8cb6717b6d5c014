package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/enfermeria-api/pkg/errors"
)

type memoryCache struct {
	items       map[string][]byte
	getErr      error
	invalidated []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: map[string][]byte{}}
}

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.items[key] = raw
	return nil
}

func (m *memoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	m.invalidated = append(m.invalidated, pattern)
	m.items = map[string][]byte{}
	return nil
}

func TestCacheServiceRoundTrip(t *testing.T) {
	cache := NewCacheService(newMemoryCache(), NewMetricsService(), time.Minute, nil, true)
	ctx := context.Background()

	var out []string
	assert.False(t, cache.Get(ctx, "k", &out))

	cache.Set(ctx, "k", []string{"a"}, 0)
	assert.True(t, cache.Get(ctx, "k", &out))
	assert.Equal(t, []string{"a"}, out)

	cache.Invalidate(ctx, "k*")
	assert.False(t, cache.Get(ctx, "k", &out))
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	repo := newMemoryCache()
	cache := NewCacheService(repo, nil, time.Minute, nil, false)
	cache.Set(context.Background(), "k", 1, 0)
	assert.Empty(t, repo.items)
	var v int
	assert.False(t, cache.Get(context.Background(), "k", &v))
}

func TestCacheServiceErrorsDegradeToMiss(t *testing.T) {
	repo := newMemoryCache()
	repo.getErr = errors.New("connection refused")
	metrics := NewMetricsService()
	cache := NewCacheService(repo, metrics, time.Minute, nil, true)

	var v int
	assert.False(t, cache.Get(context.Background(), "k", &v))
	assert.Equal(t, uint64(1), metrics.Snapshot().CacheMisses)
}
