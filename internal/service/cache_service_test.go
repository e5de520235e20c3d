package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenCacheRepo struct {
	sets int
}

func (b *brokenCacheRepo) Get(context.Context, string, interface{}) error {
	return errors.New("connection reset")
}

func (b *brokenCacheRepo) Set(context.Context, string, interface{}, time.Duration) error {
	b.sets++
	return errors.New("connection reset")
}

func (b *brokenCacheRepo) DeleteByPattern(context.Context, string) error {
	return errors.New("connection reset")
}

func TestCacheServiceDisabled(t *testing.T) {
	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	assert.False(t, nilSvc.Get(context.Background(), "k", &struct{}{}))
	assert.NoError(t, nilSvc.Set(context.Background(), "k", 1, 0))
	assert.NoError(t, nilSvc.InvalidateAll(context.Background()))

	svc := NewCacheService(&stubCacheRepo{}, nil, 0, nil, false)
	assert.False(t, svc.Enabled())
}

func TestCacheServiceBackendFailureIsMiss(t *testing.T) {
	metrics := NewMetricsService()
	repo := &brokenCacheRepo{}
	svc := NewCacheService(repo, metrics, time.Minute, nil, true)

	var dest []string
	assert.False(t, svc.Get(context.Background(), "k", &dest))
	assert.Equal(t, uint64(1), metrics.Snapshot().CacheMisses)
	assert.Error(t, svc.InvalidateAll(context.Background()))
}

func TestReadThrough(t *testing.T) {
	svc := NewCacheService(&stubCacheRepo{}, nil, time.Minute, nil, true)
	ctx := context.Background()
	loads := 0
	load := func(context.Context) ([]string, error) {
		loads++
		return []string{"Austin"}, nil
	}

	value, hit, err := readThrough(ctx, svc, "enrollments:test", load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"Austin"}, value)

	value, hit, err = readThrough(ctx, svc, "enrollments:test", load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"Austin"}, value)
	assert.Equal(t, 1, loads)
}

func TestReadThroughDegradesOnBrokenCache(t *testing.T) {
	repo := &brokenCacheRepo{}
	svc := NewCacheService(repo, nil, time.Minute, nil, true)

	value, hit, err := readThrough(context.Background(), svc, "k", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, value)
	assert.Equal(t, 1, repo.sets)

	_, _, err = readThrough(context.Background(), svc, "k", func(context.Context) (int, error) { return 0, errors.New("db down") })
	assert.EqualError(t, err, "db down")
	assert.Equal(t, 1, repo.sets, "failed loads are not cached")
}
