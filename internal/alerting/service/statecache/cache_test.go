package statecache

import (
	"context"
	"testing"
	"time"

	"github.com/qiniu/cloudmonitor/internal/alerting/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCache(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer rdb.Close()

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping test")
	}

	c := NewRedisCache(rdb)
	target := "statecache-test-target"
	t.Cleanup(func() {
		rdb.Del(ctx, targetKey(target))
		rdb.SRem(ctx, openIndexKey, target)
		rdb.SRem(ctx, closedIndexKey, target)
	})

	opened := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a := *model.NewAlert("alert-1", model.SeverityMajor, opened)
	require.NoError(t, c.Put(ctx, target, a))

	got, err := c.Get(ctx, target)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Open)
	assert.Equal(t, "alert-1", got.Alert.ID)
	assert.Equal(t, model.SeverityMajor, got.Alert.Severity)

	open, err := c.OpenTargets(ctx)
	require.NoError(t, err)
	assert.Contains(t, open, target)

	require.NoError(t, c.Resolve(ctx, target, opened.Add(time.Minute)))
	got, err = c.Get(ctx, target)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Open)
	require.NotNil(t, got.ResolvedAt)
	assert.True(t, got.ResolvedAt.Equal(opened.Add(time.Minute)))

	isClosed, err := rdb.SIsMember(ctx, closedIndexKey, target).Result()
	require.NoError(t, err)
	assert.True(t, isClosed)
}

func TestNoopCache(t *testing.T) {
	var c AlertCache = NoopCache{}
	ctx := context.Background()
	assert.NoError(t, c.Put(ctx, "t", model.Alert{}))
	assert.NoError(t, c.Resolve(ctx, "t", time.Now()))
	e, err := c.Get(ctx, "t")
	assert.NoError(t, err)
	assert.Nil(t, e)
}
