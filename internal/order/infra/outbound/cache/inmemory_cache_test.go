package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davicafu/orderbus/internal/order/domain"
)

func TestInMemoryCache_SetGetDelete(t *testing.T) {
	c := NewInMemoryCache(time.Minute, time.Minute)
	defer c.Stop()
	ctx := context.Background()

	view := domain.OrderView{Identifier: "A1", Amount: 100, Status: domain.StatusCreated}
	require.NoError(t, c.Set(ctx, domain.CacheKeyByID("A1"), view, 0))

	var got domain.OrderView
	hit, err := c.Get(ctx, domain.CacheKeyByID("A1"), &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, view, got)

	require.NoError(t, c.Delete(ctx, domain.CacheKeyByID("A1")))
	hit, err = c.Get(ctx, domain.CacheKeyByID("A1"), &got)
	assert.NoError(t, err)
	assert.False(t, hit)
}

func TestInMemoryCache_Expiration(t *testing.T) {
	c := NewInMemoryCache(time.Minute, time.Minute)
	defer c.Stop()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	var v string
	hit, err := c.Get(ctx, "k", &v)
	assert.NoError(t, err)
	assert.False(t, hit)
}

func TestInMemoryCache_SetIfAbsent(t *testing.T) {
	c := NewInMemoryCache(time.Minute, time.Minute)
	defer c.Stop()
	ctx := context.Background()

	stored, err := c.SetIfAbsent(ctx, "order:event:e-1", true, 0)
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = c.SetIfAbsent(ctx, "order:event:e-1", true, 0)
	require.NoError(t, err)
	assert.False(t, stored)

	c.Stop()
	c.Stop()
}
