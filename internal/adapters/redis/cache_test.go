package redisad_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisad "bank_reviews/internal/adapters/redis"
	"bank_reviews/internal/domain"
)

func TestCache_SetGetDel(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	var got []domain.BankSummary
	ok, err := c.Get(ctx, "report:bank_summaries", &got)
	require.NoError(t, err)
	assert.False(t, ok, "empty cache should miss")

	in := []domain.BankSummary{{BankID: 1, BankName: "CBE", Reviews: 400, AvgRating: 3.9, MinRating: 1, MaxRating: 5}}
	require.NoError(t, c.Set(ctx, "report:bank_summaries", in, 60))
	assert.True(t, mr.Exists("bank_reviews:report:bank_summaries"), "key should carry the prefix")

	ok, err = c.Get(ctx, "report:bank_summaries", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in, got)

	require.NoError(t, c.Del(ctx, "report:bank_summaries"))
	ok, err = c.Get(ctx, "report:bank_summaries", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", map[string]int{"a": 1}, 30))
	mr.FastForward(31 * time.Second)

	var got map[string]int
	ok, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, ok, "entry should expire after its TTL")
}

func TestCache_DelPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	for i := 1; i <= 250; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("reviews:1:%d:", i), i, 60))
	}
	require.NoError(t, c.Set(ctx, "report:themes:3", 1, 60))
	require.NoError(t, mr.Set("other_app:reviews:1", "x"))

	require.NoError(t, c.DelPrefix(ctx, "reviews:"))

	var n int
	ok, err := c.Get(ctx, "reviews:1:25:", &n)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, mr.Keys(), 2, "only the matching prefix is dropped")
	assert.True(t, mr.Exists("bank_reviews:report:themes:3"))
	assert.True(t, mr.Exists("other_app:reviews:1"))
}
