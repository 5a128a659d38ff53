package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Titles []string `json:"titles"`
}

func setupCache(t *testing.T) (*miniredis.Miniredis, *Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb, err := Connect(context.Background(), mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	return mr, New(rdb)
}

func TestConnect_URLAndFailure(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb, err := Connect(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	_ = rdb.Close()

	_, err = Connect(context.Background(), "redis://%zz")
	assert.Error(t, err)

	addr := mr.Addr()
	mr.Close()
	_, err = Connect(context.Background(), addr)
	assert.Error(t, err)
}

func TestClient_Aside(t *testing.T) {
	mr, c := setupCache(t)
	ctx := context.Background()
	key := FeedKey(50)

	calls := 0
	fetch := func(dest *payload) func() error {
		return func() error {
			calls++
			dest.Titles = []string{"Exam Stress"}
			return nil
		}
	}

	var first payload
	require.NoError(t, c.Aside(ctx, key, &first, time.Minute, fetch(&first)))
	assert.Equal(t, 1, calls)
	assert.True(t, mr.Exists(key))

	var second payload
	require.NoError(t, c.Aside(ctx, key, &second, time.Minute, fetch(&second)))
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"Exam Stress"}, second.Titles)

	c.Invalidate(ctx, key)
	assert.False(t, mr.Exists(key))

	var third payload
	require.NoError(t, c.Aside(ctx, key, &third, time.Minute, fetch(&third)))
	assert.Equal(t, 2, calls)

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists(key))
}

func TestClient_AsideBypassAndErrors(t *testing.T) {
	_, c := setupCache(t)
	ctx := context.Background()

	calls := 0
	var dest payload
	require.NoError(t, c.Aside(ctx, "k", &dest, 0, func() error { calls++; return nil }))
	require.NoError(t, c.Aside(ctx, "k", &dest, 0, func() error { calls++; return nil }))
	assert.Equal(t, 2, calls)

	boom := errors.New("boom")
	err := c.Aside(ctx, "other", &dest, time.Minute, func() error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestClient_NilSafe(t *testing.T) {
	ctx := context.Background()
	for _, c := range []*Client{nil, New(nil)} {
		found, err := c.GetJSON(ctx, "k", &payload{})
		assert.NoError(t, err)
		assert.False(t, found)
		assert.NoError(t, c.SetJSON(ctx, "k", payload{}, time.Minute))
		c.Invalidate(ctx, "k")
		assert.Nil(t, c.Redis())

		called := false
		assert.NoError(t, c.Aside(ctx, "k", &payload{}, time.Minute, func() error { called = true; return nil }))
		assert.True(t, called)
	}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "feed:recent:50", FeedKey(50))
}
