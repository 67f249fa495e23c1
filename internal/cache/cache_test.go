package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGet(t *testing.T) {
	c := New(true, 0)

	etag := c.Set("visible:en", []byte(`[{"id":1}]`), time.Minute)
	data, got, ok := c.Get("visible:en")
	require.True(t, ok)
	assert.Equal(t, `[{"id":1}]`, string(data))
	assert.Equal(t, etag, got)
}

func TestExpiredEntryIsMiss(t *testing.T) {
	c := New(true, 0)
	c.Set("k", []byte("v"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, _, ok := c.Get("k")
	assert.False(t, ok)
}

func TestDisabledCacheNeverHits(t *testing.T) {
	c := New(false, 0)
	etag := c.Set("k", []byte("v"), time.Minute)
	assert.NotEmpty(t, etag)

	_, _, ok := c.Get("k")
	assert.False(t, ok)
}

func TestFlush(t *testing.T) {
	c := New(true, 0)
	c.Set("a", []byte("1"), time.Minute)
	c.Set("b", []byte("2"), time.Minute)

	c.Flush()

	_, _, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats()["total_keys"])
}

func TestETag(t *testing.T) {
	a := ComputeETag([]byte("x"))
	assert.Equal(t, a, ComputeETag([]byte("x")))
	assert.NotEqual(t, a, ComputeETag([]byte("y")))
	assert.True(t, CheckETagMatch(a, a))
	assert.True(t, CheckETagMatch("*", a))
	assert.False(t, CheckETagMatch("", a))
}
