package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryCache_Expiry(t *testing.T) {
	c := NewInMemoryCache[string, int](time.Minute, 0)
	defer c.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("overview", 1, 0)
	c.Set("positions", 2, 10*time.Second)

	v, ok := c.Get("overview")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(11 * time.Second)
	_, ok = c.Get("positions")
	assert.False(t, ok)
	_, ok = c.Get("overview")
	assert.True(t, ok)

	c.cleanup()
	assert.Equal(t, 1, c.Size())

	c.Delete("overview")
	assert.Equal(t, 0, c.Size())
}

func TestInMemoryCache_ClearAndClose(t *testing.T) {
	c := NewInMemoryCache[int, string](time.Minute, 10*time.Millisecond)
	c.Set(1, "a", 0)
	c.Clear()
	assert.Equal(t, 0, c.Size())
	c.Close()
	c.Close()
}
