package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCacheExpiresEntries(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTTLCache[string, int](func() time.Time { return now })

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, 0)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)

	v, ok = c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())

	c.Delete("b")
	assert.Equal(t, 0, c.Len())
}

func TestIdentityCache(t *testing.T) {
	c := NewIdentityCache()

	assert.False(t, c.HasDevice("DEV-1"))
	c.MarkDevice("DEV-1")
	assert.True(t, c.HasDevice("DEV-1"))
	assert.False(t, c.HasDevice("dev-1"), "identifiers are case-sensitive")

	c.MarkDevice("   ")
	assert.False(t, c.HasDevice(""))

	c.SetNodeOwner("NODE-1", "DEV-1")
	owner, ok := c.NodeOwner("NODE-1")
	assert.True(t, ok)
	assert.Equal(t, "DEV-1", owner)

	c.ForgetNode("NODE-1")
	_, ok = c.NodeOwner("NODE-1")
	assert.False(t, ok)

	c.ForgetDevice("DEV-1")
	assert.False(t, c.HasDevice("DEV-1"))
}
