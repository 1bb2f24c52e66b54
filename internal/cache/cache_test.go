package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetSet(t *testing.T) {
	c := NewTTL[string, int](0, time.Minute)
	c.Set("a", 1)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	c := NewTTL[string, int](0, time.Minute)
	now := time.Unix(0, 0)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	now = now.Add(30 * time.Second)
	_, ok := c.Get("a")
	assert.True(t, ok)

	now = now.Add(31 * time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestSetRefreshesExpiry(t *testing.T) {
	c := NewTTL[string, int](0, time.Minute)
	now := time.Unix(0, 0)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	now = now.Add(45 * time.Second)
	c.Set("a", 2)
	now = now.Add(45 * time.Second)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestCapacityEvictsExpiredFirst(t *testing.T) {
	c := NewTTL[string, int](2, time.Minute)
	now := time.Unix(0, 0)
	c.now = func() time.Time { return now }

	c.Set("old", 1)
	now = now.Add(2 * time.Minute)
	c.Set("a", 2)
	c.Set("b", 3)

	_, ok := c.Get("old")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
}

func TestCapacityEvictsClosestToExpiry(t *testing.T) {
	c := NewTTL[string, int](2, time.Minute)
	now := time.Unix(0, 0)
	c.now = func() time.Time { return now }

	c.Set("first", 1)
	now = now.Add(10 * time.Second)
	c.Set("second", 2)
	c.Set("third", 3)

	_, ok := c.Get("first")
	assert.False(t, ok)
	_, ok = c.Get("second")
	assert.True(t, ok)
	_, ok = c.Get("third")
	assert.True(t, ok)
}

func TestSweep(t *testing.T) {
	c := NewTTL[string, int](0, time.Minute)
	now := time.Unix(0, 0)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	c.Set("b", 2)
	now = now.Add(2 * time.Minute)
	c.Set("c", 3)

	assert.Equal(t, 2, c.Sweep())
	assert.Equal(t, 1, c.Len())
}

func TestFindKey(t *testing.T) {
	c := NewTTL[string, string](0, time.Minute)
	c.Set("source", "sent")

	k, ok := c.FindKey(func(v string) bool { return v == "sent" })
	assert.True(t, ok)
	assert.Equal(t, "source", k)

	_, ok = c.FindKey(func(v string) bool { return v == "missing" })
	assert.False(t, ok)
}
