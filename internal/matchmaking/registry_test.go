package matchmaking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Touch inserts and refreshes", func(t *testing.T) {
		reg := NewRegistry()

		reg.Touch("u1", base)
		reg.Touch("u1", base.Add(5*time.Second))

		p, ok := reg.Lookup("u1")
		assert.True(t, ok)
		assert.Equal(t, "u1", p.ID)
		assert.Equal(t, base.Add(5*time.Second), p.LastSeenAt)
		assert.Equal(t, 1, reg.Count())
	})

	t.Run("Remove is idempotent", func(t *testing.T) {
		reg := NewRegistry()
		reg.Touch("u1", base)

		reg.Remove("u1")
		reg.Remove("u1")
		reg.Remove("never-seen")

		assert.False(t, reg.Has("u1"))
		_, ok := reg.Lookup("u1")
		assert.False(t, ok)
		assert.Equal(t, 0, reg.Count())
	})

	t.Run("Sweep removes only entries older than timeout", func(t *testing.T) {
		reg := NewRegistry()
		reg.Touch("old", base)
		reg.Touch("edge", base.Add(10*time.Second))
		reg.Touch("fresh", base.Add(25*time.Second))

		removed := reg.Sweep(base.Add(40*time.Second), 30*time.Second)

		assert.Equal(t, 1, removed)
		assert.False(t, reg.Has("old"))
		// age of exactly the timeout is still alive
		assert.True(t, reg.Has("edge"))
		assert.True(t, reg.Has("fresh"))
	})
}

func TestOnlineCount(t *testing.T) {
	assert.Equal(t, 1, OnlineCount(0))
	assert.Equal(t, 1, OnlineCount(-3))
	assert.Equal(t, 1, OnlineCount(1))
	assert.Equal(t, 42, OnlineCount(42))
}
