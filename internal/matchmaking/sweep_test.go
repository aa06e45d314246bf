package matchmaking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/driftline/matchmaker/internal/model"
)

func TestSweep(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	timeouts := Timeouts{Presence: 30 * time.Second, Waiting: 30 * time.Second}

	t.Run("expires stale participants and keeps live waiter", func(t *testing.T) {
		reg := NewRegistry()
		reg.Touch("gone", base)
		reg.Touch("u1", base.Add(20*time.Second))
		slot := model.WaitingSlot{ParticipantID: "u1", Since: base.Add(20 * time.Second)}

		next, result := Sweep(reg, slot, base.Add(40*time.Second), timeouts)

		assert.Equal(t, int64(1), result.ExpiredParticipants)
		assert.Empty(t, result.ExpiredWaiter)
		assert.Equal(t, slot, next)
	})

	t.Run("evicts a waiter that stopped refreshing", func(t *testing.T) {
		reg := NewRegistry()
		reg.Touch("u1", base.Add(20*time.Second))
		slot := model.WaitingSlot{ParticipantID: "u1", Since: base}

		next, result := Sweep(reg, slot, base.Add(31*time.Second), timeouts)

		assert.True(t, next.Empty())
		assert.Equal(t, "u1", result.ExpiredWaiter)
		assert.True(t, reg.Has("u1"))
	})

	t.Run("evicts a waiter missing from the registry", func(t *testing.T) {
		reg := NewRegistry()
		slot := model.WaitingSlot{ParticipantID: "orphan", Since: base}

		next, result := Sweep(reg, slot, base.Add(time.Second), timeouts)

		assert.True(t, next.Empty())
		assert.Equal(t, "orphan", result.ExpiredWaiter)
	})

	t.Run("shorter waiting timeout applies to the slot only", func(t *testing.T) {
		reg := NewRegistry()
		reg.Touch("u1", base)
		slot := model.WaitingSlot{ParticipantID: "u1", Since: base}

		next, result := Sweep(reg, slot, base.Add(15*time.Second), Timeouts{
			Presence: 30 * time.Second,
			Waiting:  10 * time.Second,
		})

		assert.True(t, next.Empty())
		assert.Equal(t, "u1", result.ExpiredWaiter)
		assert.Equal(t, int64(0), result.ExpiredParticipants)
	})

	t.Run("empty everything is a no-op", func(t *testing.T) {
		next, result := Sweep(NewRegistry(), model.WaitingSlot{}, base, timeouts)

		assert.True(t, next.Empty())
		assert.True(t, result.Empty())
	})
}
