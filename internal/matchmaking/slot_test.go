package matchmaking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/driftline/matchmaker/internal/model"
)

const testTimeout = 30 * time.Second

func TestDecide(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("empty slot puts caller in waiting", func(t *testing.T) {
		slot, out := Decide(model.WaitingSlot{}, "u1", base, testTimeout)

		assert.Equal(t, model.WaitingSlot{ParticipantID: "u1", Since: base}, slot)
		assert.Equal(t, model.MatchStatusWaiting, out.Status)
		assert.Equal(t, model.RoleReceiver, out.Role)
		assert.Empty(t, out.PartnerID)
	})

	t.Run("different holder is matched and slot emptied", func(t *testing.T) {
		held := model.WaitingSlot{ParticipantID: "u1", Since: base}

		slot, out := Decide(held, "u2", base.Add(2*time.Second), testTimeout)

		assert.True(t, slot.Empty())
		assert.Equal(t, model.MatchStatusMatched, out.Status)
		assert.Equal(t, "u1", out.PartnerID)
		assert.Equal(t, model.RoleInitiator, out.Role)
	})

	t.Run("caller never matches itself and is re-stamped", func(t *testing.T) {
		held := model.WaitingSlot{ParticipantID: "u1", Since: base}
		later := base.Add(2 * time.Second)

		slot, out := Decide(held, "u1", later, testTimeout)

		assert.Equal(t, model.MatchStatusWaiting, out.Status)
		assert.NotEqual(t, "u1", out.PartnerID)
		assert.Equal(t, later, slot.Since)
		assert.True(t, slot.HeldBy("u1"))
	})

	t.Run("stale holder is dropped before matching", func(t *testing.T) {
		held := model.WaitingSlot{ParticipantID: "ghost", Since: base}

		slot, out := Decide(held, "u2", base.Add(testTimeout+time.Second), testTimeout)

		assert.Equal(t, model.MatchStatusWaiting, out.Status)
		assert.True(t, slot.HeldBy("u2"))
	})

	t.Run("holder at exactly the timeout is still matchable", func(t *testing.T) {
		held := model.WaitingSlot{ParticipantID: "u1", Since: base}

		_, out := Decide(held, "u2", base.Add(testTimeout), testTimeout)

		assert.True(t, out.Matched())
	})
}

func TestRefresh(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	held := model.WaitingSlot{ParticipantID: "u1", Since: base}

	t.Run("holder is re-stamped", func(t *testing.T) {
		slot := Refresh(held, "u1", base.Add(time.Minute))
		assert.Equal(t, base.Add(time.Minute), slot.Since)
	})

	t.Run("non-holder leaves slot untouched", func(t *testing.T) {
		slot := Refresh(held, "u2", base.Add(time.Minute))
		assert.Equal(t, held, slot)
	})

	t.Run("empty slot stays empty", func(t *testing.T) {
		slot := Refresh(model.WaitingSlot{}, "u1", base)
		assert.True(t, slot.Empty())
	})
}

func TestRelease(t *testing.T) {
	held := model.WaitingSlot{ParticipantID: "u1", Since: time.Now()}

	assert.True(t, Release(held, "u1").Empty())
	assert.Equal(t, held, Release(held, "u2"))
	assert.True(t, Release(model.WaitingSlot{}, "u1").Empty())
}
