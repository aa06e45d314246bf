package matchmaking

import (
	"time"

	"github.com/driftline/matchmaker/internal/model"
)

// Timeouts bounds how long a participant may stay silent. Waiting must not
// exceed Presence, otherwise a waiter could outlive its registry entry.
type Timeouts struct {
	Presence time.Duration
	Waiting  time.Duration
}

// Sweep expires stale registry entries, then evicts the waiting slot if its
// holder is stale or no longer registered. It returns the slot to keep.
func Sweep(reg *Registry, slot model.WaitingSlot, now time.Time, t Timeouts) (model.WaitingSlot, model.SweepResult) {
	var result model.SweepResult
	result.ExpiredParticipants = int64(reg.Sweep(now, t.Presence))

	if slot.Empty() {
		return slot, result
	}
	if Stale(slot, now, t.Waiting) || !reg.Has(slot.ParticipantID) {
		result.ExpiredWaiter = slot.ParticipantID
		return model.WaitingSlot{}, result
	}
	return slot, result
}
