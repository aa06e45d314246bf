package matchmaking

import (
	"time"

	"github.com/driftline/matchmaker/internal/model"
)

// Stale reports whether the slot holder has waited longer than timeout.
func Stale(slot model.WaitingSlot, now time.Time, timeout time.Duration) bool {
	return !slot.Empty() && now.Sub(slot.Since) > timeout
}

// Decide runs one join for id against slot and returns the slot that must
// replace it along with the outcome for the caller.
//
// A stale holder is dropped before anything else, so an abandoned waiter is
// never handed out as a partner. A different holder is matched and the slot
// emptied; otherwise the caller takes (or re-stamps) the slot.
func Decide(slot model.WaitingSlot, id string, now time.Time, timeout time.Duration) (model.WaitingSlot, model.MatchOutcome) {
	if Stale(slot, now, timeout) {
		slot = model.WaitingSlot{}
	}

	if !slot.Empty() && slot.ParticipantID != id {
		return model.WaitingSlot{}, model.MatchOutcome{
			Status:    model.MatchStatusMatched,
			PartnerID: slot.ParticipantID,
			Role:      model.RoleInitiator,
		}
	}

	return model.WaitingSlot{ParticipantID: id, Since: now}, model.MatchOutcome{
		Status: model.MatchStatusWaiting,
		Role:   model.RoleReceiver,
	}
}

// Refresh re-stamps the slot when id is its holder, keeping a heartbeating
// waiter from timing out of the queue.
func Refresh(slot model.WaitingSlot, id string, now time.Time) model.WaitingSlot {
	if slot.HeldBy(id) {
		slot.Since = now
	}
	return slot
}

// Release empties the slot when id is its holder.
func Release(slot model.WaitingSlot, id string) model.WaitingSlot {
	if slot.HeldBy(id) {
		return model.WaitingSlot{}
	}
	return slot
}
