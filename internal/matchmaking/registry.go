package matchmaking

import (
	"time"

	"github.com/driftline/matchmaker/internal/model"
)

// Registry tracks which participants are online and when each was last heard
// from.
type Registry struct {
	participants map[string]model.Participant
}

func NewRegistry() *Registry {
	return &Registry{participants: make(map[string]model.Participant)}
}

// Touch inserts or refreshes id.
func (r *Registry) Touch(id string, now time.Time) {
	r.participants[id] = model.Participant{ID: id, LastSeenAt: now}
}

// Remove is a no-op when id is absent.
func (r *Registry) Remove(id string) {
	delete(r.participants, id)
}

func (r *Registry) Has(id string) bool {
	_, ok := r.participants[id]
	return ok
}

func (r *Registry) Lookup(id string) (model.Participant, bool) {
	p, ok := r.participants[id]
	return p, ok
}

// Count is informational only and not tied to any matching decision.
func (r *Registry) Count() int {
	return len(r.participants)
}

// Sweep deletes every entry whose age exceeds timeout and returns how many
// were removed.
func (r *Registry) Sweep(now time.Time, timeout time.Duration) int {
	removed := 0
	for id, p := range r.participants {
		if now.Sub(p.LastSeenAt) > timeout {
			delete(r.participants, id)
			removed++
		}
	}
	return removed
}

// OnlineCount applies the display floor: a caller asking is itself online.
func OnlineCount(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
