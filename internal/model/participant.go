package model

import "time"

// Participant is one client session attempting to find a partner.
type Participant struct {
	ID         string    `db:"id" json:"id"`
	LastSeenAt time.Time `db:"last_seen_at" json:"lastSeenAt"`
}

// WaitingSlot holds the single not-yet-matched participant. The zero value is
// an empty slot.
type WaitingSlot struct {
	ParticipantID string    `db:"participant_id" json:"participantId"`
	Since         time.Time `db:"since" json:"since"`
}

func (s WaitingSlot) Empty() bool {
	return s.ParticipantID == ""
}

func (s WaitingSlot) HeldBy(id string) bool {
	return !s.Empty() && s.ParticipantID == id
}

// MatchOutcome is the result of one join decision. It is never stored.
type MatchOutcome struct {
	Status    MatchStatus `json:"status"`
	PartnerID string      `json:"partner,omitempty"`
	Role      Role        `json:"role"`
}

func (o MatchOutcome) Matched() bool {
	return o.Status == MatchStatusMatched
}

// SweepResult reports what one liveness pass evicted.
type SweepResult struct {
	ExpiredParticipants int64
	ExpiredWaiter       string
}

func (r SweepResult) Empty() bool {
	return r.ExpiredParticipants == 0 && r.ExpiredWaiter == ""
}
