package model

type Action string

const (
	ActionStats     Action = "stats"
	ActionHeartbeat Action = "heartbeat"
	ActionJoin      Action = "join"
	ActionLeave     Action = "leave"
)

// RequiresID reports whether the action names a participant.
func (a Action) RequiresID() bool {
	switch a {
	case ActionHeartbeat, ActionJoin, ActionLeave:
		return true
	}
	return false
}

func (a Action) Valid() bool {
	return a == ActionStats || a.RequiresID()
}

type MatchStatus string

const (
	MatchStatusMatched MatchStatus = "matched"
	MatchStatusWaiting MatchStatus = "waiting"
)

// Role tells the external peer-transport layer which side opens the connection.
type Role string

const (
	RoleInitiator Role = "initiator"
	RoleReceiver  Role = "receiver"
)
