package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventJoinWaiting     EventType = "join_waiting"
	EventMatchMade       EventType = "match_made"
	EventLeave           EventType = "leave"
	EventWaiterExpired   EventType = "waiter_expired"
	EventRateLimitExceed EventType = "rate_limit_exceeded"
	EventStoreFailure    EventType = "store_failure"
)

type Event struct {
	Type          EventType
	ParticipantID string
	PartnerID     string
	MatchID       string
	IP            string
	UserAgent     string
	Details       map[string]interface{}
}

func Log(ctx context.Context, event Event) {
	logger := log.With().
		Str("audit", "matchmaking").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.ParticipantID != "" {
		logger = logger.With().Str("participant_id", event.ParticipantID).Logger()
	}
	if event.PartnerID != "" {
		logger = logger.With().Str("partner_id", event.PartnerID).Logger()
	}
	if event.MatchID != "" {
		logger = logger.With().Str("match_id", event.MatchID).Logger()
	}
	if event.IP != "" {
		logger = logger.With().Str("ip", event.IP).Logger()
	}
	if event.UserAgent != "" {
		logger = logger.With().Str("user_agent", event.UserAgent).Logger()
	}

	logEvent := logger.WithLevel(level(event.Type))
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("matchmaking event")
}

func level(t EventType) zerolog.Level {
	switch t {
	case EventRateLimitExceed:
		return zerolog.WarnLevel
	case EventStoreFailure:
		return zerolog.ErrorLevel
	case EventJoinWaiting:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	case time.Duration:
		return e.Dur(key, v)
	default:
		return e.Interface(key, v)
	}
}

func LogFromRequest(r *http.Request, event Event) {
	event.IP = getClientIP(r)
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}

func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
