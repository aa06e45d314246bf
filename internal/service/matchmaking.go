package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/driftline/matchmaker/internal/audit"
	apperrors "github.com/driftline/matchmaker/internal/errors"
	"github.com/driftline/matchmaker/internal/matchmaking"
	"github.com/driftline/matchmaker/internal/model"
	"github.com/driftline/matchmaker/internal/repository"
	"github.com/driftline/matchmaker/internal/sse"
	"github.com/driftline/matchmaker/internal/util"
)

type StatsResult struct {
	OnlineCount int `json:"onlineCount"`
}

type LeaveResult struct {
	OK bool `json:"ok"`
}

// MatchedEventData is pushed to the receiver when a joiner pairs with it.
type MatchedEventData struct {
	MatchID string     `json:"matchId"`
	Partner string     `json:"partner"`
	Role    model.Role `json:"role"`
}

// Publisher delivers push events to a participant's open streams.
type Publisher interface {
	Publish(ctx context.Context, participantID string, event sse.Event) error
}

type MatchmakingService struct {
	lobby     repository.LobbyRepository
	publisher Publisher
	now       func() time.Time
}

// NewMatchmakingService wires the lobby behind validation, logging and match
// notifications. A nil publisher disables push; a nil clock uses time.Now.
func NewMatchmakingService(
	lobby repository.LobbyRepository,
	publisher Publisher,
	clock func() time.Time,
) *MatchmakingService {
	if clock == nil {
		clock = time.Now
	}
	return &MatchmakingService{
		lobby:     lobby,
		publisher: publisher,
		now:       clock,
	}
}

func (s *MatchmakingService) Backend() string {
	return s.lobby.Backend()
}

func (s *MatchmakingService) Ping(ctx context.Context) error {
	return s.lobby.Ping(ctx)
}

func (s *MatchmakingService) Stats(ctx context.Context) (*StatsResult, error) {
	count, err := s.lobby.Stats(ctx, s.now())
	if err != nil {
		return nil, s.storeError(ctx, "stats", "", err)
	}
	return &StatsResult{OnlineCount: matchmaking.OnlineCount(count)}, nil
}

func (s *MatchmakingService) Heartbeat(ctx context.Context, id string) (*StatsResult, error) {
	if err := ValidateParticipantID(id); err != nil {
		return nil, err
	}

	count, err := s.lobby.Heartbeat(ctx, id, s.now())
	if err != nil {
		return nil, s.storeError(ctx, "heartbeat", id, err)
	}
	return &StatsResult{OnlineCount: count}, nil
}

func (s *MatchmakingService) Join(ctx context.Context, id string) (model.MatchOutcome, error) {
	if err := ValidateParticipantID(id); err != nil {
		return model.MatchOutcome{}, err
	}

	outcome, err := s.lobby.Join(ctx, id, s.now())
	if err != nil {
		return model.MatchOutcome{}, s.storeError(ctx, "join", id, err)
	}

	if !outcome.Matched() {
		audit.Log(ctx, audit.Event{Type: audit.EventJoinWaiting, ParticipantID: id})
		return outcome, nil
	}

	matchID := uuid.NewString()
	audit.Log(ctx, audit.Event{
		Type:          audit.EventMatchMade,
		ParticipantID: id,
		PartnerID:     outcome.PartnerID,
		MatchID:       matchID,
		Details:       map[string]interface{}{"backend": s.lobby.Backend()},
	})
	s.notifyMatched(ctx, matchID, outcome.PartnerID, id)

	return outcome, nil
}

func (s *MatchmakingService) Leave(ctx context.Context, id string) (*LeaveResult, error) {
	if err := ValidateParticipantID(id); err != nil {
		return nil, err
	}

	if err := s.lobby.Leave(ctx, id, s.now()); err != nil {
		return nil, s.storeError(ctx, "leave", id, err)
	}

	audit.Log(ctx, audit.Event{Type: audit.EventLeave, ParticipantID: id})
	return &LeaveResult{OK: true}, nil
}

// Sweep runs one liveness pass outside of any request. Evictions are logged
// by LogSweep through the lobby's sweep hook.
func (s *MatchmakingService) Sweep(ctx context.Context) (model.SweepResult, error) {
	result, err := s.lobby.Sweep(ctx, s.now())
	if err != nil {
		return model.SweepResult{}, s.storeError(ctx, "sweep", "", err)
	}
	return result, nil
}

// LogSweep records what one lobby sweep evicted. Install it with
// repository.WithSweepHook so the sweeps that open every call are logged too.
func LogSweep(result model.SweepResult) {
	if result.ExpiredWaiter != "" {
		audit.Log(context.Background(), audit.Event{
			Type:          audit.EventWaiterExpired,
			ParticipantID: result.ExpiredWaiter,
			Details:       map[string]interface{}{"expiredParticipants": result.ExpiredParticipants},
		})
		return
	}
	if result.ExpiredParticipants > 0 {
		log.Debug().
			Int64("expiredParticipants", result.ExpiredParticipants).
			Msg("expired idle participants")
	}
}

// notifyMatched is best-effort: the receiver still learns of the match from
// the incoming peer connection.
func (s *MatchmakingService) notifyMatched(ctx context.Context, matchID, receiverID, initiatorID string) {
	if s.publisher == nil {
		return
	}

	data, err := json.Marshal(MatchedEventData{
		MatchID: matchID,
		Partner: initiatorID,
		Role:    model.RoleReceiver,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to encode matched event")
		return
	}

	if err := s.publisher.Publish(ctx, receiverID, sse.Event{Type: sse.EventMatched, Data: data}); err != nil {
		log.Warn().
			Err(err).
			Str("matchId", matchID).
			Str("participantId", receiverID).
			Msg("failed to publish matched event")
	}
}

func (s *MatchmakingService) storeError(ctx context.Context, op, id string, err error) error {
	audit.Log(ctx, audit.Event{
		Type:          audit.EventStoreFailure,
		ParticipantID: id,
		Details: map[string]interface{}{
			"op":      op,
			"backend": s.lobby.Backend(),
			"error":   err.Error(),
		},
	})
	return apperrors.StoreUnavailable(err)
}

// ValidateParticipantID returns a client error for a missing or malformed id.
func ValidateParticipantID(id string) error {
	if id == "" {
		return apperrors.MissingRequired("id")
	}
	if !util.IsValidParticipantID(id) {
		return apperrors.InvalidInput("id", "must be 1-128 printable characters without spaces")
	}
	return nil
}
