package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/driftline/matchmaker/internal/config"
	apperrors "github.com/driftline/matchmaker/internal/errors"
	"github.com/driftline/matchmaker/internal/httputil"
	"github.com/driftline/matchmaker/internal/model"
	"github.com/driftline/matchmaker/internal/service"
	"github.com/driftline/matchmaker/internal/sse"
)

type SignalingHandler struct {
	matchmaking *service.MatchmakingService
	broker      *sse.Broker
}

func NewSignalingHandler(matchmaking *service.MatchmakingService, broker *sse.Broker) *SignalingHandler {
	return &SignalingHandler{
		matchmaking: matchmaking,
		broker:      broker,
	}
}

func (h *SignalingHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, apperrors.MethodNotAllowed())
	})

	// streams stay open past the request timeout
	r.With(chimiddleware.Timeout(config.ServerRequestTimeout)).Post("/", h.Signal)
	r.Get("/events", h.Events)

	return r
}

type signalRequest struct {
	ID     string       `json:"id"`
	PeerID string       `json:"peerId"`
	Action model.Action `json:"action"`
}

func (req signalRequest) participantID() string {
	if req.ID != "" {
		return req.ID
	}
	return req.PeerID
}

// Signal dispatches one client action against the lobby.
func (h *SignalingHandler) Signal(w http.ResponseWriter, r *http.Request) {
	var req signalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			httputil.WriteError(w, apperrors.BodyTooLarge())
			return
		}
		httputil.WriteError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}

	if !req.Action.Valid() {
		httputil.WriteError(w, apperrors.InvalidAction(string(req.Action)))
		return
	}

	ctx := r.Context()
	id := req.participantID()

	switch req.Action {
	case model.ActionStats:
		result, err := h.matchmaking.Stats(ctx)
		if err != nil {
			h.writeError(w, req.Action, id, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, result)

	case model.ActionHeartbeat:
		result, err := h.matchmaking.Heartbeat(ctx, id)
		if err != nil {
			h.writeError(w, req.Action, id, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, result)

	case model.ActionJoin:
		outcome, err := h.matchmaking.Join(ctx, id)
		if err != nil {
			h.writeError(w, req.Action, id, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, outcome)

	case model.ActionLeave:
		result, err := h.matchmaking.Leave(ctx, id)
		if err != nil {
			h.writeError(w, req.Action, id, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, result)
	}
}

func (h *SignalingHandler) writeError(w http.ResponseWriter, action model.Action, id string, err error) {
	if !apperrors.IsAppError(err) {
		log.Error().
			Err(err).
			Str("action", string(action)).
			Str("participantId", id).
			Msg("signaling request failed")
	}
	httputil.WriteError(w, err)
}
