package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/driftline/matchmaker/internal/errors"
	"github.com/driftline/matchmaker/internal/httputil"
	"github.com/driftline/matchmaker/internal/service"
	"github.com/driftline/matchmaker/internal/sse"
)

// Events streams match notifications for the participant named by ?id=.
// An open stream does not count as presence; clients keep heartbeating.
func (h *SignalingHandler) Events(w http.ResponseWriter, r *http.Request) {
	participantID := r.URL.Query().Get("id")
	if err := service.ValidateParticipantID(participantID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, apperrors.Internal("Streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(participantID)
	defer h.broker.Unsubscribe(client)

	log.Info().
		Str("participantId", participantID).
		Msg("sse connection established")

	if err := sendEvent(w, flusher, sse.EventConnected, map[string]any{
		"participantId": participantID,
		"timestamp":     time.Now().UnixMilli(),
	}); err != nil {
		log.Debug().Err(err).Str("participantId", participantID).Msg("failed to send connected event")
		return
	}

	ctx := r.Context()
	heartbeat := time.NewTicker(sse.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().
				Str("participantId", participantID).
				Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().
				Str("participantId", participantID).
				Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().
					Str("participantId", participantID).
					Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return sendRawEvent(w, flusher, sse.Event{Type: eventType, Data: jsonData})
}

func sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
