package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const eventHeartbeat = 25 * time.Second

// handleEvents streams workspace changes as server-sent events until the
// client goes away.
func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request, workspaceID string) {
	flusher, ok := w.(http.Flusher)
	if !ok || s.service.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "EVENTS_UNAVAILABLE", "Event stream not available", nil)
		return
	}
	events, err := s.service.hub.Subscribe(r.Context(), workspaceID)
	if err != nil {
		s.logger.Error().Err(err).Str("workspace_id", workspaceID).Msg("subscribe workspace events")
		writeError(w, http.StatusServiceUnavailable, "EVENTS_UNAVAILABLE", "Event stream not available", nil)
		return
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(eventHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
