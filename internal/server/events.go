package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// handleEvents streams stage outcomes as server-sent events until the
// client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ch := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case out := <-ch:
			data, err := json.Marshal(newOutcomeResponse(out))
			if err != nil {
				s.logger.Warn("failed to encode event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: outcome\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
