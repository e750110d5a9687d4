package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	ssePollInterval = time.Second
	sseSeenMax      = 5000
	sseSeenKeep     = 2000
)

// handleEventStream serves the live event feed over server-sent
// events. The stream polls the bus log and pushes each event once; the
// connection closes when the client goes away.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	seen := make(map[string]struct{})
	order := make([]string, 0, sseSeenMax)

	ticker := time.NewTicker(ssePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			for _, ev := range s.orch.Bus().Recent(0) {
				if _, dup := seen[ev.EventID]; dup {
					continue
				}
				seen[ev.EventID] = struct{}{}
				order = append(order, ev.EventID)

				payload, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "data: %s\n\n", payload)
			}
			flusher.Flush()

			// Keep the dedup set bounded on long-lived connections.
			if len(order) > sseSeenMax {
				drop := order[:len(order)-sseSeenKeep]
				for _, id := range drop {
					delete(seen, id)
				}
				order = append(order[:0], order[len(order)-sseSeenKeep:]...)
			}
		}
	}
}
