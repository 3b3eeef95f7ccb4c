package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// StreamEvents handles GET /events.
// It streams jobs-updated and lan-clients notifications as server-sent
// events until the client disconnects. This is the push channel the UI shell
// subscribes to.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.bus.Subscribe()
	defer h.bus.Unsubscribe(ch)

	// Initial peer snapshot so a fresh subscriber has state to render.
	writeSSEEvent(w, flusher, "lan-clients", map[string]any{"clients": h.tracker.Snapshot()})

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case ev, open := <-ch:
			if !open {
				return
			}
			writeSSEEvent(w, flusher, ev.Name, ev)
		case <-heartbeat.C:
			// Comment frame keeps idle connections alive through proxies.
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// writeSSEEvent serialises data as JSON and writes a single SSE event frame.
func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, name string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)
	flusher.Flush()
}
