package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const pingInterval = 30 * time.Second

// handleEvents streams round events as Server-Sent Events. The stream ends
// after the round completes or is abandoned.
func handleEvents(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		s := sessionFrom(r)
		ch := broker.Subscribe(s.id)
		defer broker.Unsubscribe(s.id, ch)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		// The current state goes first so late subscribers need no extra fetch.
		snap, _ := json.Marshal(roundResponse(s.id, s.round))
		fmt.Fprintf(w, "event: state\ndata: %s\n\n", snap)
		flusher.Flush()
		if s.round.Snapshot().State.Terminal() {
			return
		}

		ping := time.NewTicker(pingInterval)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case msg := <-ch:
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Type, msg.Data)
				flusher.Flush()
				if msg.Terminal {
					return
				}
			case <-ping.C:
				fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}
