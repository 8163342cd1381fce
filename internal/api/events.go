package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"harvestcart/internal/state"
)

var sseHeartbeat = 15 * time.Second

// CartEventsHandler handles GET /v1/cart/events as a server-sent event stream.
// The current cart is sent first, then every cartUpdated and stockChanged.
func (s *Server) CartEventsHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.Broker.Subscribe(CartTopic)
	defer s.Broker.Unsubscribe(CartTopic, ch)

	clientID := uuid.NewString()
	s.log.Debug().Str("client", clientID).Msg("cart events stream opened")
	defer s.log.Debug().Str("client", clientID).Msg("cart events stream closed")

	writeSSE(w, SSEEvent{Type: string(state.EventCartUpdated), Data: map[string]any{"cart": s.Store.Cart()}})
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			writeSSE(w, evt)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, "event: heartbeat\n")
			fmt.Fprintf(w, "data: {\"client\":\"%s\",\"ts\":\"%s\"}\n\n", clientID, time.Now().UTC().Format(time.RFC3339))
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, evt SSEEvent) {
	b, _ := json.Marshal(evt.Data)
	fmt.Fprintf(w, "event: %s\n", evt.Type)
	fmt.Fprintf(w, "data: %s\n\n", string(b))
}
