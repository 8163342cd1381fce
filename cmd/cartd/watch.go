package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

var (
	watchAddr   string
	watchEvents []string
	watchFor    time.Duration
)

// watchCmd follows a running cartd's cart feed over WebSocket.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream cart events from a running cartd",
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := url.Parse(watchAddr)
		if err != nil {
			return fmt.Errorf("bad address: %w", err)
		}
		u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
		u.Path = "/v1/cart/ws"

		c, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), u.String(), nil)
		if err != nil {
			return fmt.Errorf("dial: %w", err)
		}
		defer func() { _ = c.Close() }()

		var wmu sync.Mutex
		write := func(m wsMessage) error {
			wmu.Lock()
			defer wmu.Unlock()
			return c.WriteJSON(m)
		}

		if err := write(wsMessage{Type: "connection_init"}); err != nil {
			return err
		}
		pl, _ := json.Marshal(map[string]any{"events": watchEvents})
		if err := write(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil {
			return err
		}

		done := make(chan error, 1)
		go func() {
			for {
				var m wsMessage
				if err := c.ReadJSON(&m); err != nil {
					done <- err
					return
				}
				switch m.Type {
				case "ping":
					_ = write(wsMessage{Type: "pong"})
				case "next":
					fmt.Fprintln(cmd.OutOrStdout(), string(m.Payload))
				case "complete":
					done <- nil
					return
				}
			}
		}()

		var timeout <-chan time.Time
		if watchFor > 0 {
			timeout = time.After(watchFor)
		}
		select {
		case err := <-done:
			return err
		case <-timeout:
		case <-cmd.Context().Done():
		}
		_ = write(wsMessage{Type: "complete", ID: "1"})
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchAddr, "addr", "http://localhost:8080", "cartd base URL")
	watchCmd.Flags().StringSliceVar(&watchEvents, "events", nil, "Only these events (cartUpdated, stockChanged)")
	watchCmd.Flags().DurationVar(&watchFor, "for", 0, "Stop after this long (0 = until interrupted)")
}
