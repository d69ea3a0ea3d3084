package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// deck-state connects to the deckrecorder state WebSocket and prints deck
// snapshots as they arrive. Useful for debugging gestures and for driving
// external displays.

// keySnapshot mirrors the daemon's per-key wire payload.
type keySnapshot struct {
	Key        uint8  `json:"key"`
	Path       string `json:"path"`
	FileExists bool   `json:"file_exists"`
	Recording  bool   `json:"recording"`
	Held       bool   `json:"held"`
}

type stateSnapshot struct {
	ActiveKey *uint8        `json:"active_key,omitempty"`
	Keys      []keySnapshot `json:"keys"`
}

type envelope struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:8800/state", "deckrecorder state WebSocket URL")
		raw   = flag.Bool("raw", false, "Print raw JSON frames instead of decoded changes")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	// Handle shutdown
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	// Keepalive: answer the server's pings via the default handler and keep
	// the read deadline moving.
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	var last *stateSnapshot

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}

			if *raw {
				fmt.Printf("%s\n", message)
				continue
			}

			var env envelope
			if err := json.Unmarshal(message, &env); err != nil {
				fmt.Printf("[TEXT] %s\n", message)
				continue
			}
			switch env.Type {
			case "state_init", "deck_state":
				var snap stateSnapshot
				if err := json.Unmarshal(env.Data, &snap); err != nil {
					log.Printf("bad %s payload: %v", env.Type, err)
					continue
				}
				printChanges(env.Type, last, &snap)
				last = &snap
			default:
				pretty, _ := json.MarshalIndent(env, "", "  ")
				fmt.Printf("[%s]\n%s\n", env.Type, pretty)
			}
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

// printChanges diffs two snapshots and prints what moved. The first snapshot
// prints every key.
func printChanges(frameType string, prev, next *stateSnapshot) {
	if prev == nil {
		fmt.Printf("[%s] %d keys\n", frameType, len(next.Keys))
		for _, k := range next.Keys {
			fmt.Printf("  key %d: %s\n", k.Key, describeKey(k))
		}
		if next.ActiveKey != nil {
			fmt.Printf("  recording on key %d\n", *next.ActiveKey)
		}
		return
	}

	prevKeys := make(map[uint8]keySnapshot, len(prev.Keys))
	for _, k := range prev.Keys {
		prevKeys[k.Key] = k
	}
	for _, k := range next.Keys {
		if pk, ok := prevKeys[k.Key]; !ok || pk != k {
			fmt.Printf("[KEY %d] %s\n", k.Key, describeKey(k))
		}
	}

	switch {
	case next.ActiveKey != nil && (prev.ActiveKey == nil || *prev.ActiveKey != *next.ActiveKey):
		fmt.Printf("[RECORDING] started on key %d\n", *next.ActiveKey)
	case next.ActiveKey == nil && prev.ActiveKey != nil:
		fmt.Printf("[RECORDING] stopped on key %d\n", *prev.ActiveKey)
	}
}

func describeKey(k keySnapshot) string {
	switch {
	case k.Recording:
		return "recording -> " + k.Path
	case k.Held:
		return "held (long release deletes)"
	case k.FileExists:
		return "has recording " + k.Path
	default:
		return "empty"
	}
}
