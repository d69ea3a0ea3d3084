package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ============================================================================
// State WebSocket: hub + per-client pumps + snapshot publisher
// ============================================================================
//
// This file implements:
//   - A Hub that tracks connected WebSocket clients
//   - Per-client write pumps so one slow client doesn't block others
//   - A publisher the deck loop calls after each event; identical snapshots
//     are coalesced, changed ones are fanned out
//
// Design constraints (project architecture):
//   - DeckState stays loop-owned; never expose *DeckState to other
//     goroutines. Snapshots are copied out on the loop goroutine.
//   - Slow clients are disconnected when their send buffer fills.
//   - Messages are JSON text frames with an envelope: {type, ts, data}.
//   - The first message every client receives is "state_init" with the
//     latest snapshot.
// ============================================================================

// KeySnapshot is the externally visible state of one bound key.
type KeySnapshot struct {
	Key        uint8  `json:"key"`
	Path       string `json:"path"`
	FileExists bool   `json:"file_exists"`
	Recording  bool   `json:"recording"`
	Held       bool   `json:"held"`
}

// StateSnapshot is the JSON `data` payload for deck state messages.
type StateSnapshot struct {
	ActiveKey *uint8        `json:"active_key,omitempty"`
	Keys      []KeySnapshot `json:"keys"`
}

// snapshotDeck copies the loop-owned state into an externally safe value.
// Must be called on the loop goroutine.
func snapshotDeck(s *DeckState) StateSnapshot {
	snap := StateSnapshot{
		Keys: make([]KeySnapshot, 0, len(s.Keys)),
	}
	if s.HasActive() {
		k := uint8(s.ActiveKey)
		snap.ActiveKey = &k
	}
	for k := 0; k < 256; k++ {
		key := uint8(k)
		ks, ok := s.Keys[key]
		if !ok {
			continue
		}
		snap.Keys = append(snap.Keys, KeySnapshot{
			Key:        key,
			Path:       ks.Path,
			FileExists: ks.FileExists,
			Recording:  s.IsActive(key),
			Held:       !ks.HeldSince.IsZero(),
		})
	}
	return snap
}

// envelope is the wire format envelope for WS messages.
type envelope struct {
	Type string      `json:"type"`
	Ts   *time.Time  `json:"ts,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

// ============================================================================
// Hub
// ============================================================================

type Hub struct {
	logger *slog.Logger

	// Buffered broadcast channel for already-serialized JSON frames.
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient

	mu      sync.Mutex
	clients map[*wsClient]struct{}

	// lastInit is the serialized state_init frame sent to new clients.
	lastInit []byte

	sendBuf int
}

// NewHub constructs a hub. Call Run(ctx) to start it.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, 128),
		register:   make(chan *wsClient, 64),
		unregister: make(chan *wsClient, 64),
		clients:    make(map[*wsClient]struct{}),
		sendBuf:    32,
	}
}

// Run processes hub events until ctx is canceled.
// It disconnects all clients on shutdown.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("ws hub starting")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("ws hub stopping (context canceled)")
			h.closeAllClients()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			init := h.lastInit
			h.mu.Unlock()
			if init != nil {
				select {
				case c.send <- init:
				default:
				}
			}
			h.logger.Info("ws client registered", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.removeClient(c, "unregister")

		case msg := <-h.broadcast:
			// Avoid mutating the clients map while ranging over it.
			// Collect slow clients first, then remove them after we unlock.
			var slow []*wsClient

			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()

			for _, c := range slow {
				h.removeClient(c, "slow_client")
			}
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		safeCloseChan(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) removeClient(c *wsClient, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		// Closing send signals writePump to exit.
		safeCloseChan(c.send)

		h.logger.Info("ws client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
	}
}

func safeCloseChan(ch chan []byte) {
	defer func() {
		_ = recover() // ignore "close of closed channel"
	}()
	close(ch)
}

// BroadcastBytes enqueues a pre-serialized JSON WS frame for broadcast.
// It never blocks; if the hub queue is full it drops the message.
func (h *Hub) BroadcastBytes(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ws hub broadcast queue full, dropping message", "bytes", len(msg))
	}
}

// Publisher returns the per-event callback the deck loop invokes.
// Snapshots identical to the previously published one are dropped; the
// comparison happens against the serialized frame, so the loop pays one
// marshal per event and nothing else.
func (h *Hub) Publisher() func(*DeckState) {
	var last []byte
	return func(s *DeckState) {
		snap := snapshotDeck(s)
		data, err := json.Marshal(snap)
		if err != nil {
			h.logger.Warn("marshal state snapshot failed", "error", err)
			return
		}
		if bytes.Equal(data, last) {
			return
		}
		last = data

		now := time.Now()
		frame, err := json.Marshal(envelope{Type: "deck_state", Ts: &now, Data: json.RawMessage(data)})
		if err != nil {
			h.logger.Warn("marshal state frame failed", "error", err)
			return
		}

		initFrame, err := json.Marshal(envelope{Type: "state_init", Ts: &now, Data: json.RawMessage(data)})
		if err == nil {
			h.mu.Lock()
			h.lastInit = initFrame
			h.mu.Unlock()
		}

		h.BroadcastBytes(frame)
	}
}

// ============================================================================
// Client
// ============================================================================

type wsClient struct {
	hub *Hub

	conn *websocket.Conn
	send chan []byte

	remoteAddr string
	logger     *slog.Logger
}

// newWSClient creates a client with a buffered send channel.
func newWSClient(hub *Hub, conn *websocket.Conn, remoteAddr string, logger *slog.Logger) *wsClient {
	sendBuf := 32
	if hub != nil && hub.sendBuf > 0 {
		sendBuf = hub.sendBuf
	}
	return &wsClient{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBuf),
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// closeStatus extracts a human-readable websocket close code / text when possible.
func closeStatus(err error) (code int, text string, ok bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}

// writePump writes messages from the send queue to the websocket.
// It exits on write error or when send is closed.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed: hub is disconnecting us.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					if code, text, ok := closeStatus(err); ok {
						c.logger.Info("ws writePump exiting (close)", "remote_addr", c.remoteAddr, "code", code, "reason", text)
					} else {
						c.logger.Info("ws writePump exiting (write error)", "remote_addr", c.remoteAddr, "error", err)
					}
				}
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					c.logger.Info("ws writePump exiting (ping error)", "remote_addr", c.remoteAddr, "error", err)
				}
				return
			}
		}
	}
}

// readPump reads and discards incoming messages to detect disconnects and
// handle control frames. It exits on read error, then unregisters the client.
func (c *wsClient) readPump() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			// Normal close is expected on client disconnect.
			if !errors.Is(err, websocket.ErrCloseSent) {
				if code, text, ok := closeStatus(err); ok {
					c.logger.Info("ws readPump exiting (close)", "remote_addr", c.remoteAddr, "code", code, "reason", text)
				} else {
					c.logger.Info("ws readPump exiting (read error)", "remote_addr", c.remoteAddr, "error", err)
				}
			}

			if c.hub != nil {
				c.hub.unregister <- c
			}
			return
		}
	}
}

// ============================================================================
// HTTP handler + server wiring
// ============================================================================

var upgrader = websocket.Upgrader{
	// NOTE: If you need stricter origin checks, implement them at integration time.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStateWS upgrades and registers a client.
func (h *Hub) handleStateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := newWSClient(h, conn, r.RemoteAddr, h.logger)

	// Register first so broadcasts (and the state_init frame) reach it.
	h.register <- client

	// IMPORTANT:
	// Do not tie the pumps to the HTTP request context. net/http cancels it
	// when the handler returns, which would prematurely stop the pumps. The
	// connection lifetime is managed by the hub and by read/write errors.
	go client.writePump()
	go client.readPump()
}

// runStateWSServer serves the state WebSocket endpoint until ctx is canceled.
func runStateWSServer(ctx context.Context, port int, hub *Hub, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/state", hub.handleStateWS)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("state ws listening", "port", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
