// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/assess"
)

const (
	// clientBuffer is the per-client event queue. A client that falls
	// this far behind starts losing events rather than stalling runs.
	clientBuffer = 16

	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub fans phase events out to websocket subscribers.
//
// # Description
//
// Each connected client gets a buffered channel drained by its own
// write pump, so Publish never blocks an assessment run. Register the
// hub on the assessor with Publish as a phase listener.
//
// # Thread Safety
//
// Safe for concurrent use.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan assess.PhaseEvent
	closed  bool
	logger  *slog.Logger
}

// NewHub returns an empty hub ready to accept clients.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*websocket.Conn]chan assess.PhaseEvent),
		logger:  logger,
	}
}

// Publish queues the event for every connected client. It never
// blocks; clients that cannot keep up lose events.
func (h *Hub) Publish(ev assess.PhaseEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ws, ch := range h.clients {
		select {
		case ch <- ev:
		default:
			h.logger.Debug("dropping phase event for slow websocket client",
				"remote", ws.RemoteAddr().String(),
				"run_id", ev.RunID)
		}
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleLive upgrades the request and streams phase events until the
// client disconnects or the hub closes.
func (h *Hub) HandleLive() gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.logger.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()

		ch := h.register(ws)
		if ch == nil {
			return
		}
		defer h.unregister(ws)
		h.logger.Info("live feed client connected", "remote", ws.RemoteAddr().String())

		// Acknowledge before the pump starts so the two writers never
		// interleave.
		if err := ws.WriteJSON(gin.H{"event": "subscribed"}); err != nil {
			return
		}

		go h.writePump(ws, ch)

		// Inbound payloads are discarded; the read loop only detects
		// disconnects.
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				h.logger.Info("live feed client disconnected", "remote", ws.RemoteAddr().String())
				return
			}
		}
	}
}

// Close disconnects every client and rejects future registrations.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	channels := make([]chan assess.PhaseEvent, 0, len(h.clients))
	for ws, ch := range h.clients {
		delete(h.clients, ws)
		channels = append(channels, ch)
	}
	h.mu.Unlock()

	for _, ch := range channels {
		close(ch)
	}
}

func (h *Hub) register(ws *websocket.Conn) chan assess.PhaseEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	ch := make(chan assess.PhaseEvent, clientBuffer)
	h.clients[ws] = ch
	return ch
}

func (h *Hub) unregister(ws *websocket.Conn) {
	h.mu.Lock()
	ch, ok := h.clients[ws]
	if ok {
		delete(h.clients, ws)
	}
	h.mu.Unlock()

	// Publish holds the lock while sending, so nothing can write to ch
	// once it is out of the map.
	if ok {
		close(ch)
	}
}

// writePump drains the client's queue onto the wire.
func (h *Hub) writePump(ws *websocket.Conn, ch chan assess.PhaseEvent) {
	defer ws.Close()

	for ev := range ch {
		ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := ws.WriteJSON(ev); err != nil {
			h.logger.Warn("failed to write phase event to websocket", "error", err)
			return
		}
	}

	// The hub closed the channel; say goodbye properly.
	deadline := time.Now().Add(writeTimeout)
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
}
