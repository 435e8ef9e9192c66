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
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/assess"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

// dialLive connects a websocket client to a hub mounted on a test
// server and consumes the subscription acknowledgement.
func dialLive(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/v1/live", hub.HandleLive())
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/live"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	var ack map[string]string
	require.NoError(t, ws.ReadJSON(&ack))
	require.Equal(t, "subscribed", ack["event"])
	return ws
}

func TestHub_PublishReachesClient(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()
	ws := dialLive(t, hub)

	require.Equal(t, 1, hub.ClientCount())

	hub.Publish(assess.PhaseEvent{
		RunID: "run-ws-1",
		Phase: model.PhaseCollecting,
		At:    time.Now().UTC(),
	})

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev assess.PhaseEvent
	require.NoError(t, ws.ReadJSON(&ev))
	assert.Equal(t, "run-ws-1", ev.RunID)
	assert.Equal(t, model.PhaseCollecting, ev.Phase)
}

func TestHub_FailedPhaseCarriesReason(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()
	ws := dialLive(t, hub)

	hub.Publish(assess.PhaseEvent{
		RunID:  "run-ws-2",
		Phase:  model.PhaseFailed,
		At:     time.Now().UTC(),
		Reason: "collection quorum not met",
	})

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev assess.PhaseEvent
	require.NoError(t, ws.ReadJSON(&ev))
	assert.Equal(t, model.PhaseFailed, ev.Phase)
	assert.Equal(t, "collection quorum not met", ev.Reason)
}

func TestHub_PublishWithoutClients(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	// Must not panic or block.
	hub.Publish(assess.PhaseEvent{RunID: "run-ws-3", Phase: model.PhaseAnalyzing})
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	hub := NewHub(nil)
	ws := dialLive(t, hub)

	hub.Close()

	// The write pump says goodbye with a close frame; subsequent reads
	// fail once the connection is torn down.
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_CloseIsIdempotent(t *testing.T) {
	hub := NewHub(nil)
	hub.Close()
	hub.Close()

	// Registrations after close are rejected; the handler just drops
	// the connection.
	assert.Equal(t, 0, hub.ClientCount())
}
