// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/autobrr/quilist/internal/torrentlist"
)

type nopExecutor struct{}

func (nopExecutor) Resume(torrentlist.TorrentID)       {}
func (nopExecutor) Pause(torrentlist.TorrentID)        {}
func (nopExecutor) Rehash(torrentlist.TorrentID)       {}
func (nopExecutor) Remove(torrentlist.TorrentID, bool) {}

type stateMessage struct {
	Type string            `json:"type"`
	Data torrentlist.State `json:"data"`
}

func startHub(t *testing.T, interval time.Duration) (*torrentlist.List, *Hub, *httptest.Server) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	list := torrentlist.New(nopExecutor{})
	hub := NewHub(list, interval)

	listDone := make(chan struct{})
	hubDone := make(chan struct{})
	go func() {
		defer close(listDone)
		_ = list.Run(ctx)
	}()
	go func() {
		defer close(hubDone)
		_ = hub.Run(ctx)
	}()

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		cancel()
		<-hubDone
		<-listDone
		srv.Close()
	})

	return list, hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readState(t *testing.T, conn *websocket.Conn) torrentlist.State {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg stateMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	require.Equal(t, "state", msg.Type)
	return msg.Data
}

func records(n int) map[torrentlist.TorrentID]torrentlist.Record {
	out := make(map[torrentlist.TorrentID]torrentlist.Record, n)
	for i := range n {
		id := torrentlist.TorrentID(fmt.Sprintf("hash-%02d", i))
		out[id] = torrentlist.Record{ID: id, Name: fmt.Sprintf("torrent %02d", i), AddedDate: time.Unix(int64(i), 0)}
	}
	return out
}

func TestHubSendsCurrentStateOnConnect(t *testing.T) {
	_, _, srv := startHub(t, 0)
	conn := dial(t, srv)

	state := readState(t, conn)
	assert.Equal(t, 0, state.Total)
	require.Len(t, state.Sections, 1)
	assert.Empty(t, state.Sections[0].Records)
}

func TestHubBroadcastsUpdates(t *testing.T) {
	list, _, srv := startHub(t, 0)
	first := dial(t, srv)
	second := dial(t, srv)
	readState(t, first)
	readState(t, second)

	list.UpdateRecords(records(3))

	for _, conn := range []*websocket.Conn{first, second} {
		state := readState(t, conn)
		assert.Equal(t, 3, state.Total)
		assert.Equal(t, 3, state.Visible)
	}
}

func TestHubThrottlesToLatestState(t *testing.T) {
	list, _, srv := startHub(t, 100*time.Millisecond)
	conn := dial(t, srv)
	readState(t, conn)

	for i := 1; i <= 10; i++ {
		list.UpdateRecords(records(i))
	}

	received := 0
	var last torrentlist.State
	for last.Total != 10 {
		last = readState(t, conn)
		received++
	}

	assert.Less(t, received, 10)
	assert.Equal(t, 10, last.Visible)
}

func TestSetInterval(t *testing.T) {
	hub := NewHub(torrentlist.New(nopExecutor{}), time.Second)
	assert.Equal(t, rate.Every(time.Second), hub.limiter.Limit())

	hub.SetInterval(0)
	assert.Equal(t, rate.Inf, hub.limiter.Limit())

	hub.SetInterval(250 * time.Millisecond)
	assert.Equal(t, rate.Every(250*time.Millisecond), hub.limiter.Limit())
}
