// Copyright (C) 2026 ReDewable Energy (engineering@redewable.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package push maintains the realtime change feed from the backing store.
// Events are pure invalidation hints: they say a table changed, never what
// changed. Consumers respond by scheduling a full reconcile; the feed is
// best-effort and the periodic poll covers any gap.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Tables whose changes are relevant to the viewer.
var watchedTables = map[string]bool{
	"dataroom_documents": true,
	"dataroom_notes":     true,
	"dataroom_settings":  true,
}

// Event is one change notification. Table is the backing-store table that
// changed.
type Event struct {
	Table string `json:"table"`
}

// Handler receives change notifications. Called from the read goroutine;
// implementations must not block for long.
type Handler func(Event)

// subscribeMsg is the join frame sent after connecting.
type subscribeMsg struct {
	Action string   `json:"action"`
	Tables []string `json:"tables"`
	APIKey string   `json:"apikey"`
}

// Subscriber manages one realtime connection. Safe for concurrent use.
type Subscriber struct {
	wsURL  string
	apiKey string
	logger *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	active bool
}

// NewSubscriber derives the realtime endpoint from the backing store's
// base URL.
func NewSubscriber(baseURL, apiKey string, logger *slog.Logger) (*Subscriber, error) {
	if logger == nil {
		logger = slog.Default()
	}
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse backend URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return nil, fmt.Errorf("unsupported backend URL scheme %q", u.Scheme)
	}
	u.Path = "/realtime/v1/websocket"

	return &Subscriber{
		wsURL:  u.String(),
		apiKey: apiKey,
		logger: logger,
	}, nil
}

// Subscribe connects and starts delivering events to onEvent. A no-op when
// a connection is already active; connection establishment is idempotent
// across reconcile passes. The connection is not retried here: a dead feed
// is re-established by the next pass that finds Active false.
func (s *Subscriber) Subscribe(ctx context.Context, onEvent Handler) error {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return nil
	}

	header := http.Header{"apikey": {s.apiKey}}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, s.wsURL, header)
	if err != nil {
		s.mu.Unlock()
		if resp != nil {
			return fmt.Errorf("dial realtime (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dial realtime: %w", err)
	}

	tables := make([]string, 0, len(watchedTables))
	for t := range watchedTables {
		tables = append(tables, t)
	}
	join := subscribeMsg{Action: "subscribe", Tables: tables, APIKey: s.apiKey}
	if err := conn.WriteJSON(join); err != nil {
		_ = conn.Close()
		s.mu.Unlock()
		return fmt.Errorf("send subscribe frame: %w", err)
	}

	s.conn = conn
	s.active = true
	s.mu.Unlock()

	go s.readLoop(conn, onEvent)
	s.logger.Info("realtime feed connected")
	return nil
}

// Active reports whether a connection is currently established.
func (s *Subscriber) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Close tears down the connection. Safe to call when inactive.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.active = false
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (s *Subscriber) readLoop(conn *websocket.Conn, onEvent Handler) {
	defer func() {
		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
			s.active = false
		}
		s.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("realtime feed closed", "error", err)
			} else {
				s.logger.Debug("realtime feed disconnected")
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			s.logger.Debug("ignoring malformed realtime frame", "error", err)
			continue
		}
		if !watchedTables[ev.Table] {
			continue
		}
		onEvent(ev)
	}
}
