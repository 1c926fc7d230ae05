// Copyright (C) 2026 ReDewable Energy (engineering@redewable.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package backend

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// SessionStart is the visitor_sessions row written when tracking begins.
type SessionStart struct {
	SessionID      string `json:"session_id"`
	VisitorName    string `json:"visitor_name"`
	VisitorEmail   string `json:"visitor_email"`
	VisitorCompany string `json:"visitor_company,omitempty"`
	StartedAt      string `json:"started_at"`
	UserAgent      string `json:"user_agent,omitempty"`
	Referrer       string `json:"referrer,omitempty"`
	ScreenWidth    int    `json:"screen_width,omitempty"`
	ScreenHeight   int    `json:"screen_height,omitempty"`
}

// Click is one visitor_clicks row. Action is dashboard_view,
// document_click, or section_view; the document fields are only set for
// document_click.
type Click struct {
	SessionID    string `json:"session_id"`
	VisitorEmail string `json:"visitor_email,omitempty"`
	DocumentID   int64  `json:"document_id,omitempty"`
	DocumentName string `json:"document_name,omitempty"`
	Section      string `json:"section,omitempty"`
	Action       string `json:"action"`
	ClickedAt    string `json:"clicked_at"`
}

// Activity is one visitor_logs row, the coarser activity journal kept
// alongside clicks.
type Activity struct {
	SessionID    string `json:"session_id,omitempty"`
	VisitorName  string `json:"visitor_name"`
	Company      string `json:"visitor_company,omitempty"`
	Action       string `json:"action"`
	Section      string `json:"section,omitempty"`
	DocumentName string `json:"document_name,omitempty"`
}

// allowTelemetry applies the client-side write cap. A dropped event is
// logged at debug and silently lost, matching the fire-and-forget
// contract.
func (c *Client) allowTelemetry(kind string) bool {
	if c.limiter.Allow() {
		return true
	}
	c.logger.Debug("telemetry event dropped by rate limit", "kind", kind)
	return false
}

// InsertSessionStart records the beginning of a visitor session.
func (c *Client) InsertSessionStart(ctx context.Context, s SessionStart) error {
	if !c.allowTelemetry("session_start") {
		return nil
	}
	return c.write(ctx, http.MethodPost, "visitor_sessions", nil, s)
}

// UpdateSessionEnd stamps ended_at and the duration on an existing
// session row.
func (c *Client) UpdateSessionEnd(ctx context.Context, sessionID string, endedAt time.Time, durationSeconds int) error {
	if !c.allowTelemetry("session_end") {
		return nil
	}
	payload := map[string]any{
		"ended_at":         endedAt.UTC().Format(time.RFC3339),
		"duration_seconds": durationSeconds,
	}
	query := url.Values{"session_id": {"eq." + sessionID}}
	return c.write(ctx, http.MethodPatch, "visitor_sessions", query, payload)
}

// InsertClick records a click event.
func (c *Client) InsertClick(ctx context.Context, click Click) error {
	if !c.allowTelemetry("click") {
		return nil
	}
	if click.ClickedAt == "" {
		click.ClickedAt = time.Now().UTC().Format(time.RFC3339)
	}
	return c.write(ctx, http.MethodPost, "visitor_clicks", nil, click)
}

// InsertActivity records an activity journal entry.
func (c *Client) InsertActivity(ctx context.Context, act Activity) error {
	if !c.allowTelemetry("activity") {
		return nil
	}
	return c.write(ctx, http.MethodPost, "visitor_logs", nil, act)
}
