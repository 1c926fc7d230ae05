// Copyright (C) 2026 ReDewable Energy (engineering@redewable.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package backend talks to the hosted backing store over its PostgREST
// interface: policy settings, the document index, section notes, and the
// visitor telemetry tables.
//
// Content reads are authoritative for sync; telemetry writes are
// fire-and-forget and must never affect the viewer experience.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/redewable/dataroom/services/dataroom/settings"
)

// ErrNotConfigured indicates the endpoint pair has not been provided yet.
// The client is constructed unconditionally at boot; callers check this to
// distinguish "no backend yet" from transport failures.
var ErrNotConfigured = errors.New("backend endpoint not configured")

const defaultTimeout = 15 * time.Second

// Config holds the connection parameters for the backing store.
type Config struct {
	// URL is the project base URL, e.g. https://xyz.example.co.
	URL string

	// Key is the anonymous API key sent with every request.
	Key string

	// HTTPClient overrides the default client. Test hook.
	HTTPClient *http.Client

	// TelemetryRate caps telemetry writes per second. Zero means the
	// default of 5/s with a burst of 10.
	TelemetryRate rate.Limit
}

// Client is a thread-safe handle on the backing store. A zero-config
// client is valid and returns ErrNotConfigured from every call.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger

	sf      singleflight.Group
	limiter *rate.Limiter
}

// NewClient builds a Client from the given config.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	rl := cfg.TelemetryRate
	if rl == 0 {
		rl = rate.Limit(5)
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.URL), "/"),
		apiKey:  strings.TrimSpace(cfg.Key),
		http:    hc,
		logger:  logger,
		limiter: rate.NewLimiter(rl, 10),
	}
}

// Configured reports whether the endpoint pair is present.
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// settingsRow is one row of the dataroom_settings key/value table.
type settingsRow struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// FetchSettings retrieves all policy settings and returns them as a fresh
// snapshot. Concurrent calls are collapsed into a single request; every
// caller receives the same result.
func (c *Client) FetchSettings(ctx context.Context) (settings.Snapshot, error) {
	v, err, _ := c.sf.Do("settings", func() (any, error) {
		var rows []settingsRow
		if err := c.get(ctx, "dataroom_settings", url.Values{"select": {"key,value"}}, &rows); err != nil {
			return settings.Snapshot{}, err
		}
		values := make(map[string]string, len(rows))
		for _, r := range rows {
			values[r.Key] = r.Value
		}
		return settings.NewSnapshot(values), nil
	})
	if err != nil {
		return settings.Snapshot{}, err
	}
	return v.(settings.Snapshot), nil
}

// FetchDocuments retrieves the visible document index in display order.
func (c *Client) FetchDocuments(ctx context.Context) ([]Document, error) {
	var docs []Document
	err := c.get(ctx, "dataroom_documents", url.Values{
		"is_hidden": {"eq.false"},
		"order":     {"sort_order.asc"},
	}, &docs)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// FetchNotes retrieves all section notes in display order.
func (c *Client) FetchNotes(ctx context.Context) ([]Note, error) {
	var notes []Note
	err := c.get(ctx, "dataroom_notes", url.Values{
		"order": {"sort_order.asc"},
	}, &notes)
	if err != nil {
		return nil, err
	}
	return notes, nil
}

// --- HTTP plumbing ----------------------------------------------------------

func (c *Client) get(ctx context.Context, table string, query url.Values, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	u := c.baseURL + "/rest/v1/" + table
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", table, err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("fetch %s: status %d: %s", table, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", table, err)
	}
	return nil
}

func (c *Client) write(ctx context.Context, method, table string, query url.Values, payload any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", table, err)
	}

	u := c.baseURL + "/rest/v1/" + table
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request for %s: %w", table, err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("write %s: %w", table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("write %s: status %d: %s", table, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}
