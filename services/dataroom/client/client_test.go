// Copyright (C) 2026 ReDewable Energy (engineering@redewable.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redewable/dataroom/services/dataroom/view"
)

// newBackendServer serves the three content tables and accepts telemetry
// writes.
func newBackendServer(t *testing.T, settings map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/v1/dataroom_settings":
			type row struct {
				Key   string `json:"key"`
				Value string `json:"value"`
			}
			rows := make([]row, 0, len(settings))
			for k, v := range settings {
				rows = append(rows, row{Key: k, Value: v})
			}
			_ = json.NewEncoder(w).Encode(rows)
		case "/rest/v1/dataroom_documents":
			_, _ = w.Write([]byte(`[{"id":1,"name":"Teaser","section":"overview","file_type":"pdf","status":"uploaded","url":"https://x.test/t.pdf"}]`))
		case "/rest/v1/dataroom_notes":
			_, _ = w.Write([]byte(`[]`))
		case "/rest/v1/visitor_sessions", "/rest/v1/visitor_clicks", "/rest/v1/visitor_logs":
			w.WriteHeader(http.StatusCreated)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, opts Options) (*Client, *view.Recording) {
	t.Helper()
	rec := &view.Recording{}
	opts.InMemory = true
	opts.Renderer = rec
	c, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c, rec
}

func TestNew_UnconfiguredShowsBanner(t *testing.T) {
	_, rec := newTestClient(t, Options{})
	require.Len(t, rec.Banners, 1)
	assert.Equal(t, view.BannerConfigMissing, rec.Banners[0])
}

func TestNew_ConfigFromPageParams(t *testing.T) {
	srv := newBackendServer(t, map[string]string{"dr_access_mode": "open"})

	hist := &recordingHistory{}
	c, rec := newTestClient(t, Options{
		PageURL: "https://invest.example.com/dataroom?sbUrl=" + srv.URL + "&sbKey=anon-key",
		History: hist,
	})

	assert.Empty(t, rec.Banners, "configured, no banner")
	// The endpoint pair is stripped from the visible URL.
	require.NotEmpty(t, hist.urls)
	assert.NotContains(t, hist.urls[len(hist.urls)-1], "anon-key")

	require.NoError(t, c.SubmitIdentity("Jane Smith", "jane@company.com", "Acme"))
	_, ok := rec.LastDashboard()
	assert.True(t, ok, "dashboard rendered after identity collection")
}

func TestBoot_WithoutIdentityShowsVisitorForm(t *testing.T) {
	srv := newBackendServer(t, map[string]string{"dr_access_mode": "open"})
	c, rec := newTestClient(t, Options{BackendURL: srv.URL, BackendKey: "k"})

	c.Boot()

	assert.Contains(t, rec.CallLog(), "visitor_form")
}

func TestSubmitIdentity_Invalid(t *testing.T) {
	srv := newBackendServer(t, map[string]string{"dr_access_mode": "open"})
	c, _ := newTestClient(t, Options{BackendURL: srv.URL, BackendKey: "k"})

	assert.Error(t, c.SubmitIdentity("", "jane@company.com", ""))
	assert.Error(t, c.SubmitIdentity("Jane Smith", "not-an-email", ""))
}

func TestBoot_TokenLinkAutoUnlocks(t *testing.T) {
	srv := newBackendServer(t, map[string]string{
		"dr_access_mode": "token",
		"dr_link_token":  "abc123",
	})

	hist := &recordingHistory{}
	c, rec := newTestClient(t, Options{
		BackendURL: srv.URL,
		BackendKey: "k",
		PageURL:    "https://invest.example.com/dataroom?token=abc123",
		History:    hist,
	})

	require.NoError(t, c.SubmitIdentity("Jane Smith", "jane@company.com", ""))

	// Authorized on the first evaluated pass, no explicit submission.
	_, ok := rec.LastDashboard()
	assert.True(t, ok)
	assert.Empty(t, rec.Gates, "gate never shown")

	// The token is gone from the visible URL.
	require.NotEmpty(t, hist.urls)
	assert.NotContains(t, hist.urls[len(hist.urls)-1], "abc123")
}

func TestGateFlow_PasswordRoom(t *testing.T) {
	srv := newBackendServer(t, map[string]string{
		"dr_access_mode": "password",
		"dr_password":    "sunrise7",
	})
	c, rec := newTestClient(t, Options{BackendURL: srv.URL, BackendKey: "k"})

	require.NoError(t, c.SubmitIdentity("Jane Smith", "jane@company.com", ""))
	require.NotEmpty(t, rec.Gates, "gate shown before unlock")

	require.NoError(t, c.SubmitCredential("sunrise7"))
	_, ok := rec.LastDashboard()
	assert.True(t, ok)

	c.Logout(context.Background())
	assert.Contains(t, rec.CallLog(), "visitor_form")
}

func TestTheme_RoundTrip(t *testing.T) {
	c, _ := newTestClient(t, Options{})
	assert.Equal(t, "dark", c.Theme())
	require.NoError(t, c.SetTheme("light"))
	assert.Equal(t, "light", c.Theme())
}

type recordingHistory struct {
	urls []string
}

func (h *recordingHistory) ReplaceState(u string) { h.urls = append(h.urls, u) }
