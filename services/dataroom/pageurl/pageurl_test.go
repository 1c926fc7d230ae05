// Copyright (C) 2026 ReDewable Energy (engineering@redewable.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pageurl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHistory struct {
	urls []string
}

func (h *recordingHistory) ReplaceState(u string) { h.urls = append(h.urls, u) }

func TestConsume_StripsAndReturns(t *testing.T) {
	hist := &recordingHistory{}
	p, err := New("https://invest.example.com/dataroom?token=abc123&view=docs", hist)
	require.NoError(t, err)

	got := p.Consume("token", "pw")
	assert.Equal(t, map[string]string{"token": "abc123"}, got)

	// Token gone from the visible URL, unrelated params kept.
	assert.NotContains(t, p.String(), "token")
	assert.Contains(t, p.String(), "view=docs")

	// Exactly one history rewrite.
	require.Len(t, hist.urls, 1)
	assert.NotContains(t, hist.urls[0], "abc123")
}

func TestConsume_NoChangeNoRewrite(t *testing.T) {
	hist := &recordingHistory{}
	p, err := New("https://invest.example.com/dataroom", hist)
	require.NoError(t, err)

	got := p.Consume("token", "pw", "access")
	assert.Empty(t, got)
	assert.Empty(t, hist.urls)
}

func TestConsume_TrimsValues(t *testing.T) {
	p, err := New("https://x.test/?pw=%20sunrise7%20", nil)
	require.NoError(t, err)

	got := p.Consume("pw")
	assert.Equal(t, "sunrise7", got["pw"])
}

func TestConsume_EmptyValueStrippedNotReturned(t *testing.T) {
	hist := &recordingHistory{}
	p, err := New("https://x.test/?token=&view=docs", hist)
	require.NoError(t, err)

	got := p.Consume("token")
	assert.Empty(t, got)
	assert.False(t, strings.Contains(p.String(), "token"))
	assert.Len(t, hist.urls, 1)
}

func TestQuery_NonDestructive(t *testing.T) {
	p, err := New("https://x.test/?sbUrl=https://api.test", nil)
	require.NoError(t, err)

	assert.Equal(t, "https://api.test", p.Query("sbUrl"))
	assert.Equal(t, "https://api.test", p.Query("sbUrl")) // still there
}

func TestNew_BadURL(t *testing.T) {
	_, err := New("://not-a-url", nil)
	assert.Error(t, err)
}
