// Copyright (C) 2026 ReDewable Energy (engineering@redewable.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_Status(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Status
	}{
		{"absent defaults to active", "", StatusActive},
		{"explicit active", "active", StatusActive},
		{"disabled", "disabled", StatusDisabled},
		{"maintenance", "maintenance", StatusMaintenance},
		{"case and whitespace folded", "  Maintenance ", StatusMaintenance},
		{"unrecognized treated as active", "paused", StatusActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := NewSnapshot(map[string]string{KeyStatus: tt.raw})
			assert.Equal(t, tt.want, snap.Status())
		})
	}

	assert.True(t, StatusDisabled.Blocking())
	assert.True(t, StatusMaintenance.Blocking())
	assert.False(t, StatusActive.Blocking())
}

func TestSnapshot_AccessMode(t *testing.T) {
	tests := []struct {
		raw  string
		want AccessMode
	}{
		{"open", ModeOpen},
		{"token", ModeToken},
		{"password", ModePassword},
		{"", ModePassword},
		{"TOKEN", ModeToken},
		{"invite-only", ModePassword}, // unrecognized defaults to password
	}

	for _, tt := range tests {
		snap := NewSnapshot(map[string]string{KeyAccessMode: tt.raw})
		assert.Equal(t, tt.want, snap.AccessMode(), "mode %q", tt.raw)
	}
}

func TestSnapshot_CredentialsTrimmed(t *testing.T) {
	snap := NewSnapshot(map[string]string{
		KeyPassword:  " sunrise7 ",
		KeyLinkToken: "\tabc123\n",
	})
	assert.Equal(t, "sunrise7", snap.Password())
	assert.Equal(t, "abc123", snap.LinkToken())
}

func TestSnapshot_WholesaleRebuild(t *testing.T) {
	// A key from a previous snapshot must not survive a refresh.
	old := NewSnapshot(map[string]string{KeyPassword: "stale"})
	fresh := NewSnapshot(map[string]string{KeyStatus: "active"})

	assert.Equal(t, "stale", old.Password())
	assert.Equal(t, "", fresh.Password())
}

func TestSnapshot_CopiesInput(t *testing.T) {
	src := map[string]string{KeyPassword: "first"}
	snap := NewSnapshot(src)
	src[KeyPassword] = "mutated"
	assert.Equal(t, "first", snap.Password())
}

func TestSnapshot_ProgressCategories(t *testing.T) {
	t.Run("explicit list", func(t *testing.T) {
		snap := NewSnapshot(map[string]string{
			KeyProgressCategories: `["progress_epc","progress_financial"]`,
		})
		assert.Equal(t, []string{"progress_epc", "progress_financial"}, snap.ProgressCategories())
	})

	t.Run("malformed falls back", func(t *testing.T) {
		snap := NewSnapshot(map[string]string{KeyProgressCategories: "{broken"})
		assert.Len(t, snap.ProgressCategories(), 5)
	})

	t.Run("absent falls back", func(t *testing.T) {
		snap := NewSnapshot(nil)
		assert.Len(t, snap.ProgressCategories(), 5)
	})
}

func TestSnapshot_OverallProgress(t *testing.T) {
	snap := NewSnapshot(map[string]string{
		KeyProgressCategories: `["progress_executive","progress_land","progress_epc"]`,
		"progress_executive":  "100",
		"progress_land":       "50",
		"progress_epc":        "not-a-number", // skipped
	})
	assert.Equal(t, 75, snap.OverallProgress())

	empty := NewSnapshot(nil)
	assert.Equal(t, 0, empty.OverallProgress())
}

func TestSnapshot_ShowEmptySections(t *testing.T) {
	assert.False(t, NewSnapshot(nil).ShowEmptySections())
	assert.True(t, NewSnapshot(map[string]string{KeyShowEmptySections: "TRUE"}).ShowEmptySections())
	assert.False(t, NewSnapshot(map[string]string{KeyShowEmptySections: "yes"}).ShowEmptySections())
}

func TestSections(t *testing.T) {
	sections, err := Sections()
	require.NoError(t, err)
	require.Len(t, sections, 11)

	assert.Equal(t, "executive", sections[0].ID)
	assert.Equal(t, "Executive Summary", sections[0].Name)
	assert.Equal(t, "progress_executive", sections[0].ProgressKey)

	team, ok := SectionByID("team")
	require.True(t, ok)
	assert.Equal(t, "Team & Partners", team.Name)

	_, ok = SectionByID("nonexistent")
	assert.False(t, ok)
}
