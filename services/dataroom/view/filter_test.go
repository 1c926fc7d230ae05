// Copyright (C) 2026 ReDewable Energy (engineering@redewable.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package view

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/redewable/dataroom/services/dataroom/access"
	"github.com/redewable/dataroom/services/dataroom/backend"
	"github.com/redewable/dataroom/services/dataroom/settings"
)

var testDocs = []backend.Document{
	{ID: 1, Name: "Project Teaser", Section: "overview", FileType: "pdf", Status: "uploaded", URL: "https://x.test/a"},
	{ID: 2, Name: "Financial Model", Section: "financials", FileType: "xlsx", Status: "pending"},
	{ID: 3, Name: "Site Plan", Section: "financials", FileType: "dwg", Status: "uploaded", URL: "https://x.test/b"},
}

func TestVisibleSections(t *testing.T) {
	sections := []settings.Section{
		{ID: "overview", Name: "Overview"},
		{ID: "financials", Name: "Financials"},
		{ID: "permits", Name: "Permits"},
	}

	visible := VisibleSections(sections, testDocs, false)
	ids := make([]string, len(visible))
	for i, s := range visible {
		ids[i] = s.ID
	}
	assert.Equal(t, []string{"overview", "financials"}, ids, "empty permits hidden")

	assert.Len(t, VisibleSections(sections, testDocs, true), 3, "show-empty keeps all")
}

func TestFilterDocuments(t *testing.T) {
	tests := []struct {
		term string
		want int
	}{
		{"", 3},
		{"teaser", 1},
		{"XLSX", 1},    // matches file type, case-insensitive
		{"pending", 1}, // matches status
		{"zzz", 0},
	}
	for _, tt := range tests {
		assert.Len(t, FilterDocuments(testDocs, tt.term), tt.want, tt.term)
	}
}

func TestSectionProgress(t *testing.T) {
	assert.Equal(t, 100, SectionProgress(testDocs, "overview"))
	assert.Equal(t, 50, SectionProgress(testDocs, "financials"), "pending doc does not count")
	assert.Equal(t, 0, SectionProgress(testDocs, "permits"))
}

func TestGateMessage(t *testing.T) {
	misconfigured := access.Decision{State: access.StateMisconfigured, Mode: settings.ModeToken}
	needsToken := access.Decision{State: access.StateCredentialRequired, Mode: settings.ModeToken}
	needsPassword := access.Decision{State: access.StateCredentialRequired, Mode: settings.ModePassword}

	assert.Contains(t, GateMessage(misconfigured), "administrator")
	assert.Contains(t, GateMessage(needsToken), "token")
	assert.Contains(t, GateMessage(needsPassword), "passcode")
	assert.Empty(t, GateMessage(access.Decision{State: access.StateAuthorized}))
}

func TestBlockerCopy(t *testing.T) {
	assert.Equal(t, "Maintenance Mode", BlockerTitle(settings.StatusMaintenance))
	assert.Equal(t, "Data Room Disabled", BlockerTitle(settings.StatusDisabled))
	assert.Contains(t, BlockerBody(settings.StatusMaintenance), "maintenance")
}
