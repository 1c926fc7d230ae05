// Copyright (C) 2026 ReDewable Energy (engineering@redewable.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package view is the presentation boundary of the client. The sync
// coordinator drives a Renderer; everything else about how the room is
// actually drawn lives behind that interface.
package view

import (
	"github.com/redewable/dataroom/services/dataroom/access"
	"github.com/redewable/dataroom/services/dataroom/backend"
	"github.com/redewable/dataroom/services/dataroom/settings"
)

// BannerKind classifies transient viewer-facing notices.
type BannerKind string

const (
	BannerConfigMissing BannerKind = "config_missing"
	BannerSyncFailed    BannerKind = "sync_failed"
)

// Data is everything needed to draw the authorized dashboard.
type Data struct {
	ProjectName       string
	ProjectSubtitle   string
	Capacity          string
	TargetNTP         string
	OverallProgress   int
	ShowEmptySections bool
	Theme             string

	Sections  []settings.Section
	Documents []backend.Document
	Notes     []backend.Note
}

// Renderer draws the room. Implementations must tolerate repeated calls
// with identical arguments; the coordinator re-renders on every pass
// rather than diffing.
type Renderer interface {
	RenderDashboard(d Data)
	RenderSection(sectionID string, d Data)

	ShowStatusBlocker(status settings.Status)
	HideStatusBlocker()

	ShowGate(mode settings.AccessMode, message string)
	HideGate()

	ShowVisitorForm()
	HideVisitorForm()

	ShowBanner(kind BannerKind, message string)
	ShowSyncIndicator(active bool)
}

// BlockerTitle returns the heading for a blocking status.
func BlockerTitle(status settings.Status) string {
	if status == settings.StatusMaintenance {
		return "Maintenance Mode"
	}
	return "Data Room Disabled"
}

// BlockerBody returns the explanation for a blocking status.
func BlockerBody(status settings.Status) string {
	if status == settings.StatusMaintenance {
		return "This data room is temporarily unavailable for maintenance. Please check back soon."
	}
	return "This data room is currently unavailable."
}

// GateMessage returns the instructive text shown with the gate form for a
// non-authorized decision, and the inline error text for credential
// submission failures.
func GateMessage(dec access.Decision) string {
	switch dec.State {
	case access.StateMisconfigured:
		return "No token is configured. Please contact the administrator."
	case access.StateCredentialRequired:
		if dec.Mode == settings.ModeToken {
			return "Enter your access token to continue."
		}
		return "Enter the passcode to continue."
	default:
		return ""
	}
}

// MismatchMessage returns the inline error for a rejected credential.
func MismatchMessage(mode settings.AccessMode) string {
	if mode == settings.ModeToken {
		return "Incorrect token."
	}
	return "Incorrect passcode."
}
