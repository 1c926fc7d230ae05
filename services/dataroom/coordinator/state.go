// Copyright (C) 2026 ReDewable Energy (engineering@redewable.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package coordinator

import (
	"sync"

	"github.com/redewable/dataroom/services/dataroom/backend"
	"github.com/redewable/dataroom/services/dataroom/settings"
)

// AppState is the client's cached remote state. Mutated only by the
// reconciliation pass holding the coordinator's in-flight guard; read
// freely by anyone.
//
// Content survives authorization regressions on purpose: a viewer who hits
// a brief maintenance window gets their rendered data back as soon as
// access is restored, without a refetch having to succeed first.
type AppState struct {
	mu sync.RWMutex

	snap         settings.Snapshot
	haveSettings bool
	documents    []backend.Document
	notes        []backend.Note

	currentSection string
	searchTerm     string
}

// NewAppState returns an empty state.
func NewAppState() *AppState {
	return &AppState{}
}

// Settings returns the last fetched snapshot and whether one exists.
func (s *AppState) Settings() (settings.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, s.haveSettings
}

func (s *AppState) setSettings(snap settings.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	s.haveSettings = true
}

// Documents returns the cached document index.
func (s *AppState) Documents() []backend.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.documents
}

// Notes returns the cached section notes.
func (s *AppState) Notes() []backend.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notes
}

func (s *AppState) setContent(docs []backend.Document, notes []backend.Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if docs != nil {
		s.documents = docs
	}
	if notes != nil {
		s.notes = notes
	}
}

// CurrentSection returns the section the viewer is looking at, empty for
// the dashboard.
func (s *AppState) CurrentSection() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentSection
}

// SetCurrentSection records a navigation.
func (s *AppState) SetCurrentSection(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentSection = id
}

// SearchTerm returns the active document filter.
func (s *AppState) SearchTerm() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searchTerm
}

// SetSearchTerm records the document filter.
func (s *AppState) SetSearchTerm(term string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchTerm = term
}

func (s *AppState) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = settings.Snapshot{}
	s.haveSettings = false
	s.documents = nil
	s.notes = nil
	s.currentSection = ""
	s.searchTerm = ""
}
