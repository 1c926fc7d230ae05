// Copyright (C) 2026 ReDewable Energy (engineering@redewable.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package view

import (
	"sync"

	"github.com/redewable/dataroom/services/dataroom/settings"
)

// Nop is a Renderer that draws nothing. Useful for headless operation.
type Nop struct{}

func (Nop) RenderDashboard(Data)                 {}
func (Nop) RenderSection(string, Data)           {}
func (Nop) ShowStatusBlocker(settings.Status)    {}
func (Nop) HideStatusBlocker()                   {}
func (Nop) ShowGate(settings.AccessMode, string) {}
func (Nop) HideGate()                            {}
func (Nop) ShowVisitorForm()                     {}
func (Nop) HideVisitorForm()                     {}
func (Nop) ShowBanner(BannerKind, string)        {}
func (Nop) ShowSyncIndicator(bool)               {}

// Recording is a Renderer that records every call. Test double shared by
// the coordinator and client tests.
type Recording struct {
	mu sync.Mutex

	Calls      []string
	Dashboards []Data
	Blockers   []settings.Status
	Gates      []settings.AccessMode
	Banners    []BannerKind
}

func (r *Recording) record(call string) {
	r.Calls = append(r.Calls, call)
}

func (r *Recording) RenderDashboard(d Data) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("dashboard")
	r.Dashboards = append(r.Dashboards, d)
}

func (r *Recording) RenderSection(sectionID string, d Data) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("section:" + sectionID)
}

func (r *Recording) ShowStatusBlocker(status settings.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("blocker")
	r.Blockers = append(r.Blockers, status)
}

func (r *Recording) HideStatusBlocker() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("blocker_hidden")
}

func (r *Recording) ShowGate(mode settings.AccessMode, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("gate")
	r.Gates = append(r.Gates, mode)
}

func (r *Recording) HideGate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("gate_hidden")
}

func (r *Recording) ShowVisitorForm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("visitor_form")
}

func (r *Recording) HideVisitorForm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("visitor_form_hidden")
}

func (r *Recording) ShowBanner(kind BannerKind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("banner:" + string(kind))
	r.Banners = append(r.Banners, kind)
}

func (r *Recording) ShowSyncIndicator(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if active {
		r.record("sync_on")
	} else {
		r.record("sync_off")
	}
}

// CallLog returns a copy of the recorded call sequence.
func (r *Recording) CallLog() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Calls))
	copy(out, r.Calls)
	return out
}

// LastDashboard returns the most recent dashboard render, if any.
func (r *Recording) LastDashboard() (Data, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Dashboards) == 0 {
		return Data{}, false
	}
	return r.Dashboards[len(r.Dashboards)-1], true
}
