// Copyright (C) 2026 ReDewable Energy (engineering@redewable.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package settings holds the immutable per-refresh view of the remotely
// configured data room policy, plus the embedded section catalog.
//
// A Snapshot is rebuilt wholesale on every settings fetch. There is no
// partial merge: a key present in a previous snapshot but absent from the
// latest fetch is gone. Consumers never mutate a Snapshot; they exchange it
// for a new one.
package settings

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Policy keys read by the client. The backing store may carry more; unknown
// keys are retained in the snapshot and reachable through Get.
const (
	KeyStatus            = "dr_status"
	KeyAccessMode        = "dr_access_mode"
	KeyPassword          = "dr_password"
	KeyLinkToken         = "dr_link_token"
	KeyShowEmptySections = "dr_show_empty_sections"

	KeyProjectName        = "project_name"
	KeyProjectSubtitle    = "project_subtitle"
	KeyCapacity           = "capacity"
	KeyTargetNTP          = "target_ntp"
	KeyProgressCategories = "progress_categories"
)

// Status is the operational state of the data room.
type Status string

const (
	StatusActive      Status = "active"
	StatusDisabled    Status = "disabled"
	StatusMaintenance Status = "maintenance"
)

// Blocking reports whether the status forces the blocked view regardless of
// any credentials the viewer holds.
func (s Status) Blocking() bool {
	return s == StatusDisabled || s == StatusMaintenance
}

// AccessMode selects the gating strategy.
type AccessMode string

const (
	ModeOpen     AccessMode = "open"
	ModePassword AccessMode = "password"
	ModeToken    AccessMode = "token"
)

// defaultProgressCategories is used when progress_categories is absent or
// malformed.
var defaultProgressCategories = []string{
	"progress_executive",
	"progress_land",
	"progress_interconnection",
	"progress_permitting",
	"progress_engineering",
}

// Snapshot is an immutable key/value view of the remote policy table.
// The zero value behaves like an empty table (active status, password mode
// with no password, meaning unrestricted).
type Snapshot struct {
	values map[string]string
}

// NewSnapshot builds a Snapshot from a freshly fetched key/value table.
// The input map is copied; later mutation of it does not leak into the
// snapshot.
func NewSnapshot(values map[string]string) Snapshot {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return Snapshot{values: copied}
}

// Get returns the raw value for key, or "" when absent.
func (s Snapshot) Get(key string) string {
	return s.values[key]
}

// Len returns the number of keys in the snapshot.
func (s Snapshot) Len() int {
	return len(s.values)
}

// Status returns the operational status. Absent or unrecognized values are
// treated as active; only the two blocking values change behavior.
func (s Snapshot) Status() Status {
	switch Status(strings.ToLower(strings.TrimSpace(s.values[KeyStatus]))) {
	case StatusDisabled:
		return StatusDisabled
	case StatusMaintenance:
		return StatusMaintenance
	default:
		return StatusActive
	}
}

// AccessMode returns the configured gating mode. Absent or unrecognized
// values default to password mode.
func (s Snapshot) AccessMode() AccessMode {
	switch AccessMode(strings.ToLower(strings.TrimSpace(s.values[KeyAccessMode]))) {
	case ModeOpen:
		return ModeOpen
	case ModeToken:
		return ModeToken
	default:
		return ModePassword
	}
}

// Password returns the shared password, trimmed. Empty means no password
// restriction is configured.
func (s Snapshot) Password() string {
	return strings.TrimSpace(s.values[KeyPassword])
}

// LinkToken returns the shared link token, trimmed. Empty means no token is
// configured.
func (s Snapshot) LinkToken() string {
	return strings.TrimSpace(s.values[KeyLinkToken])
}

// ShowEmptySections reports whether sections without documents should still
// be listed.
func (s Snapshot) ShowEmptySections() bool {
	return strings.EqualFold(strings.TrimSpace(s.values[KeyShowEmptySections]), "true")
}

// ProgressCategories returns the progress keys enabled for the dashboard
// breakdown. The stored value is a JSON array of key names; absent or
// malformed values fall back to the original five categories.
func (s Snapshot) ProgressCategories() []string {
	raw := s.values[KeyProgressCategories]
	if raw != "" {
		var keys []string
		if err := json.Unmarshal([]byte(raw), &keys); err == nil && len(keys) > 0 {
			return keys
		}
	}
	out := make([]string, len(defaultProgressCategories))
	copy(out, defaultProgressCategories)
	return out
}

// OverallProgress averages the enabled progress categories, each read as an
// integer percentage. Unparseable values are skipped; no parseable values
// yields zero.
func (s Snapshot) OverallProgress() int {
	sum, cnt := 0, 0
	for _, key := range s.ProgressCategories() {
		v, err := strconv.Atoi(strings.TrimSpace(s.values[key]))
		if err != nil {
			continue
		}
		sum += v
		cnt++
	}
	if cnt == 0 {
		return 0
	}
	return int(float64(sum)/float64(cnt) + 0.5)
}
