// Copyright (C) 2026 ReDewable Energy (engineering@redewable.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session tracks the visitor's viewing session: one row in the
// backing store per session, persisted locally so a revisit within the TTL
// resumes the same session instead of opening a new one.
//
// All telemetry writes are fire-and-forget. A failed write is logged and
// dropped; it never surfaces to the viewer or blocks a reconcile.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/redewable/dataroom/services/dataroom/backend"
	"github.com/redewable/dataroom/services/dataroom/localstore"
)

const telemetryTimeout = 10 * time.Second

// Recorder is the telemetry surface of the backing store.
type Recorder interface {
	InsertSessionStart(ctx context.Context, s backend.SessionStart) error
	UpdateSessionEnd(ctx context.Context, sessionID string, endedAt time.Time, durationSeconds int) error
	InsertClick(ctx context.Context, c backend.Click) error
	InsertActivity(ctx context.Context, a backend.Activity) error
}

// Persistence is the local session storage the tracker needs.
type Persistence interface {
	SaveSession(rec localstore.SessionRecord) error
	LoadSession() (localstore.SessionRecord, error)
	DeleteSession() error
}

// Env describes the viewing environment captured at session start.
type Env struct {
	UserAgent    string
	Referrer     string
	ScreenWidth  int
	ScreenHeight int
}

// Tracker manages the current session. Safe for concurrent use.
type Tracker struct {
	rec    Recorder
	store  Persistence
	env    Env
	logger *slog.Logger

	mu       sync.Mutex
	current  localstore.SessionRecord
	identity localstore.Identity
	active   bool

	now   func() time.Time
	newID func() string
	wg    sync.WaitGroup
}

// NewTracker creates a Tracker.
func NewTracker(rec Recorder, store Persistence, env Env, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		rec:    rec,
		store:  store,
		env:    env,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Begin starts tracking for the given visitor. Idempotent: while a session
// is active, further calls are no-ops, so every reconcile pass may call it
// unconditionally.
//
// A session persisted within the TTL is resumed under its original ID
// without writing a second start row.
func (t *Tracker) Begin(identity localstore.Identity) {
	t.mu.Lock()
	if t.active {
		t.mu.Unlock()
		return
	}

	if rec, err := t.store.LoadSession(); err == nil && rec.ID != "" {
		t.current = rec
		t.identity = identity
		t.active = true
		t.mu.Unlock()
		t.logger.Info("resumed session", "session_id", rec.ID)
		return
	}

	rec := localstore.SessionRecord{ID: t.newID(), StartedAt: t.now().UTC()}
	if err := t.store.SaveSession(rec); err != nil {
		t.logger.Warn("failed to persist session record", "error", err)
	}
	t.current = rec
	t.identity = identity
	t.active = true
	t.mu.Unlock()

	start := backend.SessionStart{
		SessionID:      rec.ID,
		VisitorName:    identity.Name,
		VisitorEmail:   identity.Email,
		VisitorCompany: identity.Company,
		StartedAt:      rec.StartedAt.Format(time.RFC3339),
		UserAgent:      t.env.UserAgent,
		Referrer:       t.env.Referrer,
		ScreenWidth:    t.env.ScreenWidth,
		ScreenHeight:   t.env.ScreenHeight,
	}
	t.dispatch("session_start", func(ctx context.Context) error {
		return t.rec.InsertSessionStart(ctx, start)
	})
	t.TrackDashboardView()
	t.logger.Info("session started", "session_id", rec.ID)
}

// End closes the current session, stamping its duration on the backing
// store row and discarding the local record. The write is synchronous so a
// shutdown can wait for it, but failure is still only logged.
func (t *Tracker) End(ctx context.Context) {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return
	}
	rec := t.current
	t.active = false
	t.current = localstore.SessionRecord{}
	t.mu.Unlock()

	endedAt := t.now().UTC()
	duration := int(endedAt.Sub(rec.StartedAt).Round(time.Second) / time.Second)
	if err := t.rec.UpdateSessionEnd(ctx, rec.ID, endedAt, duration); err != nil {
		t.logger.Warn("failed to record session end", "error", err)
	}
	if err := t.store.DeleteSession(); err != nil {
		t.logger.Warn("failed to discard session record", "error", err)
	}
	t.logger.Info("session ended", "session_id", rec.ID, "duration_seconds", duration)
}

// Current returns the active session record, if any.
func (t *Tracker) Current() (localstore.SessionRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, t.active
}

// TrackDashboardView records the initial dashboard view click.
func (t *Tracker) TrackDashboardView() {
	rec, id, ok := t.snapshot()
	if !ok {
		return
	}
	click := backend.Click{
		SessionID:    rec.ID,
		VisitorEmail: id.Email,
		Action:       "dashboard_view",
	}
	t.dispatch("dashboard_view", func(ctx context.Context) error {
		return t.rec.InsertClick(ctx, click)
	})
}

// TrackDocumentClick records that the visitor opened a document, in both
// the click table and the activity journal.
func (t *Tracker) TrackDocumentClick(doc backend.Document) {
	rec, id, ok := t.snapshot()
	if !ok {
		return
	}
	click := backend.Click{
		SessionID:    rec.ID,
		VisitorEmail: id.Email,
		DocumentID:   doc.ID,
		DocumentName: doc.Name,
		Section:      doc.Section,
		Action:       "document_click",
	}
	act := backend.Activity{
		SessionID:    rec.ID,
		VisitorName:  id.Name,
		Company:      id.Company,
		Action:       "view_document",
		Section:      doc.Section,
		DocumentName: doc.Name,
	}
	t.dispatch("document_click", func(ctx context.Context) error {
		if err := t.rec.InsertClick(ctx, click); err != nil {
			return err
		}
		return t.rec.InsertActivity(ctx, act)
	})
}

// TrackSectionView records that the visitor navigated to a section.
func (t *Tracker) TrackSectionView(sectionID string) {
	rec, id, ok := t.snapshot()
	if !ok {
		return
	}
	click := backend.Click{
		SessionID:    rec.ID,
		VisitorEmail: id.Email,
		Section:      sectionID,
		Action:       "section_view",
	}
	act := backend.Activity{
		SessionID:   rec.ID,
		VisitorName: id.Name,
		Company:     id.Company,
		Action:      "view_section",
		Section:     sectionID,
	}
	t.dispatch("section_view", func(ctx context.Context) error {
		if err := t.rec.InsertClick(ctx, click); err != nil {
			return err
		}
		return t.rec.InsertActivity(ctx, act)
	})
}

// Flush waits for in-flight telemetry writes. Test hook and shutdown aid.
func (t *Tracker) Flush() {
	t.wg.Wait()
}

func (t *Tracker) snapshot() (localstore.SessionRecord, localstore.Identity, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, t.identity, t.active
}

func (t *Tracker) dispatch(kind string, fn func(context.Context) error) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), telemetryTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			t.logger.Debug("telemetry write failed", "kind", kind, "error", err)
		}
	}()
}
