// Copyright (C) 2026 ReDewable Energy (engineering@redewable.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package coordinator serializes the client's reconciliation passes. It is
// the single place that decides "something may have changed, re-derive and
// re-render", and the only code allowed to mutate the cached AppState.
//
// Five trigger sources feed Reconcile: push events, the poll ticker, the
// tab becoming visible, the network coming back, and explicit viewer
// refresh. Overlapping triggers collapse into at most one queued follow-up
// pass.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/redewable/dataroom/services/dataroom/access"
	"github.com/redewable/dataroom/services/dataroom/backend"
	"github.com/redewable/dataroom/services/dataroom/localstore"
	"github.com/redewable/dataroom/services/dataroom/pageurl"
	"github.com/redewable/dataroom/services/dataroom/push"
	"github.com/redewable/dataroom/services/dataroom/settings"
	"github.com/redewable/dataroom/services/dataroom/view"
)

// ErrNoPolicy indicates no settings snapshot has been fetched yet, so
// there is nothing to evaluate a credential against.
var ErrNoPolicy = errors.New("no policy loaded yet")

// DefaultPollInterval is the period of the fallback poll timer.
const DefaultPollInterval = 30 * time.Second

// Trigger identifies which source asked for a reconciliation pass.
type Trigger string

const (
	TriggerPush       Trigger = "push"
	TriggerPoll       Trigger = "poll"
	TriggerVisibility Trigger = "visibility"
	TriggerOnline     Trigger = "online"
	TriggerManual     Trigger = "manual"
)

// Source is the content-read surface of the backing store.
type Source interface {
	FetchSettings(ctx context.Context) (settings.Snapshot, error)
	FetchDocuments(ctx context.Context) ([]backend.Document, error)
	FetchNotes(ctx context.Context) ([]backend.Note, error)
}

// Feed is the realtime change feed.
type Feed interface {
	Subscribe(ctx context.Context, onEvent push.Handler) error
	Active() bool
	Close() error
}

// Tracker is the session telemetry surface.
type Tracker interface {
	Begin(identity localstore.Identity)
	End(ctx context.Context)
	TrackSectionView(sectionID string)
	TrackDocumentClick(doc backend.Document)
}

// LocalState is the slice of the local store the coordinator reads.
type LocalState interface {
	LoadIdentity() (localstore.Identity, error)
	DeleteIdentity() error
	Theme() string
}

// Config tunes the coordinator.
type Config struct {
	// PollInterval is the fallback poll period. Zero means
	// DefaultPollInterval.
	PollInterval time.Duration
}

// Coordinator owns the reconcile loop, the cached AppState, and the
// lifecycle of the push subscription and poll timer.
type Coordinator struct {
	source   Source
	feed     Feed
	engine   *access.Engine
	tracker  Tracker
	renderer view.Renderer
	local    LocalState
	page     *pageurl.Page
	state    *AppState
	logger   *slog.Logger

	pollInterval time.Duration

	// Reconcile serialization. inFlight marks a pass running; queued marks
	// at most one follow-up. Bursts beyond that are coalesced away.
	mu            sync.Mutex
	inFlight      bool
	queued        bool
	queuedTrigger Trigger

	pollMu   sync.Mutex
	pollStop chan struct{}
}

// New wires a Coordinator. The renderer may be view.Nop for headless use;
// page may be nil when no URL is in play.
func New(cfg Config, source Source, feed Feed, engine *access.Engine, tracker Tracker,
	renderer view.Renderer, local LocalState, page *pageurl.Page, logger *slog.Logger) *Coordinator {

	if logger == nil {
		logger = slog.Default()
	}
	if renderer == nil {
		renderer = view.Nop{}
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Coordinator{
		source:       source,
		feed:         feed,
		engine:       engine,
		tracker:      tracker,
		renderer:     renderer,
		local:        local,
		page:         page,
		state:        NewAppState(),
		logger:       logger,
		pollInterval: interval,
	}
}

// State exposes the cached application state.
func (c *Coordinator) State() *AppState {
	return c.state
}

// Reconcile runs one fetch-evaluate-render pass for the given trigger.
//
// Passes are effectively serialized: a trigger arriving while a pass is in
// flight queues exactly one follow-up; further triggers inside the same
// window are absorbed. The caller that started the first pass also runs
// the follow-up, so passes never overlap.
func (c *Coordinator) Reconcile(trigger Trigger) {
	c.mu.Lock()
	if c.inFlight {
		if c.queued {
			reconcileCoalescedTotal.Inc()
		} else {
			c.queued = true
			c.queuedTrigger = trigger
		}
		c.mu.Unlock()
		return
	}
	c.inFlight = true
	c.mu.Unlock()

	for {
		c.pass(context.Background(), trigger)

		c.mu.Lock()
		if !c.queued {
			c.inFlight = false
			c.mu.Unlock()
			return
		}
		trigger = c.queuedTrigger
		c.queued = false
		c.mu.Unlock()
	}
}

// PageVisible signals that the tab became visible again.
func (c *Coordinator) PageVisible() { c.Reconcile(TriggerVisibility) }

// NetworkOnline signals that connectivity returned.
func (c *Coordinator) NetworkOnline() { c.Reconcile(TriggerOnline) }

// Refresh runs a viewer-initiated reconcile. Unlike background triggers,
// its fetch failures surface a visible banner.
func (c *Coordinator) Refresh() { c.Reconcile(TriggerManual) }

// SubmitCredential evaluates an entered secret against the current policy
// and, on success, immediately reconciles so the dashboard appears without
// waiting for the next trigger.
func (c *Coordinator) SubmitCredential(entered string) error {
	snap, ok := c.state.Settings()
	if !ok {
		return ErrNoPolicy
	}
	if _, err := c.engine.SubmitCredential(snap, entered); err != nil {
		return err
	}
	c.Reconcile(TriggerManual)
	return nil
}

// OpenSection navigates to a section, re-rendering and recording the view.
func (c *Coordinator) OpenSection(sectionID string) {
	c.state.SetCurrentSection(sectionID)
	snap, ok := c.state.Settings()
	if !ok {
		return
	}
	c.renderer.RenderSection(sectionID, c.viewData(snap))
	c.tracker.TrackSectionView(sectionID)
}

// OpenDocument records that the viewer opened a document.
func (c *Coordinator) OpenDocument(doc backend.Document) {
	c.tracker.TrackDocumentClick(doc)
}

// Logout returns the client to its initial state: session closed, unlock
// proofs for the current credentials removed, identity discarded, cached
// content dropped. The visitor form is shown for the next viewer.
func (c *Coordinator) Logout(ctx context.Context) {
	c.tracker.End(ctx)
	if snap, ok := c.state.Settings(); ok {
		c.engine.ClearProofs(snap)
	}
	if err := c.local.DeleteIdentity(); err != nil {
		c.logger.Warn("failed to discard identity", "error", err)
	}
	c.state.reset()
	authorizedGauge.Set(0)
	c.renderer.HideGate()
	c.renderer.ShowVisitorForm()
	c.logger.Info("viewer logged out")
}

// Close stops the poll timer and the push feed. In-flight passes finish on
// their own.
func (c *Coordinator) Close() error {
	c.pollMu.Lock()
	if c.pollStop != nil {
		close(c.pollStop)
		c.pollStop = nil
	}
	c.pollMu.Unlock()

	if c.feed != nil {
		return c.feed.Close()
	}
	return nil
}

// --- One reconciliation pass ------------------------------------------------

func (c *Coordinator) pass(ctx context.Context, trigger Trigger) {
	timer := prometheus.NewTimer(reconcileDurationSeconds)
	defer timer.ObserveDuration()
	defer reconcilePassesTotal.WithLabelValues(string(trigger)).Inc()

	manual := trigger == TriggerManual
	c.renderer.ShowSyncIndicator(true)
	defer c.renderer.ShowSyncIndicator(false)

	identity, err := c.local.LoadIdentity()
	if err != nil {
		// No identity yet: collection precedes any evaluation.
		c.renderer.ShowVisitorForm()
		return
	}

	snap, err := c.source.FetchSettings(ctx)
	if err != nil {
		fetchFailuresTotal.WithLabelValues("settings").Inc()
		if manual {
			c.renderer.ShowBanner(view.BannerSyncFailed, "Could not refresh the data room. Please try again.")
			c.logger.Warn("settings fetch failed", "trigger", trigger, "error", err)
		} else {
			// Background failure: stale but usable beats locked out.
			c.logger.Debug("settings fetch failed", "trigger", trigger, "error", err)
		}
		return
	}
	c.state.setSettings(snap)

	c.engine.AutoUnlockFromURL(snap, c.page)

	var (
		docs     []backend.Document
		notes    []backend.Note
		docsErr  error
		notesErr error
	)
	var g errgroup.Group
	g.Go(func() error { docs, docsErr = c.source.FetchDocuments(ctx); return nil })
	g.Go(func() error { notes, notesErr = c.source.FetchNotes(ctx); return nil })
	_ = g.Wait()

	if docsErr != nil {
		fetchFailuresTotal.WithLabelValues("documents").Inc()
		c.logger.Debug("document fetch failed", "error", docsErr)
	}
	if notesErr != nil {
		fetchFailuresTotal.WithLabelValues("notes").Inc()
		c.logger.Debug("note fetch failed", "error", notesErr)
	}
	if manual && (docsErr != nil || notesErr != nil) {
		c.renderer.ShowBanner(view.BannerSyncFailed, "Some content could not be refreshed.")
	}

	dec := c.engine.Evaluate(snap)
	switch dec.State {
	case access.StateBlocked:
		// Cached content is kept so restoration re-renders instantly.
		// Push/poll re-establishment is suspended, but handles already
		// running stay up: one of them delivers the recovery trigger.
		authorizedGauge.Set(0)
		c.renderer.HideGate()
		c.renderer.ShowStatusBlocker(dec.Status)
		c.logger.Info("room blocked", "status", dec.Status, "trigger", trigger)

	case access.StateAuthorized:
		authorizedGauge.Set(1)
		c.commitContent(docs, docsErr, notes, notesErr)
		c.renderer.HideStatusBlocker()
		c.renderer.HideGate()
		if section := c.state.CurrentSection(); section != "" {
			c.renderer.RenderSection(section, c.viewData(snap))
		} else {
			c.renderer.RenderDashboard(c.viewData(snap))
		}
		c.tracker.Begin(identity)
		c.ensurePush()
		c.ensurePoll()

	default:
		authorizedGauge.Set(0)
		c.renderer.HideStatusBlocker()
		c.renderer.ShowGate(dec.Mode, view.GateMessage(dec))
	}
}

func (c *Coordinator) commitContent(docs []backend.Document, docsErr error, notes []backend.Note, notesErr error) {
	if docsErr != nil {
		docs = nil
	}
	if notesErr != nil {
		notes = nil
	}
	c.state.setContent(docs, notes)
}

func (c *Coordinator) viewData(snap settings.Snapshot) view.Data {
	sections, err := settings.Sections()
	if err != nil {
		c.logger.Error("section catalog unavailable", "error", err)
	}
	return view.Data{
		ProjectName:       snap.Get(settings.KeyProjectName),
		ProjectSubtitle:   snap.Get(settings.KeyProjectSubtitle),
		Capacity:          snap.Get(settings.KeyCapacity),
		TargetNTP:         snap.Get(settings.KeyTargetNTP),
		OverallProgress:   snap.OverallProgress(),
		ShowEmptySections: snap.ShowEmptySections(),
		Theme:             c.local.Theme(),
		Sections:          sections,
		Documents:         c.state.Documents(),
		Notes:             c.state.Notes(),
	}
}

// ensurePush establishes the realtime feed if it is not already active.
func (c *Coordinator) ensurePush() {
	if c.feed == nil || c.feed.Active() {
		return
	}
	err := c.feed.Subscribe(context.Background(), func(ev push.Event) {
		// Never block the feed's read loop on a pass.
		go c.Reconcile(TriggerPush)
	})
	if err != nil {
		// Silent by contract: the poll timer covers for a dead feed.
		c.logger.Warn("push subscription failed", "error", err)
	}
}

// ensurePoll starts the fallback poll timer if it is not already running.
func (c *Coordinator) ensurePoll() {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()
	if c.pollStop != nil {
		return
	}
	stop := make(chan struct{})
	c.pollStop = stop

	go func() {
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.Reconcile(TriggerPoll)
			}
		}
	}()
}

// pollActive reports whether the poll timer is running. Test hook.
func (c *Coordinator) pollActive() bool {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()
	return c.pollStop != nil
}
