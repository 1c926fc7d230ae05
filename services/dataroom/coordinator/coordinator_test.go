// Copyright (C) 2026 ReDewable Energy (engineering@redewable.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redewable/dataroom/services/dataroom/access"
	"github.com/redewable/dataroom/services/dataroom/backend"
	"github.com/redewable/dataroom/services/dataroom/localstore"
	"github.com/redewable/dataroom/services/dataroom/push"
	"github.com/redewable/dataroom/services/dataroom/settings"
	"github.com/redewable/dataroom/services/dataroom/view"
)

// fakeSource serves canned content and can hold a pass open to provoke
// trigger overlap.
type fakeSource struct {
	mu       sync.Mutex
	values   map[string]string
	docs     []backend.Document
	notes    []backend.Note
	settErr  error
	docsErr  error
	fetches  int
	gate     chan struct{} // when set, FetchSettings blocks until closed
	gateOnce sync.Once
}

func (f *fakeSource) setValues(v map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = v
}

func (f *fakeSource) FetchSettings(context.Context) (settings.Snapshot, error) {
	f.mu.Lock()
	gate := f.gate
	f.fetches++
	err := f.settErr
	values := f.values
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return settings.Snapshot{}, err
	}
	return settings.NewSnapshot(values), nil
}

func (f *fakeSource) FetchDocuments(context.Context) ([]backend.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs, f.docsErr
}

func (f *fakeSource) FetchNotes(context.Context) ([]backend.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.notes, nil
}

func (f *fakeSource) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

type fakeFeed struct {
	mu         sync.Mutex
	subscribes int
	active     bool
	handler    push.Handler
}

func (f *fakeFeed) Subscribe(_ context.Context, h push.Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes++
	f.active = true
	f.handler = h
	return nil
}

func (f *fakeFeed) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakeFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = false
	return nil
}

func (f *fakeFeed) subscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes
}

type fakeTracker struct {
	mu     sync.Mutex
	begins int
	ends   int
}

func (f *fakeTracker) Begin(localstore.Identity)      { f.mu.Lock(); f.begins++; f.mu.Unlock() }
func (f *fakeTracker) End(context.Context)            { f.mu.Lock(); f.ends++; f.mu.Unlock() }
func (f *fakeTracker) TrackSectionView(string)        {}
func (f *fakeTracker) TrackDocumentClick(backend.Document) {}

func (f *fakeTracker) beginCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.begins
}

type harness struct {
	coord    *Coordinator
	source   *fakeSource
	feed     *fakeFeed
	tracker  *fakeTracker
	renderer *view.Recording
	store    *localstore.Store
}

func newHarness(t *testing.T, values map[string]string) *harness {
	t.Helper()

	store, err := localstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.SaveIdentity(localstore.Identity{Name: "Jane Smith", Email: "jane@company.com"}))

	source := &fakeSource{
		values: values,
		docs:   []backend.Document{{ID: 1, Name: "Teaser", Section: "overview"}},
		notes:  []backend.Note{{ID: 1, Section: "overview", Content: "note"}},
	}
	feed := &fakeFeed{}
	tracker := &fakeTracker{}
	renderer := &view.Recording{}
	engine := access.NewEngine(store, nil)

	coord := New(Config{PollInterval: time.Hour}, source, feed, engine, tracker, renderer, store, nil, nil)
	t.Cleanup(func() { _ = coord.Close() })

	return &harness{coord: coord, source: source, feed: feed, tracker: tracker, renderer: renderer, store: store}
}

var openRoom = map[string]string{settings.KeyAccessMode: "open"}

func TestReconcile_AuthorizedRendersAndStartsHandles(t *testing.T) {
	h := newHarness(t, openRoom)

	h.coord.Reconcile(TriggerManual)

	data, ok := h.renderer.LastDashboard()
	require.True(t, ok)
	require.Len(t, data.Documents, 1)
	assert.Equal(t, "Teaser", data.Documents[0].Name)

	assert.True(t, h.feed.Active())
	assert.True(t, h.coord.pollActive())
	assert.Equal(t, 1, h.tracker.beginCount())
}

func TestReconcile_SetupIdempotent(t *testing.T) {
	h := newHarness(t, openRoom)

	h.coord.Reconcile(TriggerManual)
	h.coord.Reconcile(TriggerPoll)
	h.coord.Reconcile(TriggerVisibility)

	assert.Equal(t, 1, h.feed.subscribeCount(), "exactly one subscription")
	assert.True(t, h.coord.pollActive())
}

func TestReconcile_CoalescesTriggerBurst(t *testing.T) {
	h := newHarness(t, openRoom)
	gate := make(chan struct{})
	h.source.gate = gate

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.coord.Reconcile(TriggerManual)
	}()

	// Let the first pass reach the blocked fetch, then storm it.
	require.Eventually(t, func() bool { return h.source.fetchCount() == 1 }, time.Second, time.Millisecond)
	h.coord.Reconcile(TriggerPush)
	h.coord.Reconcile(TriggerPoll)
	h.coord.Reconcile(TriggerVisibility)

	h.source.gateOnce.Do(func() { close(gate) })
	wg.Wait()

	// One original pass plus exactly one follow-up for the whole burst.
	assert.Equal(t, 2, h.source.fetchCount())
}

func TestReconcile_MissingIdentityShowsVisitorForm(t *testing.T) {
	h := newHarness(t, openRoom)
	require.NoError(t, h.store.DeleteIdentity())

	h.coord.Reconcile(TriggerManual)

	assert.Contains(t, h.renderer.CallLog(), "visitor_form")
	assert.Zero(t, h.source.fetchCount(), "no fetch before identity collection")
}

func TestReconcile_CredentialRequiredShowsGate(t *testing.T) {
	h := newHarness(t, map[string]string{
		settings.KeyAccessMode: "password",
		settings.KeyPassword:   "sunrise7",
	})

	h.coord.Reconcile(TriggerManual)

	require.Len(t, h.renderer.Gates, 1)
	assert.Equal(t, settings.ModePassword, h.renderer.Gates[0])
	assert.False(t, h.feed.Active(), "no push before authorization")
	assert.False(t, h.coord.pollActive(), "no poll before authorization")
}

func TestSubmitCredential_UnlocksAndReconciles(t *testing.T) {
	h := newHarness(t, map[string]string{
		settings.KeyAccessMode: "password",
		settings.KeyPassword:   "sunrise7",
	})

	h.coord.Reconcile(TriggerManual)

	err := h.coord.SubmitCredential("wrong")
	assert.ErrorIs(t, err, access.ErrCredentialMismatch)

	require.NoError(t, h.coord.SubmitCredential(" sunrise7 "))
	_, ok := h.renderer.LastDashboard()
	assert.True(t, ok, "dashboard rendered after unlock")
	assert.True(t, h.feed.Active())
}

func TestReconcile_BlockedKeepsCachedContentAndHandles(t *testing.T) {
	h := newHarness(t, openRoom)
	h.coord.Reconcile(TriggerManual)
	require.True(t, h.coord.pollActive())

	// Status regresses remotely; the next poll pass blocks the view.
	h.source.setValues(map[string]string{
		settings.KeyStatus:     "maintenance",
		settings.KeyAccessMode: "open",
	})
	h.coord.Reconcile(TriggerPoll)

	require.Len(t, h.renderer.Blockers, 1)
	assert.Equal(t, settings.StatusMaintenance, h.renderer.Blockers[0])

	// Cached content survives the outage, and the poll keeps running so
	// recovery needs no external nudge.
	assert.Len(t, h.coord.State().Documents(), 1)
	assert.True(t, h.coord.pollActive())

	// Status recovers; the following pass restores the dashboard.
	dashboardsBefore := len(h.renderer.Dashboards)
	h.source.setValues(openRoom)
	h.coord.Reconcile(TriggerPoll)
	assert.Greater(t, len(h.renderer.Dashboards), dashboardsBefore)
}

func TestReconcile_ManualFailureShowsBanner(t *testing.T) {
	h := newHarness(t, openRoom)
	h.source.settErr = errors.New("connection refused")

	h.coord.Reconcile(TriggerManual)

	require.Len(t, h.renderer.Banners, 1)
	assert.Equal(t, view.BannerSyncFailed, h.renderer.Banners[0])
}

func TestReconcile_BackgroundFailureIsSilentAndKeepsCache(t *testing.T) {
	h := newHarness(t, openRoom)
	h.coord.Reconcile(TriggerManual)

	h.source.settErr = errors.New("connection refused")
	h.coord.Reconcile(TriggerPoll)

	assert.Empty(t, h.renderer.Banners, "background failures stay quiet")
	assert.Len(t, h.coord.State().Documents(), 1, "cache untouched")
}

func TestReconcile_PartialContentFailureKeepsOldSlice(t *testing.T) {
	h := newHarness(t, openRoom)
	h.coord.Reconcile(TriggerManual)

	h.source.mu.Lock()
	h.source.docsErr = errors.New("boom")
	h.source.notes = []backend.Note{{ID: 2, Section: "financials", Content: "fresh"}}
	h.source.mu.Unlock()

	h.coord.Reconcile(TriggerPoll)

	assert.Len(t, h.coord.State().Documents(), 1, "failed fetch leaves cached docs")
	require.Len(t, h.coord.State().Notes(), 1)
	assert.Equal(t, "fresh", h.coord.State().Notes()[0].Content, "successful fetch still commits")
}

func TestPushEvent_TriggersReconcile(t *testing.T) {
	h := newHarness(t, openRoom)
	h.coord.Reconcile(TriggerManual)
	before := h.source.fetchCount()

	h.feed.handler(push.Event{Table: "dataroom_documents"})

	assert.Eventually(t, func() bool { return h.source.fetchCount() > before }, time.Second, time.Millisecond)
}

func TestLogout_ReturnsToInitialState(t *testing.T) {
	h := newHarness(t, map[string]string{
		settings.KeyAccessMode: "password",
		settings.KeyPassword:   "sunrise7",
	})
	h.coord.Reconcile(TriggerManual)
	require.NoError(t, h.coord.SubmitCredential("sunrise7"))

	h.coord.Logout(context.Background())

	assert.Equal(t, 1, h.tracker.ends)
	assert.Contains(t, h.renderer.CallLog(), "visitor_form")
	assert.False(t, h.store.HasUnlockProof(settings.ModePassword, "sunrise7"))
	_, err := h.store.LoadIdentity()
	assert.ErrorIs(t, err, localstore.ErrNotFound)
	_, haveSettings := h.coord.State().Settings()
	assert.False(t, haveSettings)
}

func TestOpenSection_RendersAndTracks(t *testing.T) {
	h := newHarness(t, openRoom)
	h.coord.Reconcile(TriggerManual)

	h.coord.OpenSection("financials")

	assert.Contains(t, h.renderer.CallLog(), "section:financials")
	assert.Equal(t, "financials", h.coord.State().CurrentSection())
}
