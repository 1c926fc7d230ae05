// Copyright (C) 2026 ReDewable Energy (engineering@redewable.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package client assembles the data room viewer: local store, backend
// client, access engine, session tracker, push feed, and the sync
// coordinator, wired together behind the handful of operations the outer
// surface (page or CLI) actually invokes.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redewable/dataroom/pkg/validation"
	"github.com/redewable/dataroom/services/dataroom/access"
	"github.com/redewable/dataroom/services/dataroom/backend"
	"github.com/redewable/dataroom/services/dataroom/coordinator"
	"github.com/redewable/dataroom/services/dataroom/localstore"
	"github.com/redewable/dataroom/services/dataroom/pageurl"
	"github.com/redewable/dataroom/services/dataroom/push"
	"github.com/redewable/dataroom/services/dataroom/session"
	"github.com/redewable/dataroom/services/dataroom/view"
)

// Options configures a Client.
type Options struct {
	// DataDir is the directory for the local store. Ignored when InMemory.
	DataDir string

	// InMemory runs the local store without disk persistence.
	InMemory bool

	// BackendURL and BackendKey override configuration discovery when both
	// are set.
	BackendURL string
	BackendKey string

	// PageURL is the address the client was loaded from, carrying optional
	// sbUrl/sbKey configuration and pw/access/token credential parameters.
	PageURL string

	// History receives visible-URL rewrites after parameters are consumed.
	History pageurl.History

	// PollInterval overrides the fallback poll period.
	PollInterval time.Duration

	// Renderer draws the room. Nil means headless (view.Nop).
	Renderer view.Renderer

	// Env is the environment captured on session start.
	Env session.Env

	Logger *slog.Logger
}

// Client is one assembled viewer instance.
type Client struct {
	store    *localstore.Store
	backend  *backend.Client
	coord    *coordinator.Coordinator
	tracker  *session.Tracker
	renderer view.Renderer
	page     *pageurl.Page
	logger   *slog.Logger
}

// New builds and wires a Client. The backend endpoint is discovered in
// order: explicit options, sbUrl/sbKey page parameters (persisted and
// stripped), then the previously persisted pair. A client with no endpoint
// is still functional enough to show the configuration-missing banner.
func New(opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = view.Nop{}
	}

	storeOpts := localstore.DefaultOptions(opts.DataDir)
	if opts.InMemory {
		storeOpts = localstore.InMemoryOptions()
	}
	store, err := localstore.Open(storeOpts)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	var page *pageurl.Page
	if opts.PageURL != "" {
		page, err = pageurl.New(opts.PageURL, opts.History)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("parse page URL: %w", err)
		}
	}

	cfg, configured := discoverConfig(opts, page, store, logger)
	if !configured {
		renderer.ShowBanner(view.BannerConfigMissing,
			"No backing store is configured. Open the link provided by the administrator.")
	}

	bc := backend.NewClient(backend.Config{URL: cfg.URL, Key: cfg.Key}, logger)

	var feed coordinator.Feed
	if configured {
		sub, err := push.NewSubscriber(cfg.URL, cfg.Key, logger)
		if err != nil {
			logger.Warn("realtime feed unavailable", "error", err)
		} else {
			feed = sub
		}
	}

	engine := access.NewEngine(store, logger)
	tracker := session.NewTracker(bc, store, opts.Env, logger)
	coord := coordinator.New(coordinator.Config{PollInterval: opts.PollInterval},
		bc, feed, engine, tracker, renderer, store, page, logger)

	return &Client{
		store:    store,
		backend:  bc,
		coord:    coord,
		tracker:  tracker,
		renderer: renderer,
		page:     page,
		logger:   logger,
	}, nil
}

// discoverConfig resolves the backend endpoint pair. A pair arriving via
// page parameters is persisted for future loads and stripped from the
// visible URL.
func discoverConfig(opts Options, page *pageurl.Page, store *localstore.Store, logger *slog.Logger) (localstore.BackendConfig, bool) {
	if opts.BackendURL != "" && opts.BackendKey != "" {
		return localstore.BackendConfig{URL: opts.BackendURL, Key: opts.BackendKey}, true
	}

	if page != nil {
		params := page.Consume("sbUrl", "sbKey")
		if params["sbUrl"] != "" && params["sbKey"] != "" {
			cfg := localstore.BackendConfig{URL: params["sbUrl"], Key: params["sbKey"]}
			if err := store.SaveBackendConfig(cfg); err != nil {
				logger.Warn("failed to persist backend config", "error", err)
			}
			return cfg, true
		}
	}

	cfg, err := store.LoadBackendConfig()
	if err != nil {
		return localstore.BackendConfig{}, false
	}
	return cfg, true
}

// Boot runs the initial reconcile. Shows the visitor form when no identity
// is stored; otherwise evaluates access and renders. Failures on this
// first pass surface a banner like any viewer-initiated refresh.
func (c *Client) Boot() {
	c.coord.Refresh()
}

// SubmitIdentity validates and persists the visitor identity, then
// reconciles so the access evaluation proceeds immediately.
func (c *Client) SubmitIdentity(name, email, company string) error {
	if err := validation.ValidateIdentity(name, email, company); err != nil {
		return err
	}
	if err := c.store.SaveIdentity(localstore.Identity{Name: name, Email: email, Company: company}); err != nil {
		return fmt.Errorf("persist identity: %w", err)
	}
	c.renderer.HideVisitorForm()
	c.coord.Refresh()
	return nil
}

// SubmitCredential forwards a gate form entry.
func (c *Client) SubmitCredential(entered string) error {
	return c.coord.SubmitCredential(entered)
}

// Refresh runs a viewer-initiated reconcile.
func (c *Client) Refresh() { c.coord.Refresh() }

// PageVisible signals the tab became visible.
func (c *Client) PageVisible() { c.coord.PageVisible() }

// NetworkOnline signals connectivity returned.
func (c *Client) NetworkOnline() { c.coord.NetworkOnline() }

// OpenSection navigates to a section.
func (c *Client) OpenSection(sectionID string) { c.coord.OpenSection(sectionID) }

// OpenDocument records a document open.
func (c *Client) OpenDocument(doc backend.Document) { c.coord.OpenDocument(doc) }

// Logout ends the session and returns to identity collection.
func (c *Client) Logout(ctx context.Context) { c.coord.Logout(ctx) }

// Theme returns the persisted theme preference.
func (c *Client) Theme() string { return c.store.Theme() }

// SetTheme persists the theme preference.
func (c *Client) SetTheme(theme string) error { return c.store.SetTheme(theme) }

// State exposes the cached application state for the outer surface.
func (c *Client) State() *coordinator.AppState { return c.coord.State() }

// Close ends the session best-effort and releases every resource.
func (c *Client) Close(ctx context.Context) error {
	c.tracker.End(ctx)
	c.tracker.Flush()
	if err := c.coord.Close(); err != nil {
		c.logger.Warn("failed to stop sync", "error", err)
	}
	return c.store.Close()
}
