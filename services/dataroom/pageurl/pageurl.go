// Copyright (C) 2026 ReDewable Energy (engineering@redewable.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pageurl models the page address the client was loaded with.
//
// Secrets arrive as query parameters (backend credentials, access
// passwords, link tokens). Consuming a parameter removes it from the
// visible URL through the History collaborator, so reloading or sharing
// the now-current address does not re-expose it.
package pageurl

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// History is the browser-history collaborator that rewrites the visible
// address without navigation.
type History interface {
	ReplaceState(url string)
}

// NopHistory discards address rewrites. Used by headless embeddings and
// tests that do not care about the visible URL.
type NopHistory struct{}

func (NopHistory) ReplaceState(string) {}

// Page wraps the page URL and supports destructive parameter reads.
// Safe for concurrent use.
type Page struct {
	mu   sync.Mutex
	u    *url.URL
	hist History
}

// New parses raw as the page address. A nil history defaults to NopHistory.
func New(raw string, hist History) (*Page, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	if hist == nil {
		hist = NopHistory{}
	}
	return &Page{u: u, hist: hist}, nil
}

// Query returns the trimmed value of a query parameter without consuming
// it. Absent parameters return "".
func (p *Page) Query(name string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.TrimSpace(p.u.Query().Get(name))
}

// Consume returns the trimmed values of the named parameters and strips
// every named parameter that was present from the URL. When anything was
// stripped, the rewritten address is pushed to History exactly once.
//
// Only parameters with a non-empty trimmed value appear in the returned
// map; stripping still removes empty ones.
func (p *Page) Consume(names ...string) map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()

	q := p.u.Query()
	values := make(map[string]string)
	changed := false
	for _, name := range names {
		if !q.Has(name) {
			continue
		}
		if v := strings.TrimSpace(q.Get(name)); v != "" {
			values[name] = v
		}
		q.Del(name)
		changed = true
	}
	if changed {
		p.u.RawQuery = q.Encode()
		p.hist.ReplaceState(p.u.String())
	}
	return values
}

// Strip removes the named parameters without returning their values.
func (p *Page) Strip(names ...string) {
	p.Consume(names...)
}

// String returns the current (post-consumption) page address.
func (p *Page) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.u.String()
}
