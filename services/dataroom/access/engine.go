// Copyright (C) 2026 ReDewable Energy (engineering@redewable.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package access derives the viewer's authorization state from the current
// policy snapshot, the locally stored unlock proofs, and credentials
// supplied via the page URL or the gate form.
//
// Evaluation is a pure function of snapshot plus proofs; it cannot fail.
// Failures belong to the fetch that produced the snapshot and to the
// storage side effects of unlocking, both of which degrade rather than
// crash (see HasUnlockProof in localstore).
package access

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/redewable/dataroom/services/dataroom/pageurl"
	"github.com/redewable/dataroom/services/dataroom/settings"
)

var (
	// ErrCredentialMismatch indicates the entered secret does not match
	// the configured one. Surfaced inline in the gate form. No proof is
	// created or deleted, and there is no lockout: any number of attempts
	// is permitted.
	ErrCredentialMismatch = errors.New("credential does not match")

	// ErrPolicyMisconfigured indicates a restricted mode is selected but
	// no secret is set. The administrator must act, not the viewer.
	ErrPolicyMisconfigured = errors.New("access mode configured without a credential")
)

// State is the outcome of one policy evaluation.
type State int

const (
	// StateBlocked: operational status forces the blocked view. Dominates
	// everything, including an already-unlocked viewer.
	StateBlocked State = iota

	// StateAuthorized: the viewer may see content.
	StateAuthorized

	// StateCredentialRequired: the gate form must be shown for Decision.Mode.
	StateCredentialRequired

	// StateMisconfigured: Decision.Mode requires a secret but none is set.
	StateMisconfigured
)

func (s State) String() string {
	switch s {
	case StateBlocked:
		return "blocked"
	case StateAuthorized:
		return "authorized"
	case StateCredentialRequired:
		return "credential_required"
	case StateMisconfigured:
		return "misconfigured"
	default:
		return "unknown"
	}
}

// Decision carries the evaluation outcome. Status is set for StateBlocked;
// Mode is set for StateCredentialRequired and StateMisconfigured.
type Decision struct {
	State  State
	Status settings.Status
	Mode   settings.AccessMode
}

// Authorized is shorthand for State == StateAuthorized.
func (d Decision) Authorized() bool {
	return d.State == StateAuthorized
}

// ProofStore is the subset of the local store the engine needs. Proofs are
// keyed by (mode, credential value); see localstore for the invalidation
// consequences of that keying.
type ProofStore interface {
	AddUnlockProof(mode settings.AccessMode, credential string) error
	HasUnlockProof(mode settings.AccessMode, credential string) bool
	RemoveUnlockProof(mode settings.AccessMode, credential string) error
	RemoveLegacyUnlockProof() error
}

// Engine evaluates access policy. Safe for concurrent use; the only
// internal state is the once-per-page-load auto-unlock guard.
type Engine struct {
	proofs ProofStore
	logger *slog.Logger

	mu             sync.Mutex
	autoUnlockDone bool
}

// NewEngine creates an Engine over the given proof store.
func NewEngine(proofs ProofStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{proofs: proofs, logger: logger}
}

// Evaluate decides the viewer's state for the given snapshot. First match
// wins: operational status dominates access mode, which dominates
// credential state.
func (e *Engine) Evaluate(snap settings.Snapshot) Decision {
	if status := snap.Status(); status.Blocking() {
		return Decision{State: StateBlocked, Status: status}
	}

	switch mode := snap.AccessMode(); mode {
	case settings.ModeOpen:
		return Decision{State: StateAuthorized}

	case settings.ModeToken:
		tok := snap.LinkToken()
		if tok == "" {
			return Decision{State: StateMisconfigured, Mode: settings.ModeToken}
		}
		if e.proofs.HasUnlockProof(settings.ModeToken, tok) {
			return Decision{State: StateAuthorized}
		}
		return Decision{State: StateCredentialRequired, Mode: settings.ModeToken}

	default: // password
		// A configured token always satisfies password mode too; it is a
		// universal override.
		if tok := snap.LinkToken(); tok != "" && e.proofs.HasUnlockProof(settings.ModeToken, tok) {
			return Decision{State: StateAuthorized}
		}
		pw := snap.Password()
		if pw != "" && e.proofs.HasUnlockProof(settings.ModePassword, pw) {
			return Decision{State: StateAuthorized}
		}
		if pw == "" {
			// Password mode with no password means no restriction.
			return Decision{State: StateAuthorized}
		}
		return Decision{State: StateCredentialRequired, Mode: settings.ModePassword}
	}
}

// AutoUnlockFromURL creates unlock proofs from credential-bearing query
// parameters (token, pw, access) when they match the configured secrets,
// then strips those parameters from the visible URL so the now-current
// address does not re-expose them.
//
// Runs at most once per page load and must precede evaluation so the same
// load can transition directly to authorized. Returns whether a proof was
// created.
func (e *Engine) AutoUnlockFromURL(snap settings.Snapshot, page *pageurl.Page) bool {
	if page == nil {
		return false
	}

	e.mu.Lock()
	if e.autoUnlockDone {
		e.mu.Unlock()
		return false
	}
	e.autoUnlockDone = true
	e.mu.Unlock()

	tokenParam := page.Query("token")
	pwParam := page.Query("pw")
	if pwParam == "" {
		pwParam = page.Query("access")
	}

	unlocked := false

	if tok := snap.LinkToken(); tok != "" && tokenParam != "" && credentialEqual(tokenParam, tok) {
		if err := e.proofs.AddUnlockProof(settings.ModeToken, tok); err != nil {
			e.logger.Warn("failed to store token unlock proof", "error", err)
		} else {
			unlocked = true
		}
	}

	if !unlocked {
		if pw := snap.Password(); pw != "" && pwParam != "" && credentialEqual(pwParam, pw) {
			if err := e.proofs.AddUnlockProof(settings.ModePassword, pw); err != nil {
				e.logger.Warn("failed to store password unlock proof", "error", err)
			} else {
				unlocked = true
			}
		}
	}

	if unlocked {
		page.Strip("pw", "access", "token")
		e.logger.Info("auto-unlocked from link")
	}
	return unlocked
}

// ResetAutoUnlock re-arms the once-per-load guard. Called on logout, which
// behaves like a fresh page load for evaluation purposes.
func (e *Engine) ResetAutoUnlock() {
	e.mu.Lock()
	e.autoUnlockDone = false
	e.mu.Unlock()
}

// SubmitCredential accepts a secret entered in the gate form under the
// mode in effect at submission time. On match it stores the corresponding
// proof and returns the re-evaluated decision. On mismatch it returns
// ErrCredentialMismatch without touching any proofs.
func (e *Engine) SubmitCredential(snap settings.Snapshot, entered string) (Decision, error) {
	if snap.Status().Blocking() {
		return e.Evaluate(snap), nil
	}

	switch mode := snap.AccessMode(); mode {
	case settings.ModeOpen:
		return Decision{State: StateAuthorized}, nil

	case settings.ModeToken:
		tok := snap.LinkToken()
		if tok == "" {
			return Decision{State: StateMisconfigured, Mode: mode}, ErrPolicyMisconfigured
		}
		if !credentialEqual(entered, tok) {
			return Decision{State: StateCredentialRequired, Mode: mode}, ErrCredentialMismatch
		}
		if err := e.proofs.AddUnlockProof(settings.ModeToken, tok); err != nil {
			e.logger.Warn("failed to store token unlock proof", "error", err)
		}
		return e.Evaluate(snap), nil

	default: // password
		// The link token doubles as a valid entry in password mode.
		if tok := snap.LinkToken(); tok != "" && credentialEqual(entered, tok) {
			if err := e.proofs.AddUnlockProof(settings.ModeToken, tok); err != nil {
				e.logger.Warn("failed to store token unlock proof", "error", err)
			}
			return e.Evaluate(snap), nil
		}
		pw := snap.Password()
		if pw == "" {
			return Decision{State: StateAuthorized}, nil
		}
		if !credentialEqual(entered, pw) {
			return Decision{State: StateCredentialRequired, Mode: settings.ModePassword}, ErrCredentialMismatch
		}
		if err := e.proofs.AddUnlockProof(settings.ModePassword, pw); err != nil {
			e.logger.Warn("failed to store password unlock proof", "error", err)
		}
		return e.Evaluate(snap), nil
	}
}

// ClearProofs removes the proofs matching the snapshot's current
// credentials plus the legacy unlock flag. Proofs keyed to credentials no
// longer in the snapshot are unreachable anyway and left to rot.
func (e *Engine) ClearProofs(snap settings.Snapshot) {
	if pw := snap.Password(); pw != "" {
		if err := e.proofs.RemoveUnlockProof(settings.ModePassword, pw); err != nil {
			e.logger.Warn("failed to remove password unlock proof", "error", err)
		}
	}
	if tok := snap.LinkToken(); tok != "" {
		if err := e.proofs.RemoveUnlockProof(settings.ModeToken, tok); err != nil {
			e.logger.Warn("failed to remove token unlock proof", "error", err)
		}
	}
	if err := e.proofs.RemoveLegacyUnlockProof(); err != nil {
		e.logger.Warn("failed to remove legacy unlock proof", "error", err)
	}
	e.ResetAutoUnlock()
}

// credentialEqual is the single seam where entered secrets are compared to
// configured ones. Both sides are trimmed; comparison is exact beyond
// that. A future move to hashed or signed tokens replaces this function
// only.
func credentialEqual(entered, configured string) bool {
	configured = strings.TrimSpace(configured)
	return configured != "" && strings.TrimSpace(entered) == configured
}
