// Copyright (C) 2026 ReDewable Energy (engineering@redewable.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/redewable/dataroom/services/dataroom/settings"
)

// ErrNotFound indicates the requested record has never been stored, or has
// expired and been discarded.
var ErrNotFound = errors.New("record not found")

// SessionTTL bounds how long a persisted session descriptor stays valid.
// Validated on every read; an expired record is deleted and reported as
// not found.
const SessionTTL = 7 * 24 * time.Hour

// Key layout. Unlock proofs embed the credential value in the key, so a
// credential change implicitly invalidates old proofs: they are simply
// never looked up again.
const (
	keyBackendConfig = "config/backend"
	keyIdentity      = "visitor/identity"
	keySession       = "session/current"
	keyTheme         = "prefs/theme"
	unlockPrefix     = "unlock/v2/"
	legacyUnlockKey  = "unlock/v1"
)

// BackendConfig is the persisted backing-store endpoint pair, captured
// from an admin-shared link on first load.
type BackendConfig struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// Identity is the visitor identity collected by the gate form. Persisted
// with no TTL; it survives sessions and logouts of other state.
type Identity struct {
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Company    string    `json:"company,omitempty"`
	FirstVisit time.Time `json:"first_visit"`
}

// SessionRecord is the persisted session descriptor.
type SessionRecord struct {
	ID        string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
	SavedAt   time.Time `json:"saved_at"`
}

// Store is the device-local persistence layer. Safe for concurrent use;
// BadgerDB serializes conflicting writes internally.
type Store struct {
	db  *badger.DB
	gc  *gcRunner
	now func() time.Time
}

// Open opens (creating if necessary) the local store.
func Open(opts Options) (*Store, error) {
	db, err := openDB(opts)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, now: time.Now}

	if opts.GCInterval > 0 && !opts.InMemory {
		s.gc = newGCRunner(db, opts.GCInterval, opts.GCDiscardRatio, opts.Logger)
		s.gc.start()
	}
	return s, nil
}

// OpenInMemory opens a throwaway store for tests.
func OpenInMemory() (*Store, error) {
	return Open(InMemoryOptions())
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.stop()
	}
	return s.db.Close()
}

// SetClock overrides the time source. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// --- Backend configuration -------------------------------------------------

// SaveBackendConfig persists the endpoint pair.
func (s *Store) SaveBackendConfig(cfg BackendConfig) error {
	return s.putJSON(keyBackendConfig, cfg)
}

// LoadBackendConfig returns the stored endpoint pair, or ErrNotFound.
func (s *Store) LoadBackendConfig() (BackendConfig, error) {
	var cfg BackendConfig
	if err := s.getJSON(keyBackendConfig, &cfg); err != nil {
		return BackendConfig{}, err
	}
	return cfg, nil
}

// --- Visitor identity ------------------------------------------------------

// SaveIdentity persists the visitor identity with no TTL.
func (s *Store) SaveIdentity(id Identity) error {
	if id.FirstVisit.IsZero() {
		id.FirstVisit = s.now().UTC()
	}
	return s.putJSON(keyIdentity, id)
}

// LoadIdentity returns the stored identity, or ErrNotFound.
func (s *Store) LoadIdentity() (Identity, error) {
	var id Identity
	if err := s.getJSON(keyIdentity, &id); err != nil {
		return Identity{}, err
	}
	return id, nil
}

// DeleteIdentity removes the stored identity.
func (s *Store) DeleteIdentity() error {
	return s.delete(keyIdentity)
}

// --- Session descriptor ----------------------------------------------------

// SaveSession persists the session descriptor, stamping SavedAt for TTL
// validation on read.
func (s *Store) SaveSession(rec SessionRecord) error {
	rec.SavedAt = s.now().UTC()
	return s.putJSON(keySession, rec)
}

// LoadSession returns the stored session descriptor. A record older than
// SessionTTL is deleted and reported as ErrNotFound.
func (s *Store) LoadSession() (SessionRecord, error) {
	var rec SessionRecord
	if err := s.getJSON(keySession, &rec); err != nil {
		return SessionRecord{}, err
	}
	if s.now().Sub(rec.SavedAt) > SessionTTL {
		_ = s.delete(keySession)
		return SessionRecord{}, ErrNotFound
	}
	return rec, nil
}

// DeleteSession removes the stored session descriptor.
func (s *Store) DeleteSession() error {
	return s.delete(keySession)
}

// --- Unlock proofs ---------------------------------------------------------

// unlockKey builds the proof key for a mode/credential pair. The
// credential value is part of the key on purpose: when the administrator
// rotates the secret, existing proofs stop matching without any cleanup.
func unlockKey(mode settings.AccessMode, credential string) string {
	return unlockPrefix + strings.ToLower(string(mode)) + ":" + strings.TrimSpace(credential)
}

// AddUnlockProof records that this exact credential value was accepted for
// this mode. Proofs carry no TTL.
func (s *Store) AddUnlockProof(mode settings.AccessMode, credential string) error {
	if strings.TrimSpace(credential) == "" {
		return nil // nothing to prove against
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(unlockKey(mode, credential)), []byte("true"))
	})
}

// HasUnlockProof reports whether a proof exists for the exact
// mode/credential pair. Storage errors degrade to "no proof": the viewer
// re-enters a credential rather than seeing a crash.
func (s *Store) HasUnlockProof(mode settings.AccessMode, credential string) bool {
	if strings.TrimSpace(credential) == "" {
		return false
	}
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(unlockKey(mode, credential)))
		return err
	})
	return err == nil
}

// RemoveUnlockProof deletes the proof for the exact mode/credential pair.
func (s *Store) RemoveUnlockProof(mode settings.AccessMode, credential string) error {
	if strings.TrimSpace(credential) == "" {
		return nil
	}
	return s.delete(unlockKey(mode, credential))
}

// RemoveLegacyUnlockProof purges the pre-versioned unlock flag older
// deployments wrote. Called on logout alongside the current proofs.
func (s *Store) RemoveLegacyUnlockProof() error {
	return s.delete(legacyUnlockKey)
}

// --- Theme preference ------------------------------------------------------

// Theme returns the persisted theme preference, defaulting to "dark".
func (s *Store) Theme() string {
	var theme string
	if err := s.getJSON(keyTheme, &theme); err != nil || theme == "" {
		return "dark"
	}
	return theme
}

// SetTheme persists the theme preference.
func (s *Store) SetTheme(theme string) error {
	return s.putJSON(keyTheme, theme)
}

// --- Internal helpers ------------------------------------------------------

func (s *Store) putJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

func (s *Store) getJSON(key string, v any) error {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	return nil
}

func (s *Store) delete(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
