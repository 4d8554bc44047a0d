package config

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/spf13/afero"
)

// Snapshot is an immutable view of configuration taken at the start of a request.
type Snapshot struct {
	Config   *Config
	Settings Settings
	Version  uint64
}

// Store publishes snapshots. Readers never lock; writers are serialized.
type Store struct {
	cur  atomic.Pointer[Snapshot]
	mu   sync.Mutex
	fs   afero.Fs
	path string
}

// NewStore loads the settings file named by cfg and publishes the first snapshot.
func NewStore(cfg *Config, fsys afero.Fs) (*Store, error) {
	settings, err := LoadSettings(fsys, cfg.SettingsFile)
	if err != nil {
		return nil, err
	}
	s := &Store{fs: fsys, path: cfg.SettingsFile}
	s.cur.Store(&Snapshot{Config: cfg, Settings: settings, Version: 1})
	return s, nil
}

func (s *Store) Snapshot() *Snapshot { return s.cur.Load() }

// UpdateSettings applies fn to a copy of the current settings, persists the result,
// and publishes it as a new snapshot. Snapshots already handed out are unaffected.
func (s *Store) UpdateSettings(fn func(*Settings)) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.cur.Load()
	next := prev.Settings
	fn(&next)
	next = next.withDefaults()
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if err := SaveSettings(s.fs, s.path, next); err != nil {
		return nil, err
	}

	snap := &Snapshot{Config: prev.Config, Settings: next, Version: prev.Version + 1}
	s.cur.Store(snap)
	return snap, nil
}
