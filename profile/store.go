package profile

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// persisted is the on-disk layout. YAML keeps it human-editable for support
// and debugging.
type persisted struct {
	Enabled       bool      `yaml:"enabled"`
	ActiveProfile string    `yaml:"activeProfile"`
	Profiles      []Profile `yaml:"profiles"`
}

// Store owns the profile set and the persisted filter state. Every mutation
// is written through to disk immediately; a failed write keeps the in-memory
// change and flips the Dirty flag instead of failing the operation.
type Store struct {
	path   string
	logger *slog.Logger

	mu        sync.Mutex
	profiles  []Profile
	active    string
	enabled   bool
	dirty     bool
	lastWrite time.Time
}

// DefaultPath returns the user-scoped configuration file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "openbluefilter", "config.yaml"), nil
}

// Open loads the store at path, seeding the built-in profiles on first run
// or when the persisted data is unreadable. A missing file also triggers a
// one-time import from the legacy JSON configuration, if present. Corrupt
// data is recovered by falling back to defaults, never surfaced as fatal.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Store{path: path, logger: logger}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if legacy, ok := loadLegacy(logger); ok {
			s.adopt(legacy)
			logger.Info("imported legacy configuration", "profiles", len(s.profiles))
		} else {
			s.adopt(persisted{ActiveProfile: DefaultActiveID})
			logger.Info("no configuration found, seeding defaults", "path", path)
		}
		s.persistLocked()
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		var p persisted
		if err := yaml.Unmarshal(data, &p); err != nil {
			logger.Warn("configuration is corrupt, falling back to defaults", "path", path, "error", err)
			p = persisted{ActiveProfile: DefaultActiveID}
		}
		s.adopt(p)
	}
	return s, nil
}

// adopt installs a persisted record, repairing whatever invariants the data
// violates: built-ins are re-seeded if missing, parameters are clamped, and
// a dangling active id falls back to the default built-in.
func (s *Store) adopt(p persisted) {
	profiles := make([]Profile, 0, len(p.Profiles)+3)
	for _, builtIn := range BuiltIns() {
		if i := slices.IndexFunc(p.Profiles, func(o Profile) bool { return o.ID == builtIn.ID }); i >= 0 {
			override := p.Profiles[i].clamped()
			override.BuiltIn = true
			profiles = append(profiles, override)
		} else {
			profiles = append(profiles, builtIn)
		}
	}
	for _, o := range p.Profiles {
		if o.ID == "" || slices.ContainsFunc(profiles, func(existing Profile) bool { return existing.ID == o.ID }) {
			continue
		}
		o.BuiltIn = false
		profiles = append(profiles, o.clamped())
	}

	active := p.ActiveProfile
	if !slices.ContainsFunc(profiles, func(o Profile) bool { return o.ID == active }) {
		if active != "" {
			s.logger.Warn("active profile no longer exists, falling back", "id", active, "fallback", DefaultActiveID)
		}
		active = DefaultActiveID
	}

	s.profiles, s.active, s.enabled = profiles, active, p.Enabled
}

// Save writes the current state to disk.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	data, err := yaml.Marshal(persisted{
		Enabled:       s.enabled,
		ActiveProfile: s.active,
		Profiles:      s.profiles,
	})
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	s.lastWrite = time.Now()
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// persistLocked is the write-through path used by mutations: a failed write
// is logged and remembered, but the in-memory change still takes effect for
// this session.
func (s *Store) persistLocked() {
	if err := s.saveLocked(); err != nil {
		s.dirty = true
		s.logger.Error("settings may not survive restart", "error", err)
		return
	}
	s.dirty = false
}

// Dirty reports whether the last write-through failed.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Get resolves a profile by id.
func (s *Store) Get(id string) (Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(id)
}

func (s *Store) getLocked(id string) (Profile, bool) {
	if i := slices.IndexFunc(s.profiles, func(p Profile) bool { return p.ID == id }); i >= 0 {
		return s.profiles[i], true
	}
	return Profile{}, false
}

// All returns a copy of the profile set, built-ins first.
func (s *Store) All() []Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.profiles)
}

// Active returns the currently active profile.
func (s *Store) Active() Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, _ := s.getLocked(s.active)
	return p
}

// SetActive switches the active profile and persists the change.
func (s *Store) SetActive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.getLocked(id); !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	s.active = id
	s.persistLocked()
	return nil
}

// Enabled returns the persisted enabled flag.
func (s *Store) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// SetEnabled persists the enabled flag.
func (s *Store) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enabled == enabled {
		return
	}
	s.enabled = enabled
	s.persistLocked()
}

// Upsert creates or updates a profile, clamping its parameters. The built-in
// marker of an existing profile is preserved: editing a built-in changes its
// parameters in place rather than forking a copy.
func (s *Store) Upsert(p Profile) error {
	if p.ID == "" {
		return fmt.Errorf("%w: empty id", ErrNotFound)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p = p.clamped()
	if i := slices.IndexFunc(s.profiles, func(o Profile) bool { return o.ID == p.ID }); i >= 0 {
		p.BuiltIn = s.profiles[i].BuiltIn
		s.profiles[i] = p
	} else {
		p.BuiltIn = false
		s.profiles = append(s.profiles, p)
	}
	s.persistLocked()
	return nil
}

// Delete removes a custom profile. Built-in and currently active profiles
// cannot be deleted.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.getLocked(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if p.BuiltIn {
		return fmt.Errorf("%w: %q", ErrBuiltIn, id)
	}
	if s.active == id {
		return fmt.Errorf("%w: %q", ErrInUse, id)
	}
	s.profiles = slices.DeleteFunc(s.profiles, func(o Profile) bool { return o.ID == id })
	s.persistLocked()
	return nil
}

// Reload re-reads the store from disk, repairing invariants as on Open. Used
// when the config file was edited externally.
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var p persisted
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adopt(p)
	return nil
}
