package prefs

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store owns the session's preference set and its persisted form.
// Every mutation is written back to disk immediately.
type Store struct {
	path   string
	logger *slog.Logger

	mu sync.RWMutex
	p  Preferences
}

// NewStore loads preferences from path. A missing file yields defaults;
// a present file is repaired field by field (invalid values fall back
// to their defaults, valid ones are kept).
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{path: path, logger: logger}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.p = Defaults()
	case err != nil:
		return nil, fmt.Errorf("read preferences: %w", err)
	default:
		p, err := decode(data, false)
		if err != nil {
			// Unreadable file: start from defaults, keep the file
			// untouched until the next mutation.
			logger.Warn("preferences file unreadable, using defaults", "error", err)
			p = Defaults()
		}
		sanitize(&p, logger)
		s.p = p
	}

	return s, nil
}

// Get returns a deep copy of the current preferences.
func (s *Store) Get() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.p.Clone()
}

// Update applies mutate to a copy of the preferences, repairs the
// result, installs it, and persists. The installed copy is returned.
func (s *Store) Update(mutate func(*Preferences)) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.p.Clone()
	mutate(&next)
	sanitize(&next, s.logger)

	if err := s.saveLocked(next); err != nil {
		return Preferences{}, err
	}
	s.p = next
	return next.Clone(), nil
}

// Export serializes the current preferences to their textual form.
func (s *Store) Export() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return yaml.Marshal(s.p)
}

// Import replaces the preferences with a previously exported set. An
// invalid document is rejected wholesale: the current preferences stay
// untouched and no partial application happens.
func (s *Store) Import(data []byte) error {
	p, err := decode(data, true)
	if err != nil {
		return fmt.Errorf("import preferences: %w", err)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("import preferences: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.saveLocked(p); err != nil {
		return err
	}
	s.p = p
	return nil
}

func (s *Store) saveLocked(p Preferences) error {
	if s.path == "" {
		return nil
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return nil
}

// decode parses the persisted form. strict rejects unknown fields,
// which Import uses to refuse documents that were never an export.
func decode(data []byte, strict bool) (Preferences, error) {
	var p Preferences
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(strict)
	if err := dec.Decode(&p); err != nil {
		return Preferences{}, err
	}
	return p, nil
}
