package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/driptext/driptext/internal/tracker"
)

// RuntimeSettings are the knobs operators may change while the service
// is running, as opposed to Config which is fixed at startup. They are
// kept in a small JSON file next to the database so edits survive
// restarts.
type RuntimeSettings struct {
	CronExpr         string                  `json:"cron_expr"`
	PortionsPerCycle int                     `json:"portions_per_cycle"`
	DuplicatePolicy  tracker.DuplicatePolicy `json:"duplicate_policy"`
}

func (s RuntimeSettings) Validate() error {
	if _, err := cron.ParseStandard(s.CronExpr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", s.CronExpr, err)
	}
	if s.PortionsPerCycle < 1 {
		return fmt.Errorf("portions_per_cycle must be >= 1, got %d", s.PortionsPerCycle)
	}
	switch s.DuplicatePolicy {
	case tracker.OverwriteLatest, tracker.RejectDuplicate:
	default:
		return fmt.Errorf("unknown duplicate policy %q", s.DuplicatePolicy)
	}
	return nil
}

// SettingsStore loads and saves RuntimeSettings from a JSON file.
// Safe for concurrent use.
type SettingsStore struct {
	path string

	mu      sync.Mutex
	current RuntimeSettings
}

// NewSettingsStore reads settings from path, falling back to defaults
// when the file does not exist yet.
func NewSettingsStore(path string, defaults RuntimeSettings) (*SettingsStore, error) {
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("invalid default settings: %w", err)
	}
	store := &SettingsStore{path: path, current: defaults}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	var loaded RuntimeSettings
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	if err := loaded.Validate(); err != nil {
		return nil, fmt.Errorf("stored settings: %w", err)
	}
	store.current = loaded
	return store, nil
}

// Get returns a copy of the current settings.
func (s *SettingsStore) Get() RuntimeSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Update validates and persists new settings, then makes them current.
func (s *SettingsStore) Update(settings RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	s.current = settings
	return nil
}
