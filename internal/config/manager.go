package config

import (
	"sync/atomic"
)

// Manager holds the active configuration snapshot and reloads it on demand.
// Readers always see a complete document; a failed reload keeps the previous
// snapshot in place.
type Manager struct {
	path    string
	current atomic.Pointer[Config]
}

// NewManager loads the configuration file and returns a manager over it.
func NewManager(path string) (*Manager, error) {
	cfg, errLoad := Load(path)
	if errLoad != nil {
		return nil, errLoad
	}
	m := &Manager{path: path}
	m.current.Store(cfg)
	return m, nil
}

// NewStaticManager wraps an already-built Config; Reload is a no-op. Used by
// tests and callers without a file on disk.
func NewStaticManager(cfg *Config) *Manager {
	m := &Manager{}
	m.current.Store(cfg)
	return m
}

// Current returns the active configuration snapshot.
func (m *Manager) Current() *Config {
	return m.current.Load()
}

// Path returns the configuration file path, empty for static managers.
func (m *Manager) Path() string {
	return m.path
}

// Reload re-reads the configuration file and swaps the snapshot.
func (m *Manager) Reload() error {
	if m.path == "" {
		return nil
	}
	cfg, errLoad := Load(m.path)
	if errLoad != nil {
		return errLoad
	}
	m.current.Store(cfg)
	return nil
}
