// Package hotkey turns raw key events into per-profile activation events.
//
// Each profile has a Chord. The Manager feeds every key transition from the
// active Backend to all chords and emits shortcut_triggered with "press" when
// a chord becomes satisfied and "release" when it stops being satisfied.
package hotkey

import (
	"errors"
	"fmt"
	"sync"

	"hotscribe/bus"
	"hotscribe/log"
)

// Shortcut binds a profile to its activation key string.
type Shortcut struct {
	Profile string
	Keys    string
}

type binding struct {
	profile string
	chord   *Chord
}

type Manager struct {
	bus       *bus.Bus
	preferred string

	mu       sync.Mutex
	bindings []binding
	backend  Backend
	running  bool
}

// NewManager parses every shortcut up front so a bad activation key fails
// before anything starts.
func NewManager(b *bus.Bus, preferred string, shortcuts []Shortcut) (*Manager, error) {
	m := &Manager{bus: b, preferred: preferred}
	if err := m.setShortcuts(shortcuts); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) setShortcuts(shortcuts []Shortcut) error {
	bindings := make([]binding, 0, len(shortcuts))
	for _, s := range shortcuts {
		combo, err := ParseCombination(s.Keys)
		if err != nil {
			return fmt.Errorf("profile %s: %w", s.Profile, err)
		}
		bindings = append(bindings, binding{profile: s.Profile, chord: NewChord(combo)})
	}
	m.mu.Lock()
	m.bindings = bindings
	m.mu.Unlock()
	return nil
}

// Start selects the preferred backend, or the first working one for "auto".
func (m *Manager) Start() error {
	if m.preferred == "" || m.preferred == "auto" {
		return m.startAuto()
	}
	if err := m.SetBackend(m.preferred); err != nil {
		log.Warnf("input backend %s failed (%v), trying auto selection", m.preferred, err)
		return m.startAuto()
	}
	return nil
}

func (m *Manager) startAuto() error {
	var errs []error
	for _, name := range backendOrder {
		err := m.SetBackend(name)
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}
	return fmt.Errorf("%w: %w", ErrNoBackend, errors.Join(errs...))
}

// SetBackend stops the current backend, then builds and starts the named one.
func (m *Manager) SetBackend(name string) error {
	be, err := newBackend(name)
	if err != nil {
		return err
	}
	return m.Use(be)
}

// Use installs an already constructed backend. The old backend is fully
// stopped before the new one starts.
func (m *Manager) Use(be Backend) error {
	m.Stop()

	m.mu.Lock()
	combos := make([]Combination, 0, len(m.bindings))
	for _, b := range m.bindings {
		b.chord.Reset()
		combos = append(combos, b.chord.Combination())
	}
	m.mu.Unlock()

	if err := be.Start(combos, m.handle); err != nil {
		return err
	}

	m.mu.Lock()
	m.backend = be
	m.running = true
	m.mu.Unlock()
	log.Infof("input backend: %s", be.Name())
	return nil
}

// Backend reports the active backend name, or "" when stopped.
func (m *Manager) Backend() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backend == nil || !m.running {
		return ""
	}
	return m.backend.Name()
}

func (m *Manager) Stop() {
	m.mu.Lock()
	be := m.backend
	m.running = false
	m.backend = nil
	m.mu.Unlock()
	if be != nil {
		be.Stop()
	}
}

func (m *Manager) handle(ev KeyEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bindings {
		was := b.chord.Active()
		is := b.chord.Update(ev.Key, ev.Down)
		switch {
		case !was && is:
			m.bus.Emit(bus.ShortcutTriggered, bus.Shortcut{Profile: b.profile, Action: bus.Press})
		case was && !is:
			m.bus.Emit(bus.ShortcutTriggered, bus.Shortcut{Profile: b.profile, Action: bus.Release})
		}
	}
}
