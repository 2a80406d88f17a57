package hotkey

import (
	"errors"
	"fmt"
)

var (
	// ErrNoBackend means neither evdev nor the OS hotkey API could be used.
	ErrNoBackend = errors.New("hotkey: no supported input backend found")
	// ErrUnavailable is returned by backends that cannot run on this system.
	ErrUnavailable = errors.New("hotkey: backend not available")
)

// KeyEvent is one physical key transition.
type KeyEvent struct {
	Key  KeyCode
	Down bool
}

// Backend delivers raw key events. Start must return once the backend is
// running; events may arrive on any goroutine. Backends that can only watch
// registered combinations (the OS hotkey API) use the combos argument; the
// rest ignore it.
type Backend interface {
	Name() string
	Start(combos []Combination, emit func(KeyEvent)) error
	Stop()
}

// backendOrder is the "auto" preference.
var backendOrder = []string{"evdev", "xhotkey"}

func newBackend(name string) (Backend, error) {
	switch name {
	case "evdev":
		return newEvdev()
	case "xhotkey":
		return newXHotkey()
	case "stdin":
		return NewStdin(nil), nil
	default:
		return nil, fmt.Errorf("hotkey: unknown input backend %q", name)
	}
}
