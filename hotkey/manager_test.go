package hotkey

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"hotscribe/bus"
)

type recorder struct {
	mu  sync.Mutex
	got []bus.Shortcut
}

func (r *recorder) handler(p any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, p.(bus.Shortcut))
}

func (r *recorder) events() []bus.Shortcut {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bus.Shortcut(nil), r.got...)
}

func newTestManager(t *testing.T, shortcuts ...Shortcut) (*Manager, *FakeBackend, *bus.Bus, *recorder) {
	t.Helper()
	b := bus.New()
	t.Cleanup(b.Close)
	rec := &recorder{}
	b.Subscribe(bus.ShortcutTriggered, rec.handler)

	m, err := NewManager(b, "auto", shortcuts)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	fk := NewFake("fake")
	if err := m.Use(fk); err != nil {
		t.Fatalf("Use: %v", err)
	}
	t.Cleanup(m.Stop)
	return m, fk, b, rec
}

func TestManagerEdgeTriggered(t *testing.T) {
	_, fk, b, rec := newTestManager(t, Shortcut{Profile: "dictate", Keys: "ctrl+shift+space"})

	fk.Press(KeyCtrlLeft, KeyShiftRight, KeySpace)
	// Autorepeat style duplicate downs and unrelated keys emit nothing.
	fk.Press(KeySpace, KeyA)
	fk.Release(KeyA)
	fk.Release(KeySpace)
	fk.Release(KeyShiftRight, KeyCtrlLeft)
	b.Sync()

	got := rec.events()
	want := []bus.Shortcut{
		{Profile: "dictate", Action: bus.Press},
		{Profile: "dictate", Action: bus.Release},
	}
	if len(got) != len(want) {
		t.Fatalf("events = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestManagerMultipleProfiles(t *testing.T) {
	_, fk, b, rec := newTestManager(t,
		Shortcut{Profile: "a", Keys: "ctrl+f9"},
		Shortcut{Profile: "b", Keys: "f9"},
	)

	fk.Press(KeyF9)
	fk.Press(KeyCtrlLeft)
	fk.Release(KeyF9)
	b.Sync()

	got := rec.events()
	want := []bus.Shortcut{
		{Profile: "b", Action: bus.Press},
		{Profile: "a", Action: bus.Press},
		{Profile: "a", Action: bus.Release},
		{Profile: "b", Action: bus.Release},
	}
	if len(got) != len(want) {
		t.Fatalf("events = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestManagerSwitchBackendStopsOld(t *testing.T) {
	m, old, b, rec := newTestManager(t, Shortcut{Profile: "p", Keys: "f8"})

	old.Press(KeyF8)
	next := NewFake("next")
	if err := m.Use(next); err != nil {
		t.Fatal(err)
	}
	if _, stopped := old.Counts(); stopped != 1 {
		t.Errorf("old backend stopped %d times, want 1", stopped)
	}
	if m.Backend() != "next" {
		t.Errorf("Backend() = %q", m.Backend())
	}

	// The old backend can no longer deliver and chord state starts clean.
	old.Release(KeyF8)
	next.Press(KeyF8)
	b.Sync()
	got := rec.events()
	if len(got) != 2 || got[0].Action != bus.Press || got[1].Action != bus.Press {
		t.Errorf("events = %+v, want two presses", got)
	}

	if n := len(next.Combinations()); n != 1 {
		t.Errorf("backend received %d combinations, want 1", n)
	}
}

func TestManagerStartFailure(t *testing.T) {
	b := bus.New()
	defer b.Close()
	m, err := NewManager(b, "auto", []Shortcut{{Profile: "p", Keys: "f8"}})
	if err != nil {
		t.Fatal(err)
	}
	fk := NewFake("broken")
	fk.StartErr = errors.New("no device")
	if err := m.Use(fk); err == nil {
		t.Fatal("Use succeeded with a failing backend")
	}
	if m.Backend() != "" {
		t.Errorf("Backend() = %q after failed start", m.Backend())
	}
}

func TestNewManagerRejectsBadKeys(t *testing.T) {
	b := bus.New()
	defer b.Close()
	_, err := NewManager(b, "auto", []Shortcut{{Profile: "p", Keys: "ctrl+nope"}})
	if err == nil || !strings.Contains(err.Error(), "profile p") {
		t.Errorf("err = %v, want parse error naming the profile", err)
	}
}

func TestManagerStdinBackend(t *testing.T) {
	b := bus.New()
	defer b.Close()
	rec := &recorder{}
	b.Subscribe(bus.ShortcutTriggered, rec.handler)

	m, err := NewManager(b, "stdin", []Shortcut{{Profile: "p", Keys: "ctrl+alt+d"}})
	if err != nil {
		t.Fatal(err)
	}
	script := "# comment\npress ctrl+alt+d\nsleep 1ms\nrelease ctrl+alt+d\nbogus\ntap ctrl+alt+d\nquit\npress ctrl+alt+d\n"
	in := NewStdin(strings.NewReader(script))
	if err := m.Use(in); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()

	select {
	case <-in.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("script did not finish")
	}
	b.Sync()

	got := rec.events()
	if len(got) != 4 {
		t.Fatalf("events = %+v, want 4 (commands after quit ignored)", got)
	}
	for i, a := range []bus.Action{bus.Press, bus.Release, bus.Press, bus.Release} {
		if got[i].Action != a {
			t.Errorf("event %d = %s, want %s", i, got[i].Action, a)
		}
	}
}
