package hotkey

import (
	"testing"
)

func TestParseCombination(t *testing.T) {
	tests := []struct {
		in      string
		groups  int
		str     string
		wantErr bool
	}{
		{in: "ctrl+shift+space", groups: 3, str: "ctrl+shift+space"},
		{in: "CTRL + Alt + D", groups: 3, str: "ctrl+alt+d"},
		{in: "control+super+f12", groups: 3, str: "ctrl+meta+f12"},
		{in: "f9", groups: 1, str: "f9"},
		{in: "ctrl_left+numpad_5", groups: 2, str: "ctrl_left+numpad_5"},
		{in: "ctrl+ctrl+a", groups: 2, str: "ctrl+a"},
		{in: "escape+pgup", groups: 2, str: "esc+page_up"},
		{in: "", wantErr: true},
		{in: "ctrl+", wantErr: true},
		{in: "ctrl+hyper", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := ParseCombination(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseCombination(%q) = %v, want error", tt.in, c)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCombination(%q): %v", tt.in, err)
			}
			if len(c) != tt.groups {
				t.Errorf("groups = %d, want %d", len(c), tt.groups)
			}
			if c.String() != tt.str {
				t.Errorf("String() = %q, want %q", c.String(), tt.str)
			}
		})
	}
}

func TestChordAlternation(t *testing.T) {
	combo, err := ParseCombination("ctrl+alt+space")
	if err != nil {
		t.Fatal(err)
	}

	// Every left/right mix of the two modifier groups activates the chord.
	for _, ctrl := range []KeyCode{KeyCtrlLeft, KeyCtrlRight} {
		for _, alt := range []KeyCode{KeyAltLeft, KeyAltRight} {
			c := NewChord(combo)
			if c.Update(ctrl, true) || c.Update(alt, true) {
				t.Fatal("chord active before all groups are held")
			}
			if !c.Update(KeySpace, true) {
				t.Fatalf("%s+%s+space not active", ctrl, alt)
			}
			// Releasing any required key deactivates immediately.
			if c.Update(alt, false) {
				t.Fatalf("still active after releasing %s", alt)
			}
			if !c.Update(alt, true) {
				t.Fatal("not active again after re-press")
			}
		}
	}
}

func TestChordBothSidesHeld(t *testing.T) {
	combo, _ := ParseCombination("shift+a")
	c := NewChord(combo)
	c.Update(KeyShiftLeft, true)
	c.Update(KeyShiftRight, true)
	if !c.Update(KeyA, true) {
		t.Fatal("not active")
	}
	if !c.Update(KeyShiftLeft, false) {
		t.Error("right shift still satisfies the group")
	}
	if c.Update(KeyShiftRight, false) {
		t.Error("active with no shift held")
	}
}

func TestChordExtraKeysAllowed(t *testing.T) {
	combo, _ := ParseCombination("ctrl+d")
	c := NewChord(combo)
	c.Update(KeyX, true)
	c.Update(KeyCtrlLeft, true)
	if !c.Update(KeyD, true) {
		t.Error("extra held key should not block the chord")
	}
	c.Reset()
	if c.Active() {
		t.Error("active after Reset")
	}
}

func TestLookupKey(t *testing.T) {
	for name, want := range map[string]KeyCode{
		"a": KeyA, "F24": KeyF24, "0": Key0, "return": KeyEnter, "alt_gr": KeyAltRight, "numpad_enter": KeyNumpadEnter,
	} {
		if got, ok := LookupKey(name); !ok || got != want {
			t.Errorf("LookupKey(%q) = %v, %v; want %v", name, got, ok, want)
		}
	}
	if _, ok := LookupKey("ctrl"); ok {
		t.Error("ctrl is a group, not a single key")
	}
}
